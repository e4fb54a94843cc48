// Package api serves evaluated runs over HTTP: listing run records, the
// best run per map, and an interactive overlay of a run on its reference
// line.
package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/banshee-data/racingline/internal/httputil"
	"github.com/banshee-data/racingline/internal/reference"
	"github.com/banshee-data/racingline/internal/runplot"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/security"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// RecordSource is the read side of the run-record store.
type RecordSource interface {
	Get(runID string) (*runstore.Record, error)
	List(f runstore.Filter) ([]*runstore.Record, error)
	Best(mapName string) (*runstore.Record, error)
}

// ReferenceSource supplies reference lines and the maps that have one.
type ReferenceSource interface {
	Load(mapName string) (trajectory.Trajectory, error)
	Maps() ([]string, error)
}

type Server struct {
	records RecordSource
	runs    *runstore.Layout
	refs    ReferenceSource
	chart   runplot.ChartOptions
}

// NewServer builds a server over records. runs resolves run directories
// for charts, refs supplies the reference line drawn underneath.
func NewServer(records RecordSource, runs *runstore.Layout, refs ReferenceSource) *Server {
	return &Server{records: records, runs: runs, refs: refs}
}

// SetChartOptions overrides how charts are rendered, e.g. to serve echarts
// from a local asset host.
func (s *Server) SetChartOptions(o runplot.ChartOptions) {
	s.chart = o
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("GET /api/runs/{id}/chart", s.runChart)
	mux.HandleFunc("GET /api/maps", s.listMaps)
	mux.HandleFunc("GET /api/maps/{map}/best", s.bestRun)
	return mux
}

type mapSummary struct {
	Map  string           `json:"map"`
	Best *runstore.Record `json:"best,omitempty"`
}

// listMaps reports every map with a reference line and its best completed
// run, if any.
func (s *Server) listMaps(w http.ResponseWriter, r *http.Request) {
	out := []mapSummary{}
	if s.refs == nil {
		httputil.WriteJSONOK(w, out)
		return
	}
	maps, err := s.refs.Maps()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list maps: %v", err))
		return
	}
	for _, m := range maps {
		best, err := s.records.Best(m)
		if err != nil && !errors.Is(err, runstore.ErrRecordNotFound) {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve best run for %s: %v", m, err))
			return
		}
		out = append(out, mapSummary{Map: m, Best: best})
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	completed, err := httputil.QueryBool(r, "completed", false)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	recs, err := s.records.List(runstore.Filter{
		Map:           q.Get("map"),
		Model:         q.Get("model"),
		CompletedOnly: completed,
		Limit:         limit,
	})
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if recs == nil {
		recs = []*runstore.Record{}
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, err, runstore.ErrRecordNotFound)
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) bestRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Best(r.PathValue("map"))
	if err != nil {
		httputil.WriteError(w, err, runstore.ErrRecordNotFound)
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) runChart(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, err, runstore.ErrRecordNotFound)
		return
	}
	if err := security.WithinDirectory(rec.RunDir, s.runs.RunsRoot()); err != nil {
		httputil.NotFound(w, fmt.Sprintf("run %s has no chartable run directory: %v", rec.RunID, err))
		return
	}
	run, err := s.runs.LoadRun(rec.RunDir)
	if err != nil {
		httputil.WriteError(w, err, fs.ErrNotExist)
		return
	}

	// A run whose map has no reference line is still worth looking at.
	var ref trajectory.Trajectory
	if s.refs != nil {
		ref, err = s.refs.Load(rec.Map)
		if err != nil && !errors.Is(err, reference.ErrNotFound) {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to load reference: %v", err))
			return
		}
	}

	o := s.chart
	o.Subtitle = fmt.Sprintf("%s epoch %d, score %.2f (%s)", rec.Model, rec.Checkpoint, rec.Score, rec.Status)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	title := fmt.Sprintf("%s %s", rec.Map, rec.RunID)
	if err := runplot.RenderHTML(w, title, run, ref, o); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to render chart: %v", err))
	}
}
