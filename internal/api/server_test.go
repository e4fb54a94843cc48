package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/racingline/internal/db"
	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/monitoring"
	"github.com/banshee-data/racingline/internal/reference"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/trajectory"
)

func init() {
	monitoring.SetLogger(nil)
}

type fakeRecords struct {
	recs []*runstore.Record
	err  error
}

func (f *fakeRecords) Get(id string) (*runstore.Record, error) {
	for _, r := range f.recs {
		if r.RunID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", runstore.ErrRecordNotFound, id)
}

func (f *fakeRecords) List(flt runstore.Filter) ([]*runstore.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*runstore.Record
	for _, r := range f.recs {
		if flt.Map != "" && r.Map != flt.Map {
			continue
		}
		if flt.Model != "" && r.Model != flt.Model {
			continue
		}
		if flt.CompletedOnly && !r.Completed() {
			continue
		}
		out = append(out, r)
	}
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f *fakeRecords) Best(mapName string) (*runstore.Record, error) {
	var best *runstore.Record
	for _, r := range f.recs {
		if r.Map == mapName && r.Completed() && (best == nil || r.Score < best.Score) {
			best = r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no completed runs on map %s", runstore.ErrRecordNotFound, mapName)
	}
	return best, nil
}

func square(side float64) trajectory.Trajectory {
	return trajectory.Trajectory{{X: 0, Y: 0}, {X: side, Y: 0}, {X: side, Y: side}, {X: 0, Y: side}}
}

type fixture struct {
	server  *Server
	records *fakeRecords
	fs      *fsutil.MemoryFileSystem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	layout := runstore.NewLayout(mfs, "/out")
	refs := reference.NewStore(mfs, "/out/reference")

	dir, err := layout.CreateRunDir("cnn", "Town01", time.Unix(1700000000, 0))
	require.NoError(t, err)
	require.NoError(t, layout.SaveRun(dir, square(10)))
	require.NoError(t, refs.Save("Town01", square(10.5)))

	noRef, err := layout.CreateRunDir("cnn", "Town02", time.Unix(1700000100, 0))
	require.NoError(t, err)
	require.NoError(t, layout.SaveRun(noRef, square(3)))

	recs := &fakeRecords{recs: []*runstore.Record{
		{RunID: "a", Model: "cnn", Map: "Town01", Score: 12.5, Status: "complete", RunDir: dir},
		{RunID: "b", Model: "lstm", Map: "Town01", Score: 3.2, Status: "incomplete", RunDir: dir},
		{RunID: "c", Model: "lstm", Map: "Town01", Score: 8.1, Status: "complete", RunDir: dir},
		{RunID: "d", Model: "cnn", Map: "Town02", Score: 1.0, Status: "complete", RunDir: noRef},
		{RunID: "gone", Model: "cnn", Map: "Town02", Score: 1.0, Status: "complete", RunDir: "/out/autonomous_runs/cnn/Town02/run-1"},
		{RunID: "escape", Model: "cnn", Map: "Town02", Score: 1.0, Status: "complete", RunDir: "/out/reference/Town01"},
	}}
	return &fixture{server: NewServer(recs, layout, refs), records: recs, fs: mfs}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeIDs(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var got []runstore.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.RunID
	}
	return ids
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"a", "b", "c", "d", "gone", "escape"}},
		{"?map=Town01", []string{"a", "b", "c"}},
		{"?map=Town01&model=lstm", []string{"b", "c"}},
		{"?map=Town01&completed=true", []string{"a", "c"}},
		{"?limit=2", []string{"a", "b"}},
		{"?map=Town09", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.get(t, "/api/runs"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.want, decodeIDs(t, rec))
		})
	}
}

func TestListRuns_BadParams(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"?limit=x", "?limit=-2", "?completed=perhaps"} {
		rec := f.get(t, "/api/runs"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListRuns_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.records.err = fmt.Errorf("database is locked")
	rec := f.get(t, "/api/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestShowRun(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/runs/c")
	require.Equal(t, http.StatusOK, rec.Code)
	var got runstore.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "lstm", got.Model)
	assert.Equal(t, 8.1, got.Score)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/runs/zzz").Code)
}

func TestBestRun(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/maps/Town01/best")
	require.Equal(t, http.StatusOK, rec.Code)
	var got runstore.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "c", got.RunID, "incomplete runs never win, however low their score")

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/maps/Town07/best").Code)
}

func TestListMaps(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, reference.NewStore(f.fs, "/out/reference").Save("Town03", square(4)))

	rec := f.get(t, "/api/maps")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		Map  string           `json:"map"`
		Best *runstore.Record `json:"best"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "Town01", got[0].Map)
	require.NotNil(t, got[0].Best)
	assert.Equal(t, "c", got[0].Best.RunID)
	assert.Equal(t, "Town03", got[1].Map)
	assert.Nil(t, got[1].Best)
}

func TestListMaps_NoReferences(t *testing.T) {
	srv := NewServer(&fakeRecords{}, runstore.NewLayout(fsutil.NewMemoryFileSystem(), "/out"), nil)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRunChart(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/runs/a/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Town01 a")
	assert.Contains(t, body, "score 12.50")
	assert.Contains(t, body, "reference")

	rec = f.get(t, "/api/runs/d/chart")
	require.Equal(t, http.StatusOK, rec.Code, "a missing reference line still renders")
	assert.NotContains(t, rec.Body.String(), `"name":"reference"`)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/runs/zzz/chart").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/runs/gone/chart").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/runs/escape/chart").Code, "only run directories are charted")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.server.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?map=Town01", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "418")
	assert.Contains(t, lines[0], "GET")
	assert.Contains(t, lines[0], "/api/runs?map=Town01")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}

func TestServer_WithRecordStore(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := runstore.NewRecordStore(database.DB)
	require.NoError(t, store.Insert(&runstore.Record{
		RunID: "r1", Model: "cnn", Checkpoint: 4, Map: "Town03", Score: 42, PointCount: 10, Status: "complete",
	}))

	srv := NewServer(store, runstore.NewLayout(fsutil.NewMemoryFileSystem(), "/out"), nil)
	ts := httptest.NewServer(LoggingMiddleware(srv.ServeMux()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/maps/Town03/best")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got runstore.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 4, got.Checkpoint)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))
}
