// Package pipeline ties a driving session to its persisted artefacts:
// capturing a map's reference line, and turning a driven run into a run
// directory, a score, plots and a run record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/evaluate"
	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/lap"
	"github.com/banshee-data/racingline/internal/monitoring"
	"github.com/banshee-data/racingline/internal/reference"
	"github.com/banshee-data/racingline/internal/runplot"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/session"
	"github.com/banshee-data/racingline/internal/timeutil"
	"github.com/banshee-data/racingline/internal/trajectory"
)

var (
	// ErrLapNotClosed is returned when a reference capture ends before the
	// lap closes. Nothing is saved.
	ErrLapNotClosed = errors.New("reference lap was not closed")

	// ErrEmptyRun is returned when a session recorded no points.
	ErrEmptyRun = errors.New("session recorded no points")
)

var logf = monitoring.Component("Pipeline")

// RunInfo identifies what was driven.
type RunInfo struct {
	Model      string
	Checkpoint int
	Map        string
	Weather    session.Weather

	// Interactive runs come from the manual driving client and close the
	// lap under its shorter guard.
	Interactive bool
}

func (i RunInfo) title() string {
	return fmt.Sprintf("%s: %s epoch %d", i.Map, i.Model, i.Checkpoint)
}

// Report is what one evaluated run produced.
type Report struct {
	Dir        string
	ResultFile string
	Score      float64
	Cells      int
	Status     session.Status
	Record     *runstore.Record
	Outcome    session.Outcome
}

// Pipeline holds the stores a run is written to. Records is optional; a
// nil store skips the run-record table.
type Pipeline struct {
	Layout     *runstore.Layout
	References *reference.Store
	Evaluator  *evaluate.Evaluator
	Records    *runstore.RecordStore
	Clock      timeutil.Clock
	Chart      runplot.ChartOptions

	cfg *config.Config
}

// New wires the stores under cfg's output directory on fsys.
func New(cfg *config.Config, fsys fsutil.FileSystem, records *runstore.RecordStore, clock timeutil.Clock) *Pipeline {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	root := cfg.GetOutputDir()
	refs := reference.NewStore(fsys, filepath.Join(root, reference.Dir))
	return &Pipeline{
		Layout:     runstore.NewLayout(fsys, root),
		References: refs,
		Evaluator:  evaluate.New(refs, cfg.EvaluationOptions()),
		Records:    records,
		Clock:      clock,
		cfg:        cfg,
	}
}

// ReferenceSessionConfig is the session setup for capturing a reference
// line: the tight detector, warm-up skipped, no frame budget.
func ReferenceSessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Detector:   cfg.ReferenceDetector(),
		SkipFrames: cfg.GetSkipFrames(),
		Speed:      speedBand(cfg),
	}
}

// DriveSessionConfig is the session setup for a model drive.
func DriveSessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Detector:   cfg.DriveDetector(),
		SkipFrames: cfg.GetSkipFrames(),
		MaxFrames:  cfg.GetMaxFrames(),
		Speed:      speedBand(cfg),
	}
}

// detector is the lap detector a run of info is judged by.
func (p *Pipeline) detector(info RunInfo) lap.Detector {
	if info.Interactive {
		return lap.ManualDrive()
	}
	return p.cfg.DriveDetector()
}

func speedBand(cfg *config.Config) *session.SpeedBand {
	if !cfg.GetUseSpeedConstraints() {
		return nil
	}
	return &session.SpeedBand{MinKmh: cfg.GetMinSpeedKmh(), MaxKmh: cfg.GetMaxSpeedKmh()}
}

// CaptureReference drives sim with driver until the lap closes and saves
// the recorded line as mapName's reference, with a PNG preview beside it.
func (p *Pipeline) CaptureReference(ctx context.Context, mapName string, sim session.Simulator, driver session.Driver) (session.Outcome, error) {
	sess := session.New(sim, driver, ReferenceSessionConfig(p.cfg), p.Clock)
	out, err := sess.Run(ctx)
	if err != nil {
		return out, err
	}
	if out.Status != session.StatusComplete {
		return out, fmt.Errorf("%w: %s after %d frames", ErrLapNotClosed, out.Status, out.Frames)
	}
	if err := p.References.Save(mapName, out.Trajectory); err != nil {
		return out, err
	}

	preview := filepath.Join(filepath.Dir(p.References.Path(mapName)), runstore.PlotName(mapName))
	if err := runplot.SavePNG(p.Layout.FS(), preview, mapName+" reference", out.Trajectory, nil); err != nil {
		logf("failed to save reference preview: %v", err)
	}
	return out, sess.MarkEvaluated()
}

// Drive runs one session and evaluates whatever it recorded. Incomplete
// and cancelled runs are still saved and scored. A simulator failure with
// a partial trajectory returns both the report and the error.
func (p *Pipeline) Drive(ctx context.Context, info RunInfo, sim session.Simulator, driver session.Driver) (*Report, error) {
	sc := DriveSessionConfig(p.cfg)
	sc.Detector = p.detector(info)
	sess := session.New(sim, driver, sc, p.Clock)
	out, runErr := sess.Run(ctx)
	if len(out.Trajectory) == 0 {
		if runErr != nil {
			return nil, runErr
		}
		return nil, ErrEmptyRun
	}
	if runErr != nil {
		logf("session failed after %d frames, saving partial run: %v", out.Frames, runErr)
	}

	dir, err := p.Layout.CreateRunDir(info.Model, info.Map, p.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := p.Layout.SaveRun(dir, out.Trajectory); err != nil {
		return nil, err
	}

	rep, err := p.evaluate(info, dir, out.Trajectory, out)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	if err := sess.MarkEvaluated(); err != nil {
		return rep, err
	}
	return rep, runErr
}

// EvaluateDir scores an existing run directory. The run's completion is
// re-derived from the run's detector since the session is gone.
func (p *Pipeline) EvaluateDir(info RunInfo, dir string) (*Report, error) {
	run, err := p.Layout.LoadRun(dir)
	if err != nil {
		return nil, err
	}
	out := session.Outcome{Trajectory: run, Status: statusOf(p.detector(info), run)}
	return p.evaluate(info, dir, run, out)
}

func statusOf(d lap.Detector, run trajectory.Trajectory) session.Status {
	if d.Complete(run) {
		return session.StatusComplete
	}
	return session.StatusIncomplete
}

func (p *Pipeline) evaluate(info RunInfo, dir string, run trajectory.Trajectory, out session.Outcome) (*Report, error) {
	ref, err := p.References.Load(info.Map)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", dir, err)
	}
	res, err := evaluate.Compare(ref, run, p.Evaluator.Options)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", dir, err)
	}
	logf("run %s on %s scored %.4f over %d cells", dir, info.Map, res.Distance, res.Cells)

	p.savePlots(info, dir, run, ref)
	return p.persist(info, dir, out, res.Distance, res.Cells)
}

// persist writes the result summary and, when a record store is
// configured, the run record.
func (p *Pipeline) persist(info RunInfo, dir string, out session.Outcome, score float64, cells int) (*Report, error) {
	summary := runstore.Result{Model: info.Model, Checkpoint: info.Checkpoint, Score: score}
	resultFile, err := p.Layout.WriteResult(dir, summary, p.Clock.Now())
	if err != nil {
		return nil, err
	}

	rep := &Report{Dir: dir, ResultFile: resultFile, Score: score, Cells: cells, Status: out.Status, Outcome: out}
	if p.Records == nil {
		return rep, nil
	}
	rec := &runstore.Record{
		Model:            info.Model,
		Checkpoint:       info.Checkpoint,
		Map:              info.Map,
		Weather:          int(info.Weather),
		CreatedAt:        p.Clock.Now().UnixNano(),
		Score:            score,
		DTWRadius:        p.Evaluator.Options.Radius,
		PointCount:       len(out.Trajectory),
		Status:           string(out.Status),
		Frames:           out.Frames,
		AvgSpeedKmh:      out.AvgSpeedKmh,
		InterventionRate: out.InterventionRate,
		RunDir:           dir,
	}
	if err := p.Records.Insert(rec); err != nil {
		return rep, err
	}
	rep.Record = rec
	return rep, nil
}

// savePlots writes the PNG and HTML overlays. Plot failures are logged, the
// score stands without them.
func (p *Pipeline) savePlots(info RunInfo, dir string, run, ref trajectory.Trajectory) {
	fsys := p.Layout.FS()
	title := info.title()
	if err := runplot.SavePNG(fsys, filepath.Join(dir, runstore.PlotName(info.Map)), title, run, ref); err != nil {
		logf("failed to save plot for %s: %v", dir, err)
	}
	if err := runplot.SaveHTML(fsys, filepath.Join(dir, runstore.ChartName(info.Map)), title, run, ref, p.Chart); err != nil {
		logf("failed to save chart for %s: %v", dir, err)
	}
}

// BatchResult is one run directory's outcome in EvaluateAll.
type BatchResult struct {
	Dir    string
	Report *Report
	Err    error
}

// EvaluateAll rescores every run directory of base.Model on base.Map using
// up to workers goroutines. base.Interactive selects the detector the runs
// are judged by; a run's earlier result supplies its checkpoint.
// Directories that fail to load or score are reported individually.
func (p *Pipeline) EvaluateAll(ctx context.Context, base RunInfo, workers int) ([]BatchResult, error) {
	model, mapName := base.Model, base.Map
	dirs, err := p.Layout.RunDirs(model, mapName)
	if err != nil {
		return nil, err
	}
	results := make([]BatchResult, len(dirs))
	var jobs []evaluate.Job
	var jobIdx []int
	for i, dir := range dirs {
		results[i].Dir = dir
		run, err := p.Layout.LoadRun(dir)
		if err != nil {
			results[i].Err = err
			continue
		}
		jobs = append(jobs, evaluate.Job{Name: dir, Map: mapName, Candidate: run})
		jobIdx = append(jobIdx, i)
	}
	logf("evaluating %d of %d runs of %s on %s", len(jobs), len(dirs), model, mapName)

	scored, err := p.Evaluator.Batch(ctx, jobs, workers)
	if err != nil {
		return nil, err
	}
	// Batch already reported a missing reference on every job.
	ref, refErr := p.References.Load(mapName)
	if refErr != nil && len(jobs) > 0 {
		logf("no reference for %s, plots skipped: %v", mapName, refErr)
	}

	for k, jr := range scored {
		i := jobIdx[k]
		if jr.Err != nil {
			results[i].Err = jr.Err
			continue
		}
		// The checkpoint of an earlier evaluation wins over base's.
		info := base
		if prev, err := p.Layout.ReadResult(jr.Name); err == nil {
			info.Checkpoint = prev.Checkpoint
		}
		run := jobs[k].Candidate
		out := session.Outcome{Trajectory: run, Status: statusOf(p.detector(info), run)}
		if refErr == nil {
			p.savePlots(info, jr.Name, run, ref)
		}
		rep, err := p.persist(info, jr.Name, out, jr.Score, jr.Cells)
		results[i].Report = rep
		results[i].Err = err
	}
	return results, nil
}
