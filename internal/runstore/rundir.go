// Package runstore persists autonomous runs: the per-run directory with the
// driven trajectory, its result summary and plots, and the run-record table
// that indexes every evaluation.
package runstore

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/monitoring"
	"github.com/banshee-data/racingline/internal/security"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// File names inside a run directory.
const (
	RunsDir      = "autonomous_runs"
	RunCSV       = "run.csv"
	ResultFile   = "result.txt"
	runDirPrefix = "run-"
)

// PlotName returns the PNG file name for a run on mapName.
func PlotName(mapName string) string { return mapName + ".png" }

// ChartName returns the HTML chart file name for a run on mapName.
func ChartName(mapName string) string { return mapName + ".html" }

// Layout resolves and creates run directories under an output root:
// <root>/autonomous_runs/<model>/<map>/run-<unix>.
type Layout struct {
	fs   fsutil.FileSystem
	root string
}

// NewLayout returns a Layout over root. A nil fs uses the real filesystem.
func NewLayout(fsys fsutil.FileSystem, root string) *Layout {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Layout{fs: fsys, root: root}
}

// FS returns the filesystem the layout writes to.
func (l *Layout) FS() fsutil.FileSystem { return l.fs }

// RunsRoot returns the directory every run directory lives under.
func (l *Layout) RunsRoot() string {
	return filepath.Join(l.root, RunsDir)
}

// MapDir returns the directory holding every run of model on mapName.
func (l *Layout) MapDir(model, mapName string) string {
	return filepath.Join(l.RunsRoot(), model, mapName)
}

// CreateRunDir makes a fresh run directory stamped with at. If a directory
// for the same second already exists a numeric suffix is added.
func (l *Layout) CreateRunDir(model, mapName string, at time.Time) (string, error) {
	if err := security.ValidateName("model", model); err != nil {
		return "", err
	}
	if err := security.ValidateName("map", mapName); err != nil {
		return "", err
	}
	base := filepath.Join(l.MapDir(model, mapName), fmt.Sprintf("%s%d", runDirPrefix, at.Unix()))
	dir := base
	for n := 1; l.fs.Exists(dir); n++ {
		dir = fmt.Sprintf("%s-%d", base, n)
	}
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	monitoring.Logf("[RunStore] created run directory %s", dir)
	return dir, nil
}

// RunDirs lists existing run directories of model on mapName, oldest first.
func (l *Layout) RunDirs(model, mapName string) ([]string, error) {
	parent := l.MapDir(model, mapName)
	entries, err := l.fs.ReadDir(parent)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs in %s: %w", parent, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), runDirPrefix) {
			dirs = append(dirs, filepath.Join(parent, e.Name()))
		}
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		return runStamp(dirs[i]) < runStamp(dirs[j])
	})
	return dirs, nil
}

// runStamp extracts the unix seconds from a run directory name, or 0.
func runStamp(dir string) int64 {
	var sec int64
	fmt.Sscanf(strings.TrimPrefix(filepath.Base(dir), runDirPrefix), "%d", &sec)
	return sec
}

// SaveRun writes the trajectory to <dir>/run.csv.
func (l *Layout) SaveRun(dir string, run trajectory.Trajectory) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	w, err := l.fs.Create(filepath.Join(dir, RunCSV))
	if err != nil {
		return fmt.Errorf("create %s: %w", RunCSV, err)
	}
	if err := trajectory.WriteCSV(w, run); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", RunCSV, err)
	}
	return w.Close()
}

// LoadRun reads <dir>/run.csv.
func (l *Layout) LoadRun(dir string) (trajectory.Trajectory, error) {
	path := filepath.Join(dir, RunCSV)
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run: %w", err)
	}
	defer f.Close()

	run, err := trajectory.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("run %s: %w", path, err)
	}
	return run, nil
}
