// Package reference persists the canonical racing line for each map.
//
// A map has at most one reference line, stored as <root>/<map>/<map>.csv
// with an "x,y" header. The store never fabricates a line: a missing file is
// reported as ErrNotFound so callers can treat it as a configuration error.
package reference

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/monitoring"
	"github.com/banshee-data/racingline/internal/security"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// ErrNotFound is returned when a map has no stored reference line.
var ErrNotFound = errors.New("reference line not found")

// Dir is the directory under the output root that holds reference lines.
const Dir = "reference"

// Store reads and writes reference lines below a root directory.
type Store struct {
	fs   fsutil.FileSystem
	root string
}

// NewStore returns a Store rooted at root. A nil fs uses the real filesystem.
func NewStore(fsys fsutil.FileSystem, root string) *Store {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{fs: fsys, root: root}
}

// Path returns the file a map's reference line lives in.
func (s *Store) Path(mapName string) string {
	return filepath.Join(s.root, mapName, mapName+".csv")
}

// Load returns the reference line for mapName.
func (s *Store) Load(mapName string) (trajectory.Trajectory, error) {
	if err := security.ValidateName("map", mapName); err != nil {
		return nil, err
	}
	path := s.Path(mapName)
	f, err := s.fs.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w for map %q (expected %s)", ErrNotFound, mapName, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open reference for map %q: %w", mapName, err)
	}
	defer f.Close()

	line, err := trajectory.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", path, err)
	}
	if err := line.Validate(); err != nil {
		return nil, fmt.Errorf("reference %s: %w", path, err)
	}
	return line, nil
}

// Save writes line as the reference for mapName, replacing any previous one.
func (s *Store) Save(mapName string, line trajectory.Trajectory) error {
	if err := security.ValidateName("map", mapName); err != nil {
		return err
	}
	if err := line.Validate(); err != nil {
		return fmt.Errorf("reference for map %q: %w", mapName, err)
	}

	path := s.Path(mapName)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create reference dir: %w", err)
	}
	w, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create reference file: %w", err)
	}
	if err := trajectory.WriteCSV(w, line); err != nil {
		w.Close()
		return fmt.Errorf("write reference %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close reference %s: %w", path, err)
	}

	monitoring.Logf("[Reference] saved %d points for map %s to %s", len(line), mapName, path)
	return nil
}

// Maps lists map names that have a reference line, sorted.
func (s *Store) Maps() ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list reference dir: %w", err)
	}

	var maps []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if s.fs.Exists(s.Path(e.Name())) {
			maps = append(maps, e.Name())
		}
	}
	return maps, nil
}
