// Package datasummary reports the steering balance of gathered training
// data: how many recorded frames steer left, right or straight, per session
// directory and overall.
package datasummary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/monitoring"
)

// MeasurementsFile is the per-session file of frame,steer,throttle,brake rows.
const MeasurementsFile = "measurements.csv"

// CenterBand is the steering magnitude below which a frame counts as straight.
const CenterBand = 0.05

// ErrNoData is returned when no measurements were found under the root.
var ErrNoData = errors.New("no measurements found")

// Measurement is one recorded control sample.
type Measurement struct {
	Frame    int
	Steer    float64
	Throttle float64
	Brake    float64
}

// Balance counts frames by steering direction.
type Balance struct {
	Left   int `json:"left"`
	Center int `json:"center"`
	Right  int `json:"right"`
}

// Total returns the number of classified frames.
func (b Balance) Total() int { return b.Left + b.Center + b.Right }

func (b *Balance) add(steer float64) {
	switch {
	case steer <= -CenterBand:
		b.Left++
	case steer >= CenterBand:
		b.Right++
	default:
		b.Center++
	}
}

// Stats describes a sample the way a dataframe describe() would.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Describe computes Stats over xs. Quartiles are empirical.
func Describe(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	s := Stats{
		Count:  len(xs),
		Mean:   stat.Mean(xs, nil),
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}

// DirSummary is the balance of one session directory.
type DirSummary struct {
	Dir     string  `json:"dir"`
	Balance Balance `json:"balance"`
}

// Report is the full summary of a data root.
type Report struct {
	Dirs     []DirSummary `json:"dirs"`
	Total    Balance      `json:"total"`
	Steering Stats        `json:"steering"`
	// Throttle is throttle minus brake per frame.
	Throttle Stats `json:"throttle"`
}

// ReadMeasurements parses headerless frame,steer,throttle,brake rows. A
// non-numeric first row is taken as a header and skipped.
func ReadMeasurements(r io.Reader) ([]Measurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Measurement
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("line %d: want 4 fields, got %d", line, len(rec))
		}
		m, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
}

func parseRow(rec []string) (Measurement, error) {
	var m Measurement
	frame, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil {
		return m, fmt.Errorf("invalid frame %q", rec[0])
	}
	m.Frame = int(frame)
	for i, dst := range []*float64{&m.Steer, &m.Throttle, &m.Brake} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return m, fmt.Errorf("invalid value %q", rec[i+1])
		}
		*dst = v
	}
	return m, nil
}

// Summarize walks root for directories holding a measurements file and
// builds the report. Directories are visited in lexical order.
func Summarize(fsys fsutil.FileSystem, root string) (*Report, error) {
	logf := monitoring.Component("DataSummary")
	logf("loading measurements under %s", root)

	dirs, err := sessionDirs(fsys, root)
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	var steers, throttles []float64
	for _, dir := range dirs {
		f, err := fsys.Open(filepath.Join(dir, MeasurementsFile))
		if err != nil {
			return nil, err
		}
		ms, err := ReadMeasurements(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}

		ds := DirSummary{Dir: dir}
		for _, m := range ms {
			ds.Balance.add(m.Steer)
			rep.Total.add(m.Steer)
			steers = append(steers, m.Steer)
			throttles = append(throttles, m.Throttle-m.Brake)
		}
		rep.Dirs = append(rep.Dirs, ds)
	}
	if len(steers) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoData, root)
	}
	rep.Steering = Describe(steers)
	rep.Throttle = Describe(throttles)
	logf("loaded %d frames from %d directories", len(steers), len(rep.Dirs))
	return rep, nil
}

func sessionDirs(fsys fsutil.FileSystem, root string) ([]string, error) {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if fsys.Exists(filepath.Join(dir, MeasurementsFile)) {
			out = append(out, dir)
		}
		sub, err := sessionDirs(fsys, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// WriteText prints the report in the plain layout used by the CLI.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, d := range r.Dirs {
		fmt.Fprintf(&b, "%s; Right: %d; Center: %d; Left: %d;\n", d.Dir, d.Balance.Right, d.Balance.Center, d.Balance.Left)
	}
	fmt.Fprintf(&b, "Directories count: %d\n", len(r.Dirs))
	fmt.Fprintf(&b, "Data count: %d\n", r.Total.Total())

	writeStats(&b, "steer", r.Steering)
	writeStats(&b, "throttle", r.Throttle)

	t := r.Total
	n := t.Total()
	fmt.Fprintf(&b, "   All: %d; Right: %d; Center: %d; Left: %d;\n", n, t.Right, t.Center, t.Left)
	fmt.Fprintf(&b, "  LEFT: %.02f%% %d/%d\n", percent(t.Left, n), t.Left, n)
	fmt.Fprintf(&b, " RIGHT: %.02f%% %d/%d\n", percent(t.Right, n), t.Right, n)
	fmt.Fprintf(&b, "CENTER: %.02f%% %d/%d\n", percent(t.Center, n), t.Center, n)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeStats(b *strings.Builder, name string, s Stats) {
	fmt.Fprintf(b, "%s:\n", name)
	fmt.Fprintf(b, "  count %d\n  mean  %.6f\n  std   %.6f\n  min   %.6f\n  25%%   %.6f\n  50%%   %.6f\n  75%%   %.6f\n  max   %.6f\n",
		s.Count, s.Mean, s.StdDev, s.Min, s.Q1, s.Median, s.Q3, s.Max)
}

func percent(k, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(k) / float64(n) * 100
}
