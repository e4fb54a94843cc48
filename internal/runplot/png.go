// Package runplot draws a driven run over its map's reference line, as a
// static PNG for the run directory and as an interactive HTML chart.
package runplot

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/trajectory"
)

var (
	runColor       = color.RGBA{R: 220, A: 255}
	referenceColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	startColor     = color.RGBA{G: 160, A: 255}
	endColor       = color.RGBA{B: 220, A: 255}
)

// Size is the edge length of the square PNG.
const Size = 8 * vg.Inch

func toXYs(t trajectory.Trajectory) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i, p := range t {
		pts[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return pts
}

// newPlot builds the run plot. Run points are red, the first point is a
// large green marker and the last a large blue one. reference may be nil.
func newPlot(title string, run, reference trajectory.Trajectory) (*plot.Plot, error) {
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("plot run: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	if len(reference) > 0 {
		refLine, err := plotter.NewLine(toXYs(reference))
		if err != nil {
			return nil, err
		}
		refLine.Color = referenceColor
		refLine.Width = vg.Points(1)
		p.Add(refLine)
		p.Legend.Add("reference", refLine)
	}

	pts, err := plotter.NewScatter(toXYs(run))
	if err != nil {
		return nil, err
	}
	pts.GlyphStyle.Color = runColor
	pts.GlyphStyle.Radius = vg.Points(1.5)
	pts.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(pts)
	p.Legend.Add("run", pts)

	first, _ := run.Start()
	last, _ := run.Last()
	for _, m := range []struct {
		at    trajectory.Point
		color color.Color
		label string
	}{
		{first, startColor, "start"},
		{last, endColor, "end"},
	} {
		s, err := plotter.NewScatter(plotter.XYs{{X: m.at.X, Y: m.at.Y}})
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = m.color
		s.GlyphStyle.Radius = vg.Points(8)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(m.label, s)
	}

	setSquareAxes(p, run, reference)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// setSquareAxes gives both axes the same span so the track is not
// distorted.
func setSquareAxes(p *plot.Plot, run, reference trajectory.Trajectory) {
	bounds := run.Bounds()
	if len(reference) > 0 {
		bounds = bounds.Union(reference.Bounds())
	}
	center := bounds.Center()
	size := bounds.Size()
	half := math.Max(size.X, size.Y)/2*1.05 + 1
	p.X.Min, p.X.Max = center.X-half, center.X+half
	p.Y.Min, p.Y.Max = center.Y-half, center.Y+half
}

// WritePNG renders the run plot as PNG to w.
func WritePNG(w io.Writer, title string, run, reference trajectory.Trajectory) error {
	p, err := newPlot(title, run, reference)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Size, Size, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG renders the run plot to path on fsys.
func SavePNG(fsys fsutil.FileSystem, path, title string, run, reference trajectory.Trajectory) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePNG(f, title, run, reference); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
