package runplot

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// ChartOptions tune the HTML chart.
type ChartOptions struct {
	// AssetsHost overrides where the echarts scripts are loaded from.
	// Empty uses the go-echarts default CDN.
	AssetsHost string
	// Subtitle is shown under the title, e.g. the score.
	Subtitle string
}

func scatterData(t trajectory.Trajectory) []opts.ScatterData {
	data := make([]opts.ScatterData, len(t))
	for i, p := range t {
		data[i] = opts.ScatterData{Value: []interface{}{p.X, p.Y, i}}
	}
	return data
}

// RenderHTML writes an interactive overlay of run on reference to w.
// reference may be nil.
func RenderHTML(w io.Writer, title string, run, reference trajectory.Trajectory, o ChartOptions) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("chart run: %w", err)
	}

	bounds := run.Bounds()
	if len(reference) > 0 {
		bounds = bounds.Union(reference.Bounds())
	}
	center := bounds.Center()
	half := math.Max(bounds.Size().X, bounds.Size().Y)/2*1.05 + 1

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px", AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: center.X - half, Max: center.X + half, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: center.Y - half, Max: center.Y + half, Name: "y", NameLocation: "middle", NameGap: 30}),
	)

	if len(reference) > 0 {
		scatter.AddSeries("reference", scatterData(reference),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#808080"}),
		)
	}
	scatter.AddSeries("run", scatterData(run),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#dc0000"}),
	)

	first, _ := run.Start()
	last, _ := run.Last()
	scatter.AddSeries("start", scatterData(trajectory.Trajectory{first}),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 18}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#00a000"}),
	)
	scatter.AddSeries("end", scatterData(trajectory.Trajectory{last}),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 18}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#0000dc"}),
	)

	return scatter.Render(w)
}

// SaveHTML renders the chart to path on fsys.
func SaveHTML(fsys fsutil.FileSystem, path, title string, run, reference trajectory.Trajectory, o ChartOptions) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := RenderHTML(f, title, run, reference, o); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
