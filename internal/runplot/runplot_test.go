package runplot

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func circle(n int, r float64) trajectory.Trajectory {
	out := make(trajectory.Trajectory, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = trajectory.Point{X: 50 + r*math.Cos(a), Y: -20 + r*math.Sin(a)}
	}
	return out
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, "Town04", circle(120, 30), circle(200, 31)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), "output is not a PNG")

	buf.Reset()
	require.NoError(t, WritePNG(&buf, "no reference", circle(10, 5), nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestWritePNG_SinglePoint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, "stub", trajectory.Trajectory{{X: 1, Y: 1}}, nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestWritePNG_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WritePNG(&buf, "x", nil, circle(10, 1)), trajectory.ErrEmpty)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	err := RenderHTML(&buf, "Town04 run", circle(50, 10), circle(80, 10), ChartOptions{Subtitle: "score=12.5"})
	require.NoError(t, err)

	html := buf.String()
	for _, want := range []string{"Town04 run", "score=12.5", "reference", "start", "end"} {
		assert.True(t, strings.Contains(html, want), "chart missing %q", want)
	}
}

func TestRenderHTML_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderHTML(&buf, "x", trajectory.Trajectory{}, nil, ChartOptions{}), trajectory.ErrEmpty)
}

func TestSaveToFileSystem(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	run := circle(40, 8)

	require.NoError(t, SavePNG(mfs, "/run/Town01.png", "Town01", run, nil))
	require.NoError(t, SaveHTML(mfs, "/run/Town01.html", "Town01", run, nil, ChartOptions{}))

	data, err := mfs.ReadFile("/run/Town01.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))

	data, err = mfs.ReadFile("/run/Town01.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html")
}
