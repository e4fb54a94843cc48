package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeather(t *testing.T) {
	tests := []struct {
		in   string
		want Weather
	}{
		{"0", 0},
		{"14", 14},
		{"WetNoon", 3},
		{"hardrainsunset", 13},
		{" ClearNoon ", 1},
	}
	for _, tt := range tests {
		got, err := ParseWeather(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"15", "-1", "Snow", ""} {
		_, err := ParseWeather(bad)
		assert.Error(t, err, bad)
	}
}

func TestWeatherString(t *testing.T) {
	all := Weathers()
	assert.Len(t, all, 15)
	assert.Equal(t, "Default", all[0].String())
	assert.Equal(t, "SoftRainSunset", all[14].String())
	assert.Equal(t, "Weather(20)", Weather(20).String())

	for _, w := range all {
		back, err := ParseWeather(w.String())
		require.NoError(t, err)
		assert.Equal(t, w, back)
	}
}
