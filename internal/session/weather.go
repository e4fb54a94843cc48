package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Weather is a simulator weather preset identifier.
type Weather int

var weatherNames = [...]string{
	"Default",
	"ClearNoon",
	"CloudyNoon",
	"WetNoon",
	"WetCloudyNoon",
	"MidRainyNoon",
	"HardRainNoon",
	"SoftRainNoon",
	"ClearSunset",
	"CloudySunset",
	"WetSunset",
	"WetCloudySunset",
	"MidRainSunset",
	"HardRainSunset",
	"SoftRainSunset",
}

// Valid reports whether w is a known preset.
func (w Weather) Valid() bool {
	return w >= 0 && int(w) < len(weatherNames)
}

func (w Weather) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weather(%d)", int(w))
	}
	return weatherNames[w]
}

// Weathers returns every known preset in id order.
func Weathers() []Weather {
	out := make([]Weather, len(weatherNames))
	for i := range out {
		out[i] = Weather(i)
	}
	return out
}

// ParseWeather accepts a preset id ("3") or name ("WetNoon", any case).
func ParseWeather(s string) (Weather, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		w := Weather(n)
		if !w.Valid() {
			return 0, fmt.Errorf("unknown weather preset %d (valid: 0-%d)", n, len(weatherNames)-1)
		}
		return w, nil
	}
	for i, name := range weatherNames {
		if strings.EqualFold(name, s) {
			return Weather(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weather preset %q", s)
}
