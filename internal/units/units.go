// Package units converts vehicle speeds between the simulator's metres per
// second and the units used in speed bands and reports.
package units

import "fmt"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

const kmhPerMps = 3.6

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Validate returns an error naming the valid units when unit is unknown.
func Validate(unit string) error {
	if !IsValid(unit) {
		return fmt.Errorf("invalid speed unit %q (valid: %s)", unit, GetValidUnitsString())
	}
	return nil
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ToKmh converts metres per second to km/h.
func ToKmh(mps float64) float64 {
	return mps * kmhPerMps
}

// FromKmh converts km/h to metres per second.
func FromKmh(kmh float64) float64 {
	return kmh / kmhPerMps
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return ToKmh(speedMPS)
	default:
		return speedMPS
	}
}
