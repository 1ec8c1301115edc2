// Package units provides shared constants and conversion for distance units
// reported by the sensor board.
package units

import "strings"

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToMillimeters converts a distance in the given unit to millimetres.
// The recognition core works in millimetres throughout; an empty unit is
// taken to already be millimetres.
func ToMillimeters(v float64, unit string) float64 {
	switch unit {
	case CM:
		return v * 10
	case M:
		return v * 1000
	default:
		return v
	}
}
