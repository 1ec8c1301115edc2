package units

import (
	"math"
	"testing"
)

func TestToMillimeters(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		unit     string
		expected float64
	}{
		{"mm unchanged", 38, MM, 38},
		{"cm to mm", 3.8, CM, 38},
		{"m to mm", 1.25, M, 1250},
		{"empty unit is mm", 12, "", 12},
		{"unknown unit is mm", 12, "furlong", 12},
		{"negative offsets keep their sign", -8.3, CM, -83},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToMillimeters(tt.v, tt.unit)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ToMillimeters(%f, %s) = %f, want %f", tt.v, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	for _, u := range []string{"", "MM", "inch"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true, want false", u)
		}
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "mm, cm, m" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}
