package units

import (
	"testing"
)

func TestIsValidVelocityUnit(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid per_sample", "per_sample", true},
		{"valid per_second", "per_second", true},
		{"invalid unit", "deg_per_second", false},
		{"empty unit", "", false},
		{"uppercase", "PER_SECOND", false}, // Case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidVelocityUnit(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValidVelocityUnit(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidVelocityUnitsString(t *testing.T) {
	result := GetValidVelocityUnitsString()
	expected := "per_sample, per_second"
	if result != expected {
		t.Errorf("GetValidVelocityUnitsString() = %s, want %s", result, expected)
	}
}

func TestConvertVelocity(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		rate     float64
		unit     Velocity
		expected float64
	}{
		{"per sample unchanged", 0.02, 60, PerSample, 0.02},
		{"per second at 60 Hz", 0.02, 60, PerSecond, 1.2},
		{"zero", 0, 120, PerSecond, 0},
		{"unknown unit falls back", 0.5, 60, Velocity("furlongs"), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertVelocity(tt.v, tt.rate, tt.unit)
			if diff := got - tt.expected; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("ConvertVelocity(%v, %v, %s) = %v, want %v", tt.v, tt.rate, tt.unit, got, tt.expected)
			}
		})
	}
}

func TestConvertTrace(t *testing.T) {
	in := []float64{0, 0.5, 1}
	out := ConvertTrace(in, 10, PerSecond)
	want := []float64{0, 5, 10}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if in[1] != 0.5 {
		t.Error("input trace was modified")
	}
}

func TestLabel(t *testing.T) {
	if got := PerSecond.Label(); got != "Velocity (units/s)" {
		t.Errorf("PerSecond.Label() = %q", got)
	}
	if got := PerSample.Label(); got != "Velocity (units/sample)" {
		t.Errorf("PerSample.Label() = %q", got)
	}
}
