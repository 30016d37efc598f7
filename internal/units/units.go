// Package units provides constants, validation and conversion for gaze
// velocity units.
package units

// Velocity names the unit a velocity trace is reported in.
type Velocity string

// Unit constants. Positions are in screen-normalised coordinates.
const (
	PerSample Velocity = "per_sample"
	PerSecond Velocity = "per_second"
)

// ValidVelocityUnits contains all valid unit values
var ValidVelocityUnits = []Velocity{PerSample, PerSecond}

// IsValidVelocityUnit checks if the given unit is in the list of valid units
func IsValidVelocityUnit(unit string) bool {
	for _, valid := range ValidVelocityUnits {
		if Velocity(unit) == valid {
			return true
		}
	}
	return false
}

// GetValidVelocityUnitsString returns a comma-separated string of valid
// units for error messages
func GetValidVelocityUnitsString() string {
	return "per_sample, per_second"
}

// Label is the axis label for plots.
func (v Velocity) Label() string {
	switch v {
	case PerSecond:
		return "Velocity (units/s)"
	default:
		return "Velocity (units/sample)"
	}
}

// ConvertVelocity converts a velocity from position per sample to the
// target units. sampleRate is in Hz.
func ConvertVelocity(perSample, sampleRate float64, target Velocity) float64 {
	switch target {
	case PerSecond:
		return perSample * sampleRate
	default:
		return perSample
	}
}

// ConvertTrace converts a whole velocity trace into a new slice.
func ConvertTrace(perSample []float64, sampleRate float64, target Velocity) []float64 {
	out := make([]float64, len(perSample))
	for i, v := range perSample {
		out[i] = ConvertVelocity(v, sampleRate, target)
	}
	return out
}
