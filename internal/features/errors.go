package features

import "fmt"

// Kind names one feature computation.
type Kind string

const (
	KindDistance   Kind = "distance"
	KindDispersion Kind = "dispersion"
	KindVelocity   Kind = "velocity"
	KindFrequency  Kind = "frequency"
)

// Minimum segment lengths per feature.
const (
	MinDistanceSamples   = 1
	MinDispersionSamples = 1
	MinVelocitySamples   = 2
	MinFrequencySamples  = 4
)

// InsufficientDataError reports a segment too short for a feature.
type InsufficientDataError struct {
	Feature Kind
	Have    int
	Need    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d samples, have %d", e.Feature, e.Need, e.Have)
}

// FeatureError ties a failed computation to its feature.
type FeatureError struct {
	Feature Kind
	Err     error
}

func (e FeatureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Feature, e.Err)
}

func (e FeatureError) Unwrap() error { return e.Err }

func need(kind Kind, x, y []float64, min int) error {
	if len(x) != len(y) {
		return fmt.Errorf("%s: x has %d samples, y has %d", kind, len(x), len(y))
	}
	if len(x) < min {
		return &InsufficientDataError{Feature: kind, Have: len(x), Need: min}
	}
	return nil
}
