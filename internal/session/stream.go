// Package session provides the read-only view over a recorded session: a set
// of named streams, each an ordered sequence of timestamped samples.
//
// A StreamSet is produced by a loader (see the xdf subpackage) and handed to
// the analysis pipeline. Nothing downstream mutates it.
package session

import (
	"fmt"
)

// Stream is one named, time-ordered signal. Numeric streams populate
// Values (one row per sample, one column per channel); string streams such
// as marker streams populate Labels instead.
type Stream struct {
	Name         string
	Type         string
	ChannelCount int

	// NominalRate is the declared sampling rate in Hz. Zero marks an
	// irregular stream (markers).
	NominalRate float64
	// EffectiveRate is the rate measured from the recorded timestamps.
	// Zero when unknown.
	EffectiveRate float64

	Timestamps []float64
	Values     [][]float64
	Labels     [][]string
}

// Len returns the number of samples in the stream.
func (s Stream) Len() int {
	return len(s.Timestamps)
}

// IsText reports whether the stream carries string samples.
func (s Stream) IsText() bool {
	return s.Labels != nil
}

// Label returns the first string channel of sample i, or "" for numeric
// streams and empty samples.
func (s Stream) Label(i int) string {
	if i < 0 || i >= len(s.Labels) || len(s.Labels[i]) == 0 {
		return ""
	}
	return s.Labels[i][0]
}

// SampleRate prefers the measured rate and falls back to the nominal one.
func (s Stream) SampleRate() float64 {
	if s.EffectiveRate > 0 {
		return s.EffectiveRate
	}
	return s.NominalRate
}

// Validate checks the stream invariants: one timestamp per sample and
// strictly increasing timestamps.
func (s Stream) Validate() error {
	n := len(s.Timestamps)
	if s.Labels != nil && len(s.Labels) != n {
		return fmt.Errorf("stream %q: %d labels for %d timestamps", s.Name, len(s.Labels), n)
	}
	if s.Values != nil && len(s.Values) != n {
		return fmt.Errorf("stream %q: %d samples for %d timestamps", s.Name, len(s.Values), n)
	}
	for i := 1; i < n; i++ {
		if !(s.Timestamps[i] > s.Timestamps[i-1]) {
			return fmt.Errorf("stream %q: timestamp %d (%.6f) does not follow %.6f",
				s.Name, i, s.Timestamps[i], s.Timestamps[i-1])
		}
	}
	return nil
}

// EstimateRate returns (n-1)/(last-first) for the given timestamps, or 0 if
// fewer than two samples are present.
func EstimateRate(timestamps []float64) float64 {
	n := len(timestamps)
	if n < 2 {
		return 0
	}
	span := timestamps[n-1] - timestamps[0]
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span
}
