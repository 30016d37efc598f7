// Package testutil provides shared test helpers and session fixtures.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/gaze.report/internal/session"
	"github.com/banshee-data/gaze.report/internal/session/synth"
	"github.com/banshee-data/gaze.report/internal/session/xdf"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// ShortSpec is a small synthetic session: the five default phases of two
// seconds each at 60 Hz with no noise.
func ShortSpec() synth.Spec {
	spec := synth.DefaultSpec()
	spec.PhaseDuration = 2
	spec.Gap = 0.5
	spec.Noise = 0
	return spec
}

// NewSession builds an in-memory session from spec.
func NewSession(t testing.TB, source string, spec synth.Spec) *session.Set {
	t.Helper()
	set, err := synth.Session(source, spec)
	AssertNoError(t, err)
	return set
}

// WriteSession writes spec as an XDF file named name under a temporary
// directory and returns its path.
func WriteSession(t testing.TB, name string, spec synth.Spec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	AssertNoError(t, xdf.Create(path, synth.Streams(spec)...))
	return path
}

// WithoutMarker returns a copy of markers with every sample labelled label
// removed.
func WithoutMarker(markers session.Stream, label string) session.Stream {
	out := markers
	out.Timestamps, out.Labels = nil, nil
	for i := range markers.Timestamps {
		if markers.Label(i) == label {
			continue
		}
		out.Timestamps = append(out.Timestamps, markers.Timestamps[i])
		out.Labels = append(out.Labels, markers.Labels[i])
	}
	return out
}
