package gaze

import (
	"errors"
	"fmt"
	"strings"
)

// MissingMarkerError reports a phase whose start or end label could not be
// resolved in the marker stream.
type MissingMarkerError struct {
	Phase string
	Label string
}

func (e *MissingMarkerError) Error() string {
	return fmt.Sprintf("phase %q: marker %q not found", e.Phase, e.Label)
}

// OutOfOrderError reports a phase whose end marker does not come after its
// start marker in time.
type OutOfOrderError struct {
	Phase string
	Start float64
	End   float64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("phase %q: end %.6f does not exceed start %.6f", e.Phase, e.End, e.Start)
}

// ChannelError reports a gaze stream without the requested position
// channels.
type ChannelError struct {
	Stream   string
	Sample   int
	Channels int
	Need     int
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("stream %q sample %d has %d channels, need at least %d", e.Stream, e.Sample, e.Channels, e.Need)
}

// CheckKind names one integrity check.
type CheckKind string

const (
	CheckPhaseCount     CheckKind = "phase_count"
	CheckMissingMarkers CheckKind = "missing_markers"
	CheckOutOfOrder     CheckKind = "out_of_order"
	CheckEmptySegment   CheckKind = "empty_segment"
)

// Sentinels matched with errors.Is against an *IntegrityError.
var (
	ErrPhaseCount     = errors.New("resolved phase count mismatch")
	ErrMissingMarkers = errors.New("phase has no markers")
	ErrOutOfOrder     = errors.New("phase markers out of order")
	ErrEmptySegment   = errors.New("phase yielded an empty gaze segment")
)

func (k CheckKind) sentinel() error {
	switch k {
	case CheckPhaseCount:
		return ErrPhaseCount
	case CheckMissingMarkers:
		return ErrMissingMarkers
	case CheckOutOfOrder:
		return ErrOutOfOrder
	case CheckEmptySegment:
		return ErrEmptySegment
	}
	return nil
}

// IntegrityFailure is one failed check. Phase is empty for session-wide
// checks.
type IntegrityFailure struct {
	Phase string
	Check CheckKind
	Cause error
}

func (f IntegrityFailure) err() error {
	s := f.Check.sentinel()
	if f.Cause != nil {
		return fmt.Errorf("%w: %w", s, f.Cause)
	}
	return s
}

// IntegrityError aggregates every failed check for a session.
type IntegrityError struct {
	Failures []IntegrityFailure
}

func (e *IntegrityError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Phase == "" {
			parts = append(parts, string(f.Check))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s[%s]", f.Check, f.Phase))
	}
	return "integrity check failed: " + strings.Join(parts, ", ")
}

// Unwrap exposes the per-failure errors so errors.Is and errors.As reach
// both the check sentinels and the underlying resolution errors.
func (e *IntegrityError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.err())
	}
	return errs
}

// Phases returns the distinct phases that failed, in failure order.
func (e *IntegrityError) Phases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range e.Failures {
		if f.Phase == "" || seen[f.Phase] {
			continue
		}
		seen[f.Phase] = true
		out = append(out, f.Phase)
	}
	return out
}
