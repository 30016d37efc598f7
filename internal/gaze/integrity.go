package gaze

import (
	"errors"
)

// CheckIntegrity validates a session's resolved phases before any features
// are computed. It returns nil on pass or an *IntegrityError naming every
// failing phase and check. resolveErrs holds the per-phase errors returned
// by ResolveAll.
func CheckIntegrity(phases []string, windows []PhaseWindow, segments []Segment, resolveErrs map[string]error) error {
	var failures []IntegrityFailure

	if len(windows) != len(phases) {
		failures = append(failures, IntegrityFailure{Check: CheckPhaseCount})
	}

	seen := make(map[string]bool, len(phases))
	for _, p := range phases {
		err, ok := resolveErrs[p]
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		var ooo *OutOfOrderError
		if errors.As(err, &ooo) {
			failures = append(failures, IntegrityFailure{Phase: p, Check: CheckOutOfOrder, Cause: err})
			continue
		}
		failures = append(failures, IntegrityFailure{Phase: p, Check: CheckMissingMarkers, Cause: err})
	}

	for _, seg := range segments {
		if seg.Empty() {
			failures = append(failures, IntegrityFailure{Phase: seg.Phase, Check: CheckEmptySegment})
		}
	}

	if len(failures) > 0 {
		return &IntegrityError{Failures: failures}
	}
	return nil
}
