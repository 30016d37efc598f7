package gaze

import (
	"fmt"

	"github.com/banshee-data/gaze.report/internal/session"
)

// EndSuffix is appended to a phase name to form its end label.
const EndSuffix = "_end"

// DefaultPhases is the stimulus order used by the experiment.
var DefaultPhases = []string{"stare", "pursuit", "vor", "jump", "brightness"}

// EndLabel returns the marker label closing phase.
func EndLabel(phase string) string {
	return phase + EndSuffix
}

// Marker is one labelled event at its scan position in the marker stream.
type Marker struct {
	Position  int
	Label     string
	Timestamp float64
}

// PhaseWindow is the resolved time extent of one phase.
type PhaseWindow struct {
	Phase       string
	StartMarker Marker
	EndMarker   Marker
}

// Start returns the start marker timestamp.
func (w PhaseWindow) Start() float64 { return w.StartMarker.Timestamp }

// End returns the end marker timestamp.
func (w PhaseWindow) End() float64 { return w.EndMarker.Timestamp }

// Duration returns End - Start in stream seconds.
func (w PhaseWindow) Duration() float64 { return w.End() - w.Start() }

// MarkerIndex is the ordered list of markers built by one pass over the
// marker stream, with the scan positions of each label.
type MarkerIndex struct {
	markers []Marker
	byLabel map[string][]int
}

// BuildMarkerIndex scans the marker stream once.
func BuildMarkerIndex(st session.Stream) (*MarkerIndex, error) {
	if !st.IsText() {
		return nil, fmt.Errorf("marker stream %q carries no string samples", st.Name)
	}
	mi := &MarkerIndex{
		markers: make([]Marker, st.Len()),
		byLabel: make(map[string][]int),
	}
	for i := range st.Timestamps {
		label := st.Label(i)
		mi.markers[i] = Marker{Position: i, Label: label, Timestamp: st.Timestamps[i]}
		mi.byLabel[label] = append(mi.byLabel[label], i)
	}
	return mi, nil
}

// Len returns the number of markers.
func (mi *MarkerIndex) Len() int { return len(mi.markers) }

// Markers returns a copy of the ordered marker list.
func (mi *MarkerIndex) Markers() []Marker {
	return append([]Marker(nil), mi.markers...)
}

// Occurrences returns every marker carrying label, in scan order.
func (mi *MarkerIndex) Occurrences(label string) []Marker {
	pos := mi.byLabel[label]
	out := make([]Marker, len(pos))
	for i, p := range pos {
		out[i] = mi.markers[p]
	}
	return out
}

// resolver pairs start and end markers by scan position. Each occurrence is
// consumed at most once, so a repeated phase name takes the next distinct
// event rather than the first one carrying that label.
type resolver struct {
	mi     *MarkerIndex
	cursor map[string]int
}

// next returns the first unconsumed occurrence of label positioned after
// the given scan position.
func (r *resolver) next(label string, after int) (Marker, bool) {
	positions := r.mi.byLabel[label]
	for i := r.cursor[label]; i < len(positions); i++ {
		if positions[i] > after {
			r.cursor[label] = i + 1
			return r.mi.markers[positions[i]], true
		}
	}
	return Marker{}, false
}

func (r *resolver) resolve(phase string) (PhaseWindow, error) {
	start, ok := r.next(phase, -1)
	if !ok {
		return PhaseWindow{}, &MissingMarkerError{Phase: phase, Label: phase}
	}
	end, ok := r.next(EndLabel(phase), start.Position)
	if !ok {
		return PhaseWindow{}, &MissingMarkerError{Phase: phase, Label: EndLabel(phase)}
	}
	if !(end.Timestamp > start.Timestamp) {
		return PhaseWindow{}, &OutOfOrderError{Phase: phase, Start: start.Timestamp, End: end.Timestamp}
	}
	return PhaseWindow{Phase: phase, StartMarker: start, EndMarker: end}, nil
}

// Resolve returns one window per phase, in phase order, failing on the
// first phase that cannot be resolved.
func (mi *MarkerIndex) Resolve(phases []string) ([]PhaseWindow, error) {
	r := &resolver{mi: mi, cursor: make(map[string]int)}
	out := make([]PhaseWindow, 0, len(phases))
	for _, p := range phases {
		w, err := r.resolve(p)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// ResolveAll resolves every phase, returning the windows that resolved (in
// phase order) and the error for each phase that did not.
func (mi *MarkerIndex) ResolveAll(phases []string) ([]PhaseWindow, map[string]error) {
	r := &resolver{mi: mi, cursor: make(map[string]int)}
	out := make([]PhaseWindow, 0, len(phases))
	errs := make(map[string]error)
	for _, p := range phases {
		w, err := r.resolve(p)
		if err != nil {
			if _, dup := errs[p]; !dup {
				errs[p] = err
			}
			continue
		}
		out = append(out, w)
	}
	return out, errs
}
