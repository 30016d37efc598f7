package gaze

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/gaze.report/internal/session"
)

// Default position channels within a gaze sample.
const (
	DefaultXChannel = 1
	DefaultYChannel = 2
)

// Segment is the slice of the gaze stream belonging to one phase: the
// half-open sample range [StartIndex, EndIndex) with the two position
// channels, in acquisition order. Samples with a non-finite position (lost
// tracking) are left out of X and Y and counted in Dropped.
type Segment struct {
	Phase      string
	StartIndex int
	EndIndex   int
	X          []float64
	Y          []float64
	Dropped    int
}

// Len returns the number of samples in the segment.
func (s Segment) Len() int { return len(s.X) }

// Empty reports whether alignment produced no samples.
func (s Segment) Empty() bool { return len(s.X) == 0 }

// NearestIndex returns the index i minimising |t - timestamps[i]|.
// timestamps must be strictly increasing. Ties go to the lower index and
// queries outside the range clamp to the first or last index. It returns -1
// only for an empty slice.
func NearestIndex(timestamps []float64, t float64) int {
	n := len(timestamps)
	if n == 0 {
		return -1
	}
	i := sort.SearchFloat64s(timestamps, t)
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	if t-timestamps[i-1] <= timestamps[i]-t {
		return i - 1
	}
	return i
}

// Aligner maps phase windows onto the gaze stream's sample grid.
type Aligner struct {
	stream string
	ts     []float64
	values [][]float64
	xCh    int
	yCh    int
}

// NewAligner checks that every sample of the gaze stream carries the x and
// y channels.
func NewAligner(st session.Stream, xChannel, yChannel int) (*Aligner, error) {
	if st.IsText() {
		return nil, fmt.Errorf("gaze stream %q carries string samples", st.Name)
	}
	if xChannel < 0 || yChannel < 0 {
		return nil, fmt.Errorf("invalid position channels (%d, %d)", xChannel, yChannel)
	}
	need := max(xChannel, yChannel) + 1
	for i, row := range st.Values {
		if len(row) < need {
			return nil, &ChannelError{Stream: st.Name, Sample: i, Channels: len(row), Need: need}
		}
	}
	return &Aligner{
		stream: st.Name,
		ts:     st.Timestamps,
		values: st.Values,
		xCh:    xChannel,
		yCh:    yChannel,
	}, nil
}

// Index returns the gaze sample nearest to t.
func (a *Aligner) Index(t float64) int {
	return NearestIndex(a.ts, t)
}

// Segment slices the gaze samples between the window's start and end
// markers. The end sample itself is excluded, as is any sample whose x or
// y is NaN or infinite.
func (a *Aligner) Segment(w PhaseWindow) Segment {
	seg := Segment{Phase: w.Phase}
	if len(a.ts) == 0 {
		return seg
	}
	start := a.Index(w.Start())
	end := a.Index(w.End())
	if end < start {
		end = start
	}
	seg.StartIndex, seg.EndIndex = start, end
	seg.X = make([]float64, 0, end-start)
	seg.Y = make([]float64, 0, end-start)
	for _, row := range a.values[start:end] {
		x, y := row[a.xCh], row[a.yCh]
		if !finite(x) || !finite(y) {
			seg.Dropped++
			continue
		}
		seg.X = append(seg.X, x)
		seg.Y = append(seg.Y, y)
	}
	return seg
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Segments aligns every window, preserving order.
func (a *Aligner) Segments(windows []PhaseWindow) []Segment {
	out := make([]Segment, len(windows))
	for i, w := range windows {
		out[i] = a.Segment(w)
	}
	return out
}
