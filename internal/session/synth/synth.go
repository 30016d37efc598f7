// Package synth generates synthetic eye-tracking sessions: a marker stream
// bracketing each phase and a gaze stream whose motion depends on the phase.
package synth

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/gaze.report/internal/session"
)

// Spec describes a synthetic session. Zero fields take the defaults of
// DefaultSpec.
type Spec struct {
	Phases        []string
	MarkerStream  string
	GazeStream    string
	Start         float64 // first timestamp, seconds
	PhaseDuration float64 // seconds between a phase marker and its end marker
	Gap           float64 // seconds between phases
	Rate          float64 // gaze sample rate, Hz
	Noise         float64 // standard deviation of added position noise
	Seed          uint64
}

// DefaultSpec matches the experiment's stream names and phase order.
func DefaultSpec() Spec {
	return Spec{
		Phases:        []string{"stare", "pursuit", "vor", "jump", "brightness"},
		MarkerStream:  "Stimulus_Markers",
		GazeStream:    "TobiiGaze",
		Start:         100,
		PhaseDuration: 10,
		Gap:           1,
		Rate:          60,
		Noise:         0.002,
		Seed:          1,
	}
}

func (s Spec) withDefaults() Spec {
	d := DefaultSpec()
	if s.Phases == nil {
		s.Phases = d.Phases
	}
	if s.MarkerStream == "" {
		s.MarkerStream = d.MarkerStream
	}
	if s.GazeStream == "" {
		s.GazeStream = d.GazeStream
	}
	if s.PhaseDuration <= 0 {
		s.PhaseDuration = d.PhaseDuration
	}
	if s.Gap < 0 {
		s.Gap = 0
	}
	if s.Rate <= 0 {
		s.Rate = d.Rate
	}
	return s
}

// BeginLabel opens every generated marker stream.
const BeginLabel = "stimulus_begin"

// Markers returns the marker stream for spec: BeginLabel at Start, then each
// phase and its end label.
func Markers(spec Spec) session.Stream {
	spec = spec.withDefaults()
	st := session.Stream{
		Name:         spec.MarkerStream,
		Type:         "Markers",
		ChannelCount: 1,
		Timestamps:   []float64{spec.Start},
		Labels:       [][]string{{BeginLabel}},
	}
	for i, ph := range spec.Phases {
		begin, end := spec.window(i)
		st.Timestamps = append(st.Timestamps, begin, end)
		st.Labels = append(st.Labels, []string{ph}, []string{ph + "_end"})
	}
	return st
}

// window returns the start and end time of the i-th phase.
func (s Spec) window(i int) (float64, float64) {
	begin := s.Start + s.Gap + float64(i)*(s.PhaseDuration+s.Gap)
	return begin, begin + s.PhaseDuration
}

// Gaze returns a three-channel gaze stream (validity, x, y) covering the
// whole session at spec.Rate.
func Gaze(spec Spec) session.Stream {
	spec = spec.withDefaults()
	_, last := spec.window(len(spec.Phases) - 1)
	end := last + spec.Gap
	if len(spec.Phases) == 0 {
		end = spec.Start + 1
	}
	n := int(math.Floor((end-spec.Start)*spec.Rate)) + 1

	rng := rand.New(rand.NewPCG(spec.Seed, spec.Seed^0x9e3779b97f4a7c15))
	st := session.Stream{
		Name:          spec.GazeStream,
		Type:          "Gaze",
		ChannelCount:  3,
		NominalRate:   spec.Rate,
		EffectiveRate: spec.Rate,
		Timestamps:    make([]float64, n),
		Values:        make([][]float64, n),
	}
	for i := range n {
		t := spec.Start + float64(i)/spec.Rate
		x, y := spec.position(t)
		if spec.Noise > 0 {
			x += rng.NormFloat64() * spec.Noise
			y += rng.NormFloat64() * spec.Noise
		}
		st.Timestamps[i] = t
		st.Values[i] = []float64{1, x, y}
	}
	return st
}

// position is the noiseless gaze target at time t.
func (s Spec) position(t float64) (float64, float64) {
	for i, ph := range s.Phases {
		begin, end := s.window(i)
		if t < begin || t >= end {
			continue
		}
		return Motion(ph, t-begin)
	}
	return 0.5, 0.5
}

// Motion returns the gaze position dt seconds into a phase. Unknown phases
// fixate the centre of the screen.
func Motion(phase string, dt float64) (float64, float64) {
	switch phase {
	case "pursuit":
		return 0.5 + 0.3*math.Sin(2*math.Pi*0.4*dt), 0.5
	case "vor":
		return 0.5 + 0.05*math.Sin(2*math.Pi*2*dt), 0.5 + 0.02*math.Cos(2*math.Pi*2*dt)
	case "jump":
		if int(dt/0.5)%2 == 0 {
			return 0.3, 0.5
		}
		return 0.7, 0.5
	case "brightness":
		return 0.5 + 0.01*math.Sin(2*math.Pi*1.0*dt), 0.5 + 0.01*math.Sin(2*math.Pi*1.5*dt)
	default:
		return 0.5, 0.5
	}
}

// Streams returns the marker and gaze streams for spec.
func Streams(spec Spec) []session.Stream {
	return []session.Stream{Markers(spec), Gaze(spec)}
}

// Session builds an in-memory StreamSet for spec.
func Session(source string, spec Spec) (*session.Set, error) {
	return session.NewSet(source, Streams(spec)...)
}
