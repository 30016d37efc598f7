// Package pipeline runs the segmentation and feature extraction for one
// recorded session: marker resolution, gaze alignment, integrity checks and
// per-phase features.
package pipeline

import (
	"fmt"

	"github.com/banshee-data/gaze.report/internal/features"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/session"
)

// Default stream names written by the stimulus application.
const (
	DefaultMarkerStream = "Stimulus_Markers"
	DefaultGazeStream   = "TobiiGaze"
)

// Config selects the streams, channels and phases a Pipeline analyses.
// Zero fields take the defaults.
type Config struct {
	Phases       []string
	MarkerStream string
	GazeStream   string
	XChannel     int
	YChannel     int
	CutoffHz     float64
}

// DefaultConfig returns the configuration used by the experiment.
func DefaultConfig() Config {
	return Config{
		Phases:       append([]string(nil), gaze.DefaultPhases...),
		MarkerStream: DefaultMarkerStream,
		GazeStream:   DefaultGazeStream,
		XChannel:     gaze.DefaultXChannel,
		YChannel:     gaze.DefaultYChannel,
		CutoffHz:     features.DefaultCutoffHz,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Phases) == 0 {
		c.Phases = d.Phases
	}
	if c.MarkerStream == "" {
		c.MarkerStream = d.MarkerStream
	}
	if c.GazeStream == "" {
		c.GazeStream = d.GazeStream
	}
	if c.XChannel == 0 && c.YChannel == 0 {
		c.XChannel, c.YChannel = d.XChannel, d.YChannel
	}
	if c.CutoffHz == 0 {
		c.CutoffHz = d.CutoffHz
	}
	return c
}

// Pipeline analyses sessions with a fixed configuration. It holds no
// per-session state and may be shared between goroutines.
type Pipeline struct {
	cfg Config
}

// New returns a Pipeline for cfg.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	c := p.cfg
	c.Phases = append([]string(nil), p.cfg.Phases...)
	return c
}

// PhaseFailure records a feature that could not be computed for a phase.
type PhaseFailure struct {
	Phase   string
	Feature features.Kind
	Err     error
}

func (f PhaseFailure) Error() string {
	return fmt.Sprintf("phase %q: %v", f.Phase, f.Err)
}

func (f PhaseFailure) Unwrap() error { return f.Err }

// Result is the outcome of one successful run.
type Result struct {
	Source string
	// SampleRate of the gaze stream in Hz as used for the spectra.
	SampleRate float64
	// Order lists the computed phases in configuration order.
	Order    []string
	Windows  []gaze.PhaseWindow
	Segments []gaze.Segment
	Phases   map[string]features.FeatureSet
	Failures []PhaseFailure
}

// Phase returns the feature set for name.
func (r *Result) Phase(name string) (features.FeatureSet, bool) {
	fs, ok := r.Phases[name]
	return fs, ok
}

// Segment returns the aligned gaze segment for name.
func (r *Result) Segment(name string) (gaze.Segment, bool) {
	for _, s := range r.Segments {
		if s.Phase == name {
			return s, true
		}
	}
	return gaze.Segment{}, false
}

// Run analyses one session. With no names given every configured phase is
// computed; otherwise only the named ones, which must be configured.
//
// Integrity failures abort the run with a *gaze.IntegrityError and no
// feature sets. Feature errors do not abort; they are listed in
// Result.Failures.
func (p *Pipeline) Run(set session.StreamSet, only ...string) (*Result, error) {
	selected, err := p.selectPhases(only)
	if err != nil {
		return nil, err
	}

	markerStream, err := set.Stream(p.cfg.MarkerStream)
	if err != nil {
		return nil, fmt.Errorf("marker stream: %w", err)
	}
	gazeStream, err := set.Stream(p.cfg.GazeStream)
	if err != nil {
		return nil, fmt.Errorf("gaze stream: %w", err)
	}

	index, err := gaze.BuildMarkerIndex(markerStream)
	if err != nil {
		return nil, err
	}
	windows, resolveErrs := index.ResolveAll(p.cfg.Phases)

	aligner, err := gaze.NewAligner(gazeStream, p.cfg.XChannel, p.cfg.YChannel)
	if err != nil {
		return nil, err
	}
	segments := aligner.Segments(windows)
	for _, seg := range segments {
		if seg.Dropped > 0 {
			opsf("%s: phase %s dropped %d non-finite gaze samples", set.Source(), seg.Phase, seg.Dropped)
		}
	}

	if err := gaze.CheckIntegrity(p.cfg.Phases, windows, segments, resolveErrs); err != nil {
		opsf("%s: %v", set.Source(), err)
		return nil, err
	}

	rate := gazeStream.SampleRate()
	if rate <= 0 {
		rate = session.EstimateRate(gazeStream.Timestamps)
	}
	diagf("%s: %d markers, %d gaze samples at %.3f Hz", set.Source(), index.Len(), gazeStream.Len(), rate)

	res := &Result{
		Source:     set.Source(),
		SampleRate: rate,
		Windows:    windows,
		Segments:   segments,
		Phases:     make(map[string]features.FeatureSet, len(selected)),
	}
	opts := features.Options{SampleRate: rate, CutoffHz: p.cfg.CutoffHz}
	for _, seg := range segments {
		if !selected[seg.Phase] {
			continue
		}
		if _, done := res.Phases[seg.Phase]; done {
			continue
		}
		fs, ferrs := features.Compute(seg, opts)
		for _, fe := range ferrs {
			res.Failures = append(res.Failures, PhaseFailure{Phase: seg.Phase, Feature: fe.Feature, Err: fe.Err})
		}
		res.Phases[seg.Phase] = fs
		res.Order = append(res.Order, seg.Phase)
		tracef("%s: phase %s [%d,%d) %d samples, computed %v",
			set.Source(), seg.Phase, seg.StartIndex, seg.EndIndex, seg.Len(), fs.Computed)
	}
	return res, nil
}

func (p *Pipeline) selectPhases(only []string) (map[string]bool, error) {
	configured := make(map[string]bool, len(p.cfg.Phases))
	for _, ph := range p.cfg.Phases {
		configured[ph] = true
	}
	if len(only) == 0 {
		return configured, nil
	}
	selected := make(map[string]bool, len(only))
	for _, ph := range only {
		if !configured[ph] {
			return nil, fmt.Errorf("phase %q is not configured", ph)
		}
		selected[ph] = true
	}
	return selected, nil
}
