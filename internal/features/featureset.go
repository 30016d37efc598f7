package features

import (
	"github.com/banshee-data/gaze.report/internal/gaze"
)

// Options configures Compute.
type Options struct {
	// SampleRate of the gaze stream in Hz, used for frequency resolution.
	SampleRate float64
	// CutoffHz bounds the retained spectrum; DefaultCutoffHz when zero.
	CutoffHz float64
}

// FeatureSet holds the metrics computed for one phase. Fields of a feature
// that failed are left zero; Computed lists the ones that succeeded.
type FeatureSet struct {
	Phase         string     `json:"phase_name"`
	Samples       int        `json:"samples"`
	TotalDistance float64    `json:"total_distance"`
	MeanPosition  [2]float64 `json:"mean_position"`
	StdDev        [2]float64 `json:"std_dev"`
	Velocity      []float64  `json:"velocity"`
	SpectrumX     []Bin      `json:"spectrum_x"`
	SpectrumY     []Bin      `json:"spectrum_y"`
	Computed      []Kind     `json:"computed"`
}

// Has reports whether feature k was computed.
func (fs FeatureSet) Has(k Kind) bool {
	for _, c := range fs.Computed {
		if c == k {
			return true
		}
	}
	return false
}

// Dispersion returns the dispersion fields as a Dispersion value.
func (fs FeatureSet) Dispersion() Dispersion {
	return Dispersion{
		MeanX: fs.MeanPosition[0], MeanY: fs.MeanPosition[1],
		StdX: fs.StdDev[0], StdY: fs.StdDev[1],
	}
}

// Compute runs all four features on a segment. A failing feature is
// reported in the returned slice and does not stop the others.
func Compute(seg gaze.Segment, opts Options) (FeatureSet, []FeatureError) {
	cutoff := opts.CutoffHz
	if cutoff == 0 {
		cutoff = DefaultCutoffHz
	}
	fs := FeatureSet{Phase: seg.Phase, Samples: seg.Len()}
	var errs []FeatureError

	if d, err := Distance(seg.X, seg.Y); err != nil {
		errs = append(errs, FeatureError{Feature: KindDistance, Err: err})
	} else {
		fs.TotalDistance = d
		fs.Computed = append(fs.Computed, KindDistance)
	}

	if d, err := ComputeDispersion(seg.X, seg.Y); err != nil {
		errs = append(errs, FeatureError{Feature: KindDispersion, Err: err})
	} else {
		fs.MeanPosition = [2]float64{d.MeanX, d.MeanY}
		fs.StdDev = [2]float64{d.StdX, d.StdY}
		fs.Computed = append(fs.Computed, KindDispersion)
	}

	if v, err := Velocity(seg.X, seg.Y); err != nil {
		errs = append(errs, FeatureError{Feature: KindVelocity, Err: err})
	} else {
		fs.Velocity = v
		fs.Computed = append(fs.Computed, KindVelocity)
	}

	if s, err := Frequency(seg.X, seg.Y, opts.SampleRate, cutoff); err != nil {
		errs = append(errs, FeatureError{Feature: KindFrequency, Err: err})
	} else {
		fs.SpectrumX, fs.SpectrumY = s.X, s.Y
		fs.Computed = append(fs.Computed, KindFrequency)
	}

	return fs, errs
}
