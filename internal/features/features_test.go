package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"single sample", []float64{3}, []float64{4}, 0},
		{"one step", []float64{0, 3}, []float64{0, 4}, 5},
		{"square path", []float64{0, 1, 1, 0}, []float64{0, 0, 1, 1}, 3},
		{"stationary", []float64{5, 5, 5}, []float64{5, 5, 5}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Distance(tc.x, tc.y)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestDistance_ReversalInvariant(t *testing.T) {
	t.Parallel()

	x := []float64{0.1, 0.4, 0.35, 0.9, 0.2}
	y := []float64{0.5, 0.1, 0.75, 0.6, 0.3}
	rx, ry := reversed(x), reversed(y)

	fwd, err := Distance(x, y)
	require.NoError(t, err)
	back, err := Distance(rx, ry)
	require.NoError(t, err)
	assert.InDelta(t, fwd, back, 1e-12)
}

func reversed(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[len(v)-1-i] = v[i]
	}
	return out
}

func TestDistance_Errors(t *testing.T) {
	t.Parallel()

	_, err := Distance(nil, nil)
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, KindDistance, ide.Feature)
	assert.Equal(t, 0, ide.Have)
	assert.Equal(t, 1, ide.Need)

	_, err = Distance([]float64{1, 2}, []float64{1})
	assert.ErrorContains(t, err, "x has 2 samples, y has 1")
}

func TestDispersion_ClosedForm(t *testing.T) {
	t.Parallel()

	d, err := ComputeDispersion([]float64{0, 2, 0, 2}, []float64{0, 0, 2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.MeanX, 1e-12)
	assert.InDelta(t, 1.0, d.MeanY, 1e-12)
	assert.InDelta(t, 1.0, d.StdX, 1e-12)
	assert.InDelta(t, 1.0, d.StdY, 1e-12)

	d, err = ComputeDispersion([]float64{3}, []float64{-1})
	require.NoError(t, err)
	assert.Equal(t, Dispersion{MeanX: 3, MeanY: -1}, d)

	_, err = ComputeDispersion(nil, nil)
	var ide *InsufficientDataError
	assert.True(t, errors.As(err, &ide))
}

func TestVelocity(t *testing.T) {
	t.Parallel()

	v, err := Velocity([]float64{0, 1, 3}, []float64{0, 0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1.5, 2}, v, 1e-12)

	v, err = Velocity([]float64{0, 3}, []float64{0, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 5}, v, 1e-12)
}

func TestVelocity_ConstantPositionIsZero(t *testing.T) {
	t.Parallel()

	x := []float64{5, 5, 5, 5, 5, 5, 5}
	v, err := Velocity(x, x)
	require.NoError(t, err)
	require.Len(t, v, len(x))
	for _, s := range v {
		assert.Zero(t, s)
	}
}

func TestVelocity_TooShort(t *testing.T) {
	t.Parallel()

	_, err := Velocity([]float64{1}, []float64{1})
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 2, ide.Need)
}

func sinusoid(n int, rate, freq, amp, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + amp*math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func TestFrequency_PureSinusoid(t *testing.T) {
	t.Parallel()

	const (
		rate = 60.0
		n    = 700
	)
	x := sinusoid(n, rate, 2.0, 0.1, 0.5)
	y := sinusoid(n, rate, 3.5, 0.05, 0.5)

	s, err := Frequency(x, y, rate, DefaultCutoffHz)
	require.NoError(t, err)
	binWidth := rate / n

	px, ok := Peak(s.X)
	require.True(t, ok)
	assert.InDelta(t, 2.0, px.FrequencyHz, binWidth)

	py, ok := Peak(s.Y)
	require.True(t, ok)
	assert.InDelta(t, 3.5, py.FrequencyHz, binWidth)

	for _, b := range s.X {
		assert.Greater(t, b.FrequencyHz, 0.0)
		assert.LessOrEqual(t, b.FrequencyHz, DefaultCutoffHz)
	}
	assert.Len(t, s.X, 58)
	assert.InDelta(t, binWidth, s.X[0].FrequencyHz, 1e-12)
}

func TestFrequency_AboveCutoffNotRetained(t *testing.T) {
	t.Parallel()

	x := sinusoid(600, 60, 8, 1, 0)
	s, err := Frequency(x, x, 60, 5)
	require.NoError(t, err)
	for _, b := range s.X {
		// Leakage only; the 8 Hz line itself is cut.
		assert.Less(t, b.Magnitude, 1.0)
	}
}

func TestFrequency_BinCountAtMinimum(t *testing.T) {
	t.Parallel()

	// Bins run over 1 <= k < N/2, so the four-sample minimum keeps one bin.
	four := []float64{0, 1, 0, -1}
	s, err := Frequency(four, four, 4, 5)
	require.NoError(t, err)
	require.Len(t, s.X, 1)
	require.Len(t, s.Y, 1)
	assert.InDelta(t, 1.0, s.X[0].FrequencyHz, 1e-12)
	assert.InDelta(t, 2.0, s.X[0].Magnitude, 1e-9)

	five := []float64{0, 1, 0, -1, 0}
	s, err = Frequency(five, five, 4, 5)
	require.NoError(t, err)
	assert.Len(t, s.X, 1)

	six := []float64{0, 1, 0, -1, 0, 1}
	s, err = Frequency(six, six, 4, 5)
	require.NoError(t, err)
	require.Len(t, s.X, 2)
	assert.InDelta(t, 4.0/6, s.X[0].FrequencyHz, 1e-12)
	assert.InDelta(t, 8.0/6, s.X[1].FrequencyHz, 1e-12)
}

func TestFrequency_Errors(t *testing.T) {
	t.Parallel()

	_, err := Frequency([]float64{1, 2, 3}, []float64{1, 2, 3}, 60, 5)
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, KindFrequency, ide.Feature)
	assert.Equal(t, 4, ide.Need)

	four := []float64{1, 2, 3, 4}
	_, err = Frequency(four, four, 0, 5)
	assert.ErrorContains(t, err, "sample rate")
	_, err = Frequency(four, four, 60, -1)
	assert.ErrorContains(t, err, "cutoff")
}

func TestPeak_Empty(t *testing.T) {
	t.Parallel()

	_, ok := Peak(nil)
	assert.False(t, ok)
}

func TestCompute(t *testing.T) {
	t.Parallel()

	seg := gaze.Segment{
		Phase: "stare",
		X:     []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
		Y:     []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
	}
	fs, errs := Compute(seg, Options{SampleRate: 9})
	require.Empty(t, errs)
	assert.Equal(t, "stare", fs.Phase)
	assert.Equal(t, 10, fs.Samples)
	assert.Zero(t, fs.TotalDistance)
	assert.Equal(t, [2]float64{5, 5}, fs.MeanPosition)
	assert.InDelta(t, 0, fs.StdDev[0], 1e-12)
	assert.InDelta(t, 0, fs.StdDev[1], 1e-12)
	assert.Len(t, fs.Velocity, 10)
	assert.Equal(t, []Kind{KindDistance, KindDispersion, KindVelocity, KindFrequency}, fs.Computed)
	assert.Equal(t, Dispersion{MeanX: 5, MeanY: 5}, fs.Dispersion())
}

func TestCompute_PartialFailures(t *testing.T) {
	t.Parallel()

	seg := gaze.Segment{Phase: "jump", X: []float64{1, 2, 4}, Y: []float64{0, 0, 0}}
	fs, errs := Compute(seg, Options{SampleRate: 60, CutoffHz: 5})
	require.Len(t, errs, 1)
	assert.Equal(t, KindFrequency, errs[0].Feature)

	var ide *InsufficientDataError
	assert.True(t, errors.As(errs[0], &ide))
	assert.True(t, fs.Has(KindVelocity))
	assert.False(t, fs.Has(KindFrequency))
	assert.Nil(t, fs.SpectrumX)
	assert.InDelta(t, 3.0, fs.TotalDistance, 1e-12)

	fs, errs = Compute(gaze.Segment{Phase: "vor", X: []float64{1}, Y: []float64{1}}, Options{SampleRate: 60})
	require.Len(t, errs, 2)
	assert.Equal(t, KindVelocity, errs[0].Feature)
	assert.Equal(t, KindFrequency, errs[1].Feature)
	assert.Equal(t, []Kind{KindDistance, KindDispersion}, fs.Computed)
}
