package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distance returns the scanpath length: the sum of Euclidean distances
// between consecutive samples. A single sample has length 0.
func Distance(x, y []float64) (float64, error) {
	if err := need(KindDistance, x, y, MinDistanceSamples); err != nil {
		return 0, err
	}
	if len(x) < 2 {
		return 0, nil
	}
	steps := make([]float64, len(x)-1)
	for i := range steps {
		steps[i] = math.Hypot(x[i+1]-x[i], y[i+1]-y[i])
	}
	return floats.Sum(steps), nil
}

// Dispersion summarises fixation stability as the mean position and the
// per-axis population standard deviation. Plots draw it as an ellipse at
// (MeanX, MeanY) with radii (StdX, StdY).
type Dispersion struct {
	MeanX float64
	MeanY float64
	StdX  float64
	StdY  float64
}

// ComputeDispersion returns the mean and standard deviation of each axis.
func ComputeDispersion(x, y []float64) (Dispersion, error) {
	if err := need(KindDispersion, x, y, MinDispersionSamples); err != nil {
		return Dispersion{}, err
	}
	var d Dispersion
	d.MeanX, d.StdX = stat.PopMeanStdDev(x, nil)
	d.MeanY, d.StdY = stat.PopMeanStdDev(y, nil)
	return d, nil
}

// gradient is the numeric derivative with unit spacing: central
// differences inside, one-sided differences at both ends.
func gradient(v []float64) []float64 {
	n := len(v)
	g := make([]float64, n)
	g[0] = v[1] - v[0]
	g[n-1] = v[n-1] - v[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (v[i+1] - v[i-1]) / 2
	}
	return g
}

// Velocity returns the norm of the positional gradient for every sample.
// Units are position per sample; multiply by the sample rate for position
// per second.
func Velocity(x, y []float64) ([]float64, error) {
	if err := need(KindVelocity, x, y, MinVelocitySamples); err != nil {
		return nil, err
	}
	gx, gy := gradient(x), gradient(y)
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.Hypot(gx[i], gy[i])
	}
	return out, nil
}
