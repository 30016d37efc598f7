package features

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultCutoffHz is the upper bound of the retained frequency band.
const DefaultCutoffHz = 5.0

// Bin is one frequency/magnitude pair of a spectrum.
type Bin struct {
	FrequencyHz float64 `json:"frequency_hz"`
	Magnitude   float64 `json:"magnitude"`
}

// Spectrum holds the retained bins of each position channel.
type Spectrum struct {
	X []Bin
	Y []Bin
}

// Frequency computes the magnitude spectrum of x and y and keeps the bins
// with 0 < f <= cutoffHz below the Nyquist half. Bin k has frequency
// k*sampleRate/N.
func Frequency(x, y []float64, sampleRate, cutoffHz float64) (Spectrum, error) {
	if err := need(KindFrequency, x, y, MinFrequencySamples); err != nil {
		return Spectrum{}, err
	}
	if !(sampleRate > 0) {
		return Spectrum{}, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	if !(cutoffHz > 0) {
		return Spectrum{}, fmt.Errorf("cutoff must be positive, got %g", cutoffHz)
	}

	fft := fourier.NewFFT(len(x))
	return Spectrum{
		X: magnitudes(fft, x, sampleRate, cutoffHz),
		Y: magnitudes(fft, y, sampleRate, cutoffHz),
	}, nil
}

func magnitudes(fft *fourier.FFT, seq []float64, sampleRate, cutoffHz float64) []Bin {
	n := fft.Len()
	coeff := fft.Coefficients(nil, seq)
	var bins []Bin
	// DC (k=0) is excluded; k stops short of N/2.
	for k := 1; k < n/2; k++ {
		f := fft.Freq(k) * sampleRate
		if f > cutoffHz {
			break
		}
		bins = append(bins, Bin{FrequencyHz: f, Magnitude: cmplx.Abs(coeff[k])})
	}
	return bins
}

// Peak returns the bin with the largest magnitude. ok is false for an empty
// spectrum.
func Peak(bins []Bin) (b Bin, ok bool) {
	for i, c := range bins {
		if i == 0 || c.Magnitude > b.Magnitude {
			b = c
		}
	}
	return b, len(bins) > 0
}
