package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct {
	// No state needed for now
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
// Takes []float64 input and returns []complex128 output
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(x)
}

// Magnitude returns |X[k]| for the first len(x)/2 bins of an already
// windowed frame, scaled by gain. Bin i sits at i*sampleRate/len(x); the
// Nyquist bin is dropped, matching an analyser's frequencyBinCount.
func (f *FFT) Magnitude(x []float64, gain float64) []float64 {
	if len(x) < 2 {
		return []float64{}
	}

	spectrum := f.Compute(x)
	half := len(x) / 2

	magnitudes := make([]float64, half)
	for i := range half {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	if gain != 1.0 {
		floats.Scale(gain, magnitudes)
	}

	return magnitudes
}
