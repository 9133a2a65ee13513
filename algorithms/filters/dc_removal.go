package filters

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
)

// RemoveMean returns a copy of signal with its arithmetic mean subtracted.
// This is the block-wise DC removal used before autocorrelation.
func RemoveMean(signal []float64) []float64 {
	out := make([]float64, len(signal))
	mean := common.Mean(signal)
	for i, v := range signal {
		out[i] = v - mean
	}
	return out
}

// DCRemoval implements a DC blocking filter (one-pole high-pass) for
// streaming input, where block means drift between pushes.
//
//	y[n] = x[n] - x[n-1] + R * y[n-1]
//
// Reference: Julius O. Smith III, "Introduction to Digital Filters with
// Audio Applications", DC Blocker.
type DCRemoval struct {
	poleLocation float64 // R parameter (0 < R < 1)

	x1 float64 // Previous input sample x[n-1]
	y1 float64 // Previous output sample y[n-1]
}

// NewDCRemoval creates a DC removal filter with a pole of 0.995
// (about 35 Hz at 48 kHz).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a DC removal filter with specified cutoff frequency.
// The pole location is R = 1 - 2*pi*fc/fs, clamped to (0, 1).
func NewDCRemovalWithCutoff(sampleRate, cutoffFreq float64) *DCRemoval {
	dc := NewDCRemoval()
	if sampleRate > 0 && cutoffFreq > 0 {
		dc.poleLocation = common.Clamp(1.0-(2.0*math.Pi*cutoffFreq/sampleRate), 0.001, 0.999)
	}
	return dc
}

// Process applies DC removal to a single sample.
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1

	dc.x1 = input
	dc.y1 = output

	return output
}

// ProcessBuffer applies DC removal to an entire buffer of samples.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the filter's internal state.
// Call this when processing discontinuous audio segments.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// GetPoleLocation returns the current pole location parameter.
func (dc *DCRemoval) GetPoleLocation() float64 {
	return dc.poleLocation
}

// GetCutoffFrequency calculates the approximate -3dB cutoff frequency.
// fc ≈ (1-R)*fs/(2*pi)
func (dc *DCRemoval) GetCutoffFrequency(sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.poleLocation) * sampleRate / (2.0 * math.Pi)
}
