package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/algorithms/filters"
	"github.com/RyanBlaney/sonido-tuner/algorithms/windowing"
	"gonum.org/v1/gonum/floats"
)

// MonophonicParams contains parameters for autocorrelation pitch detection
type MonophonicParams struct {
	SilenceFloor        float64 `json:"silence_floor"`        // time-domain RMS below this is silence
	MinFrequency        float64 `json:"min_frequency"`        // Hz, sets the longest lag
	MaxFrequency        float64 `json:"max_frequency"`        // Hz, sets the shortest lag
	ConfidenceThreshold float64 `json:"confidence_threshold"` // minimum normalized correlation

	// Octave correction
	OctaveCorrection bool    `json:"octave_correction"`
	OctaveRatio      float64 `json:"octave_ratio"` // fraction of the best correlation a shorter lag must reach

	// Parabolic refinement of the chosen lag
	Interpolate bool `json:"interpolate"`
}

// MonophonicResult describes one autocorrelation pass
type MonophonicResult struct {
	Frequency   float64 `json:"frequency"`   // estimated fundamental (Hz), 0 when not voiced
	Lag         int     `json:"lag"`         // chosen lag in samples
	Period      float64 `json:"period"`      // refined period in samples, Lag when not interpolated
	Correlation float64 `json:"correlation"` // best normalized correlation
	RMS         float64 `json:"rms"`         // input level
	Voiced      bool    `json:"voiced"`
}

// MonophonicEstimator estimates a single fundamental from a time-domain
// buffer using normalized autocorrelation.
//
// The buffer is mean-subtracted and tapered with a symmetric Hann window,
// then for every lag in [sr/MaxFrequency, sr/MinFrequency]
//
//	r(lag) = sum(x[i]*x[i+lag]) / (N-lag)
//
// is evaluated and the strongest lag wins. The (N-lag) normalization of a
// tapered buffer lets multiples of the true period score slightly higher, so
// with OctaveCorrection enabled the shortest sub-multiple of the winning lag
// that is itself a correlation peak within OctaveRatio of it is preferred.
// Correlations are also computed one lag past each end of the range so the
// endpoints can be tested as peaks. With Interpolate the period is refined
// by a parabola through the chosen lag and its neighbours.
//
// Reference: Rabiner, L.R. (1977). "On the use of autocorrelation analysis
// for pitch detection"
type MonophonicEstimator struct {
	params MonophonicParams
}

// NewMonophonicEstimator creates a new estimator
func NewMonophonicEstimator(params MonophonicParams) *MonophonicEstimator {
	return &MonophonicEstimator{params: params}
}

// Params returns the estimator parameters
func (me *MonophonicEstimator) Params() MonophonicParams {
	return me.params
}

// Estimate returns the fundamental frequency of samples, or false when the
// buffer is silent or not periodic enough
func (me *MonophonicEstimator) Estimate(samples []float64, sampleRate float64) (float64, bool) {
	result := me.Analyze(samples, sampleRate)
	return result.Frequency, result.Voiced
}

// Analyze runs the estimator and reports the intermediate values
func (me *MonophonicEstimator) Analyze(samples []float64, sampleRate float64) MonophonicResult {
	result := MonophonicResult{}
	n := len(samples)
	if n < 2 || !(sampleRate > 0) {
		return result
	}

	result.RMS = common.RMS(samples)
	if result.RMS < me.params.SilenceFloor {
		return result
	}

	minLag, maxLag := me.lagRange(n, sampleRate)
	if minLag > maxLag {
		return result
	}

	x := filters.RemoveMean(samples)
	_ = windowing.NewHann(n, true).ApplyInPlace(x)

	// one extra lag on each side for the peak tests
	lo, hi := max(1, minLag-1), min(n-1, maxLag+1)
	correlations := make([]float64, hi+1)
	for lag := lo; lag <= hi; lag++ {
		correlations[lag] = floats.Dot(x[:n-lag], x[lag:]) / float64(n-lag)
	}

	bestLag := 0
	bestValue := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		if correlations[lag] > bestValue {
			bestValue = correlations[lag]
			bestLag = lag
		}
	}

	result.Correlation = bestValue
	if bestLag == 0 || bestValue < me.params.ConfidenceThreshold {
		return result
	}

	if me.params.OctaveCorrection {
		bestLag = me.correctOctave(correlations, bestLag, bestValue, minLag, maxLag)
	}

	result.Lag = bestLag
	result.Period = float64(bestLag)
	if me.params.Interpolate && bestLag > lo && bestLag < hi {
		result.Period += lagOffset(correlations[bestLag-1], correlations[bestLag], correlations[bestLag+1])
	}
	result.Frequency = sampleRate / result.Period
	result.Voiced = true
	return result
}

// lagOffset returns the vertex of the parabola through three correlation
// values, relative to the middle one and clamped to ±0.5
func lagOffset(y1, y2, y3 float64) float64 {
	denom := y1 - 2*y2 + y3
	if denom >= 0 {
		return 0
	}
	return max(-0.5, min(0.5, 0.5*(y1-y3)/denom))
}

func (me *MonophonicEstimator) lagRange(n int, sampleRate float64) (int, int) {
	minLag := 1
	if me.params.MaxFrequency > 0 {
		minLag = max(1, int(math.Floor(sampleRate/me.params.MaxFrequency)))
	}

	maxLag := n - 1
	if me.params.MinFrequency > 0 {
		maxLag = min(maxLag, int(math.Floor(sampleRate/me.params.MinFrequency)))
	}

	return minLag, maxLag
}

// correctOctave walks bestLag/k from the largest k down to 2 and returns the
// first sub-multiple that is a local maximum of the correlation (searched
// within one lag) and reaches OctaveRatio of the best value. correlations
// must hold values from minLag-1 to maxLag+1 where the buffer allows.
func (me *MonophonicEstimator) correctOctave(correlations []float64, bestLag int, bestValue float64, minLag, maxLag int) int {
	threshold := me.params.OctaveRatio * bestValue

	for k := bestLag / minLag; k >= 2; k-- {
		center := int(math.Round(float64(bestLag) / float64(k)))

		candidate := 0
		candidateValue := math.Inf(-1)
		for lag := center - 1; lag <= center+1; lag++ {
			if lag < minLag || lag > maxLag {
				continue
			}
			if lag > 1 && correlations[lag] < correlations[lag-1] {
				continue
			}
			if lag+1 < len(correlations) && correlations[lag] < correlations[lag+1] {
				continue
			}
			if correlations[lag] > candidateValue {
				candidateValue = correlations[lag]
				candidate = lag
			}
		}

		if candidate > 0 && candidateValue >= threshold {
			return candidate
		}
	}

	return bestLag
}
