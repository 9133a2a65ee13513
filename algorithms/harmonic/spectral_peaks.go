package harmonic

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
)

// Peak represents a detected spectral peak
type Peak struct {
	Frequency float64 // Interpolated peak frequency in Hz
	Magnitude float64 // Interpolated linear peak magnitude
	Bin       int     // FFT bin index of the local maximum
}

// PeakParams holds the thresholds used by PeakDetector. All levels are
// linear magnitudes in the same scale as the spectrum.
type PeakParams struct {
	SilenceFloor  float64 `json:"silence_floor"`  // spectrum RMS below this is treated as silence
	AbsoluteFloor float64 `json:"absolute_floor"` // lowest adaptive floor
	FloorFactor   float64 `json:"floor_factor"`   // adaptive floor = RMS * factor
	MinFrequency  float64 `json:"min_frequency"`  // Hz
	MaxFrequency  float64 `json:"max_frequency"`  // Hz
}

// PeakDetector finds local maxima in a linear magnitude spectrum
type PeakDetector struct {
	params PeakParams
}

// NewPeakDetector creates a new spectral peak detector
func NewPeakDetector(params PeakParams) *PeakDetector {
	return &PeakDetector{params: params}
}

// Params returns the detector thresholds
func (pd *PeakDetector) Params() PeakParams {
	return pd.params
}

// AdaptiveFloor returns the magnitude a bin must exceed to count as a peak
func (pd *PeakDetector) AdaptiveFloor(rms float64) float64 {
	return max(pd.params.AbsoluteFloor, rms*pd.params.FloorFactor)
}

// DetectPeaks returns the peaks of spectrum in ascending bin order. Bin i is
// centered at i*sampleRate/(2*len(spectrum)); each peak is refined to its
// sub-bin position with RefinePeak. A spectrum whose RMS is under the silence
// floor yields no peaks.
func (pd *PeakDetector) DetectPeaks(spectrum []float64, sampleRate float64) []Peak {
	if len(spectrum) < 5 || !(sampleRate > 0) {
		return nil
	}

	rms := common.RMS(spectrum)
	if rms < pd.params.SilenceFloor {
		return nil
	}

	floor := pd.AdaptiveFloor(rms)
	binSize := sampleRate / float64(2*len(spectrum))

	// 5-point test needs two neighbours on each side
	lo := max(2, int(pd.params.MinFrequency/binSize))
	hi := min(len(spectrum)-3, int(pd.params.MaxFrequency/binSize))

	var peaks []Peak
	for i := lo; i <= hi; i++ {
		m := spectrum[i]
		if m <= floor {
			continue
		}

		frequency := float64(i) * binSize
		if frequency < pd.params.MinFrequency || frequency > pd.params.MaxFrequency {
			continue
		}

		if m > spectrum[i-1] && m > spectrum[i+1] &&
			m > spectrum[i-2] && m > spectrum[i+2] {
			offset, magnitude := RefinePeak(spectrum, i)
			peaks = append(peaks, Peak{
				Frequency: (float64(i) + offset) * binSize,
				Magnitude: magnitude,
				Bin:       i,
			})
		}
	}

	return peaks
}

// RefinePeak fits a parabola through bins i-1, i and i+1 and returns the
// vertex offset in bins (within ±0.5 for a local maximum) and the magnitude
// there. The fit runs on log magnitudes, where a Hann main lobe is nearly
// parabolic; a zero neighbour falls back to the linear fit.
func RefinePeak(spectrum []float64, i int) (float64, float64) {
	if i <= 0 || i >= len(spectrum)-1 {
		return 0, spectrum[i]
	}

	y1, y2, y3 := spectrum[i-1], spectrum[i], spectrum[i+1]
	logScale := y1 > 0 && y2 > 0 && y3 > 0
	if logScale {
		y1, y2, y3 = math.Log(y1), math.Log(y2), math.Log(y3)
	}

	denom := y1 - 2*y2 + y3
	if math.Abs(denom) < 1e-12 {
		return 0, spectrum[i]
	}

	offset := 0.5 * (y1 - y3) / denom
	offset = max(-0.5, min(0.5, offset))
	shift := -0.25 * (y1 - y3) * offset

	if logScale {
		return offset, spectrum[i] * math.Exp(shift)
	}
	return offset, spectrum[i] + shift
}

// StrongestPeaks returns up to n peaks ordered by descending magnitude. Equal
// magnitudes keep their input order.
func StrongestPeaks(peaks []Peak, n int) []Peak {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Magnitude > sorted[j].Magnitude
	})

	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
