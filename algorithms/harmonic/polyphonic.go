package harmonic

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
)

// PolyphonicParams controls note assembly from spectral peaks
type PolyphonicParams struct {
	MaxPeaks          int     `json:"max_peaks"`          // most notes reported per frame
	RelativeFloor     float64 `json:"relative_floor"`     // fraction of the strongest peak a candidate must reach
	HarmonicTolerance float64 `json:"harmonic_tolerance"` // max distance of a ratio from its integer
}

// PolyphonicAssembler turns a peak set into simultaneous pitch estimates,
// rejecting harmonics and subharmonics of notes already accepted
type PolyphonicAssembler struct {
	params PolyphonicParams
}

// NewPolyphonicAssembler creates a new assembler
func NewPolyphonicAssembler(params PolyphonicParams) *PolyphonicAssembler {
	return &PolyphonicAssembler{params: params}
}

// MaxCandidates is the number of strongest peaks considered per frame
func (pa *PolyphonicAssembler) MaxCandidates() int {
	return pa.params.MaxPeaks * 4
}

// Assemble returns at most MaxPeaks notes in ascending frequency order, each
// with a unique pitch class and octave
func (pa *PolyphonicAssembler) Assemble(peaks []Peak) []chroma.Note {
	if len(peaks) == 0 || pa.params.MaxPeaks <= 0 {
		return nil
	}

	candidates := StrongestPeaks(peaks, pa.MaxCandidates())
	strongest := candidates[0].Magnitude
	gate := pa.params.RelativeFloor * strongest

	// Low-to-high so fundamentals are accepted before their overtones
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Frequency < candidates[j].Frequency
	})

	notes := make([]chroma.Note, 0, pa.params.MaxPeaks)
	for _, candidate := range candidates {
		if len(notes) >= pa.params.MaxPeaks {
			break
		}
		if candidate.Magnitude < gate || !(candidate.Frequency > 0) {
			continue
		}
		if pa.isRelated(candidate.Frequency, notes) {
			continue
		}

		note := chroma.FrequencyToNote(candidate.Frequency)
		if containsNote(notes, note) {
			continue
		}

		note.Magnitude = candidate.Magnitude
		notes = append(notes, note)
	}

	return notes
}

// IsHarmonic reports whether a and b are related by an integer ratio of at
// least 2 in either direction
func (pa *PolyphonicAssembler) IsHarmonic(a, b float64) bool {
	return isIntegerMultiple(a/b, pa.params.HarmonicTolerance) ||
		isIntegerMultiple(b/a, pa.params.HarmonicTolerance)
}

func (pa *PolyphonicAssembler) isRelated(frequency float64, accepted []chroma.Note) bool {
	for _, note := range accepted {
		if pa.IsHarmonic(frequency, note.Frequency) {
			return true
		}
	}
	return false
}

func isIntegerMultiple(ratio, tolerance float64) bool {
	nearest := math.Round(ratio)
	return nearest >= 2 && math.Abs(ratio-nearest) < tolerance
}

func containsNote(notes []chroma.Note, note chroma.Note) bool {
	for _, n := range notes {
		if n.PitchClass == note.PitchClass && n.Octave == note.Octave {
			return true
		}
	}
	return false
}
