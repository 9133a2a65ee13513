package analysis

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
)

// Fuse merges the polyphonic notes with the optional autocorrelation
// estimate.
//
//   - no notes, estimate present: the estimate alone
//   - notes and estimate: the estimate is prepended when it disagrees with
//     the lowest note by more than max(MinToleranceHz, TolerancePct)
//   - no estimate: the notes unchanged
//
// A prepended estimate replaces any note with the same pitch class and
// octave, and the result never exceeds maxPeaks.
func Fuse(poly []chroma.Note, mono float64, hasMono bool, cfg config.FusionConfig, maxPeaks int) []chroma.Note {
	if !hasMono || !(mono > 0) || math.IsInf(mono, 1) {
		return poly
	}

	estimate := chroma.FrequencyToNote(mono)
	estimate.Magnitude = cfg.MonophonicMagnitude

	if len(poly) == 0 {
		return []chroma.Note{estimate}
	}

	fundamental := poly[0].Frequency
	tolerance := max(cfg.MinToleranceHz, cfg.TolerancePct*fundamental)
	if math.Abs(mono-fundamental) <= tolerance {
		return poly
	}

	fused := make([]chroma.Note, 0, len(poly)+1)
	fused = append(fused, estimate)
	for _, note := range poly {
		if note.PitchClass == estimate.PitchClass && note.Octave == estimate.Octave {
			continue
		}
		fused = append(fused, note)
	}

	if maxPeaks > 0 && len(fused) > maxPeaks {
		fused = fused[:maxPeaks]
	}
	return fused
}
