package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
)

// DefaultInTuneCents is the tuner's "in tune" window
const DefaultInTuneCents = 5

// SortByMagnitude returns a copy of notes, strongest first. The analyzer
// reports notes by frequency; displays usually want them by weight.
func SortByMagnitude(notes []chroma.Note) []chroma.Note {
	sorted := make([]chroma.Note, len(notes))
	copy(sorted, notes)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Magnitude > sorted[j].Magnitude
	})
	return sorted
}

// FormatPitches renders notes as "A4 -3c, C#5 +12c"
func FormatPitches(notes []chroma.Note) string {
	if len(notes) == 0 {
		return "-"
	}

	parts := make([]string, len(notes))
	for i, n := range notes {
		mark := ""
		if n.InTune(DefaultInTuneCents) {
			mark = " *"
		}
		parts[i] = fmt.Sprintf("%s %+dc%s", n.Name(), n.Cents, mark)
	}
	return strings.Join(parts, ", ")
}

// NameChord names the chord formed by the reported pitches. The lowest
// pitch is taken as the bass.
func NameChord(notes []chroma.Note) (tonal.Chord, bool) {
	if len(notes) == 0 {
		return tonal.Chord{}, false
	}

	classes := make([]chroma.PitchClass, len(notes))
	bass := notes[0]
	for i, n := range notes {
		classes[i] = n.PitchClass
		if n.Frequency < bass.Frequency {
			bass = n
		}
	}

	return tonal.NameChord(classes, bass.PitchClass)
}
