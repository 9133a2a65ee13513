package tonal

import (
	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
)

// ChordQuality represents the quality/type of a chord
type ChordQuality int

const (
	ChordMajor ChordQuality = iota
	ChordMinor
	ChordDiminished
	ChordAugmented
	ChordSus2
	ChordSus4
	ChordDom7
	ChordMaj7
	ChordMin7
	ChordPowerChord
)

// ChordTemplate is a chord shape as semitone intervals above the root
type ChordTemplate struct {
	Quality   ChordQuality
	Suffix    string
	Intervals []int
}

// templates in tie-break order
var chordTemplates = []ChordTemplate{
	{ChordMajor, "", []int{0, 4, 7}},
	{ChordMinor, "m", []int{0, 3, 7}},
	{ChordDom7, "7", []int{0, 4, 7, 10}},
	{ChordMaj7, "maj7", []int{0, 4, 7, 11}},
	{ChordMin7, "m7", []int{0, 3, 7, 10}},
	{ChordSus4, "sus4", []int{0, 5, 7}},
	{ChordSus2, "sus2", []int{0, 2, 7}},
	{ChordDiminished, "dim", []int{0, 3, 6}},
	{ChordAugmented, "aug", []int{0, 4, 8}},
	{ChordPowerChord, "5", []int{0, 7}},
}

// Chord is a named pitch-class set
type Chord struct {
	Root    chroma.PitchClass
	Bass    chroma.PitchClass
	Quality ChordQuality
	Extra   int // classes present but outside the template
	name    string
}

// Name returns the chord symbol, with a slash bass for inversions ("C/E")
func (c Chord) Name() string {
	if c.Bass != c.Root {
		return c.name + "/" + c.Bass.String()
	}
	return c.name
}

// NameChord finds the template that covers the most of the given pitch
// classes. Every template tone must be present. Among equally large
// templates the one rooted on the bass wins. Returns false when no template
// fits.
func NameChord(classes []chroma.PitchClass, bass chroma.PitchClass) (Chord, bool) {
	var present [chroma.NumPitchClasses]bool
	distinct := 0
	for _, pc := range classes {
		if pc < 0 || int(pc) >= chroma.NumPitchClasses || present[pc] {
			continue
		}
		present[pc] = true
		distinct++
	}
	if distinct < 2 {
		return Chord{}, false
	}

	var best Chord
	bestSize := 0
	bestOnBass := false

	for _, tmpl := range chordTemplates {
		for root := range chroma.NumPitchClasses {
			if !covers(present, root, tmpl.Intervals) {
				continue
			}

			size := len(tmpl.Intervals)
			onBass := chroma.PitchClass(root) == bass
			if size < bestSize || (size == bestSize && (bestOnBass || !onBass)) {
				continue
			}

			best = Chord{
				Root:    chroma.PitchClass(root),
				Bass:    bass,
				Quality: tmpl.Quality,
				Extra:   distinct - size,
				name:    chroma.PitchClass(root).String() + tmpl.Suffix,
			}
			bestSize = size
			bestOnBass = onBass
		}
	}

	return best, bestSize > 0
}

func covers(present [chroma.NumPitchClasses]bool, root int, intervals []int) bool {
	for _, iv := range intervals {
		if !present[(root+iv)%chroma.NumPitchClasses] {
			return false
		}
	}
	return true
}
