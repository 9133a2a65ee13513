package tonal

import (
	"testing"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
)

func TestNameChord(t *testing.T) {
	tests := []struct {
		name    string
		classes []chroma.PitchClass
		bass    chroma.PitchClass
		want    string
		quality ChordQuality
	}{
		{"C major", []chroma.PitchClass{chroma.C, chroma.E, chroma.G}, chroma.C, "C", ChordMajor},
		{"A minor", []chroma.PitchClass{chroma.A, chroma.C, chroma.E}, chroma.A, "Am", ChordMinor},
		{"first inversion", []chroma.PitchClass{chroma.E, chroma.G, chroma.C}, chroma.E, "C/E", ChordMajor},
		{"seventh beats triad", []chroma.PitchClass{chroma.G, chroma.B, chroma.D, chroma.F}, chroma.G, "G7", ChordDom7},
		{"Am7 over C6", []chroma.PitchClass{chroma.A, chroma.C, chroma.E, chroma.G}, chroma.A, "Am7", ChordMin7},
		{"power chord", []chroma.PitchClass{chroma.E, chroma.B}, chroma.E, "E5", ChordPowerChord},
		{"duplicates ignored", []chroma.PitchClass{chroma.F, chroma.A, chroma.C, chroma.F}, chroma.F, "F", ChordMajor},
		// augmented triads are symmetric; the bass picks the root
		{"augmented", []chroma.PitchClass{chroma.C, chroma.E, chroma.GSharp}, chroma.E, "Eaug", ChordAugmented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chord, ok := NameChord(tt.classes, tt.bass)
			if !ok {
				t.Fatal("expected a chord")
			}
			if chord.Name() != tt.want || chord.Quality != tt.quality {
				t.Errorf("expected %s, got %s (quality %d)", tt.want, chord.Name(), chord.Quality)
			}
		})
	}
}

func TestNameChordExtrasAndMisses(t *testing.T) {
	chord, ok := NameChord([]chroma.PitchClass{chroma.C, chroma.E, chroma.G, chroma.CSharp}, chroma.C)
	if !ok || chord.Name() != "C" || chord.Extra != 1 {
		t.Errorf("expected C with one extra class, got %s (%d extra)", chord.Name(), chord.Extra)
	}

	if _, ok := NameChord([]chroma.PitchClass{chroma.A}, chroma.A); ok {
		t.Error("a single class is not a chord")
	}
	if _, ok := NameChord([]chroma.PitchClass{chroma.C, chroma.CSharp}, chroma.C); ok {
		t.Error("expected no template for a semitone cluster")
	}
	if _, ok := NameChord(nil, chroma.C); ok {
		t.Error("expected no chord for empty input")
	}
}
