package chroma

import (
	"fmt"
	"math"
	"strings"
)

// Tuning reference: A4 = 440 Hz is note index 57 counted from C0
const (
	ReferenceFrequency = 440.0
	ReferenceIndex     = 57
	NumPitchClasses    = 12

	// keeps exact note frequencies at 0 cents despite rounding in Pow/Log2
	centsEpsilon = 1e-9
)

// PitchClass represents a pitch class (0=C, 1=C#, ..., 11=B)
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var pitchClassNames = [NumPitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (pc PitchClass) String() string {
	if pc < 0 || pc >= NumPitchClasses {
		return fmt.Sprintf("PitchClass(%d)", int(pc))
	}
	return pitchClassNames[pc]
}

// PitchClasses returns the 12 classes in chromatic order starting at C
func PitchClasses() []PitchClass {
	classes := make([]PitchClass, NumPitchClasses)
	for i := range classes {
		classes[i] = PitchClass(i)
	}
	return classes
}

// ParsePitchClass accepts sharp names ("C#") and their flat spellings ("Db")
func ParsePitchClass(name string) (PitchClass, error) {
	n := strings.TrimSpace(name)
	for i, candidate := range pitchClassNames {
		if strings.EqualFold(candidate, n) {
			return PitchClass(i), nil
		}
	}

	if len(n) == 2 && (n[1] == 'b' || n[1] == 'B') {
		base, err := ParsePitchClass(n[:1])
		if err == nil {
			return PitchClass((int(base) + NumPitchClasses - 1) % NumPitchClasses), nil
		}
	}

	return 0, fmt.Errorf("unknown pitch class %q", name)
}

// Note is a single pitch estimate: the measured frequency plus its nearest
// equal-tempered note and the deviation from it in cents.
type Note struct {
	Frequency  float64    `json:"frequency"`
	PitchClass PitchClass `json:"pitch_class"`
	Octave     int        `json:"octave"`
	Cents      int        `json:"cents"`
	Magnitude  float64    `json:"magnitude,omitempty"` // peak magnitude; 1.0 for time-domain estimates
}

// Name returns scientific pitch notation, e.g. "A4" or "C#3"
func (n Note) Name() string {
	return fmt.Sprintf("%s%d", n.PitchClass, n.Octave)
}

// Index returns the note index counted from C0
func (n Note) Index() int {
	return n.Octave*NumPitchClasses + int(n.PitchClass)
}

// InTune reports whether the estimate is within tolerance cents of its note
func (n Note) InTune(tolerance int) bool {
	return n.Cents > -tolerance && n.Cents < tolerance
}

// FrequencyToNote maps a frequency to its nearest note. The frequency must be
// positive and finite; anything else is a caller bug and panics.
func FrequencyToNote(frequency float64) Note {
	if !(frequency > 0) || math.IsInf(frequency, 1) {
		panic(fmt.Sprintf("chroma: FrequencyToNote called with invalid frequency %v", frequency))
	}

	halfSteps := 12.0 * math.Log2(frequency/ReferenceFrequency)
	noteIndex := int(math.Round(halfSteps)) + ReferenceIndex

	octave := floorDiv(noteIndex, NumPitchClasses)
	class := PitchClass(noteIndex - octave*NumPitchClasses)

	perfect := indexFrequency(noteIndex)
	cents := int(math.Floor(1200.0*math.Log2(frequency/perfect) + centsEpsilon))

	return Note{
		Frequency:  frequency,
		PitchClass: class,
		Octave:     octave,
		Cents:      cents,
	}
}

// NoteFrequency returns the equal-tempered center frequency of a note
func NoteFrequency(class PitchClass, octave int) float64 {
	return indexFrequency(octave*NumPitchClasses + int(class))
}

func indexFrequency(noteIndex int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(noteIndex-ReferenceIndex)/12.0)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
