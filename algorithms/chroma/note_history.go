package chroma

import (
	"math"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
)

// NoteHistoryParams controls how per-class activity is sampled from a spectrum
type NoteHistoryParams struct {
	Length       int     `json:"length"`        // entries kept per pitch class
	MinOctave    int     `json:"min_octave"`    // first octave averaged
	MaxOctave    int     `json:"max_octave"`    // last octave averaged (inclusive)
	MinFrequency float64 `json:"min_frequency"` // octave centers below this are skipped
	MaxFrequency float64 `json:"max_frequency"` // octave centers above this are skipped
}

// DefaultNoteHistoryParams returns 120 entries over octaves 1-6 within 50-2000 Hz
func DefaultNoteHistoryParams() NoteHistoryParams {
	return NoteHistoryParams{
		Length:       120,
		MinOctave:    1,
		MaxOctave:    6,
		MinFrequency: 50.0,
		MaxFrequency: 2000.0,
	}
}

// NoteHistory keeps a fixed-length rolling magnitude history per pitch class.
// Every Update pushes exactly one value into each of the 12 histories.
// It is not safe for concurrent use.
type NoteHistory struct {
	params  NoteHistoryParams
	classes [NumPitchClasses]*common.RingBuffer
}

// NewNoteHistory creates zero-filled histories
func NewNoteHistory(params NoteHistoryParams) *NoteHistory {
	nh := &NoteHistory{params: params}
	for i := range nh.classes {
		nh.classes[i] = common.NewRingBuffer(params.Length)
	}
	return nh
}

// Len returns the per-class history length
func (nh *NoteHistory) Len() int {
	return nh.classes[0].Len()
}

// Update samples the linear magnitude spectrum for every pitch class and
// pushes the results. binSize is sampleRate/fftSize.
func (nh *NoteHistory) Update(spectrum []float64, binSize float64) {
	for pc := range PitchClasses() {
		nh.classes[pc].Push(nh.ClassMagnitude(spectrum, binSize, PitchClass(pc)))
	}
}

// PushSilence pushes 0 for every pitch class
func (nh *NoteHistory) PushSilence() {
	for _, rb := range nh.classes {
		rb.Push(0)
	}
}

// ClassMagnitude averages the spectrum around the class's center frequency
// in each qualifying octave (left, center and right bins), then averages
// across octaves. It returns 0 when no octave qualifies.
func (nh *NoteHistory) ClassMagnitude(spectrum []float64, binSize float64, class PitchClass) float64 {
	if len(spectrum) == 0 || !(binSize > 0) {
		return 0
	}

	last := len(spectrum) - 1
	total := 0.0
	count := 0

	for octave := nh.params.MinOctave; octave <= nh.params.MaxOctave; octave++ {
		frequency := NoteFrequency(class, octave)
		if frequency < nh.params.MinFrequency || frequency > nh.params.MaxFrequency {
			continue
		}

		bin := int(math.Round(frequency / binSize))
		if bin < 0 || bin > last {
			continue
		}

		left := spectrum[max(0, bin-1)]
		center := spectrum[bin]
		right := spectrum[min(last, bin+1)]

		total += (left + center + right) / 3.0
		count++
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Class returns a copy of one class's history, oldest first
func (nh *NoteHistory) Class(class PitchClass) []float64 {
	if class < 0 || class >= NumPitchClasses {
		return nil
	}
	return nh.classes[class].Snapshot()
}

// Latest returns the newest value of one class
func (nh *NoteHistory) Latest(class PitchClass) float64 {
	if class < 0 || class >= NumPitchClasses {
		return 0
	}
	return nh.classes[class].Latest()
}

// Snapshot copies every history keyed by pitch class name, oldest first
func (nh *NoteHistory) Snapshot() map[string][]float64 {
	snapshot := make(map[string][]float64, NumPitchClasses)
	for pc, rb := range nh.classes {
		snapshot[PitchClass(pc).String()] = rb.Snapshot()
	}
	return snapshot
}

// Reset zero-fills every history
func (nh *NoteHistory) Reset() {
	for _, rb := range nh.classes {
		rb.Reset()
	}
}
