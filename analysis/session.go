package analysis

import (
	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
)

// Session owns the rolling note history of one audio source. Frames must be
// analyzed sequentially; a Session is not safe for concurrent use.
type Session struct {
	sampleRate float64
	history    *chroma.NoteHistory
	frames     uint64
	restarts   int
}

// NewSession creates a session bound to sampleRate. A zero rate binds on
// the first analyzed frame.
func NewSession(sampleRate float64, params chroma.NoteHistoryParams) *Session {
	return &Session{
		sampleRate: sampleRate,
		history:    chroma.NewNoteHistory(params),
	}
}

// SampleRate returns the rate the session is bound to
func (s *Session) SampleRate() float64 {
	return s.sampleRate
}

// Frames returns the number of frames analyzed since the last restart
func (s *Session) Frames() uint64 {
	return s.frames
}

// Restarts returns how many times the session was restarted
func (s *Session) Restarts() int {
	return s.restarts
}

// History returns a copy of every pitch class history, oldest first
func (s *Session) History() map[string][]float64 {
	return s.history.Snapshot()
}

// HistoryFor returns a copy of one pitch class history, oldest first
func (s *Session) HistoryFor(class chroma.PitchClass) []float64 {
	return s.history.Class(class)
}

// Latest returns the newest history value of every pitch class, indexed by
// pitch class
func (s *Session) Latest() [chroma.NumPitchClasses]float64 {
	var levels [chroma.NumPitchClasses]float64
	for _, class := range chroma.PitchClasses() {
		levels[class] = s.history.Latest(class)
	}
	return levels
}

// Restart rebinds the session to a new sample rate and zeroes its history
func (s *Session) Restart(sampleRate float64) {
	s.sampleRate = sampleRate
	s.restarts++
	s.Reset()
}

// Reset zeroes the history and frame counter, keeping the sample rate
func (s *Session) Reset() {
	s.history.Reset()
	s.frames = 0
}
