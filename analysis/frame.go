package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/algorithms/spectral"
)

var (
	// ErrInvalidFrame is returned for frames that cannot be analyzed
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrSampleRateChanged is returned when a frame's sample rate differs
	// from its session's and automatic restart is disabled
	ErrSampleRateChanged = errors.New("sample rate changed")

	// ErrEmptyAudio is returned when a buffer is too short to produce a frame
	ErrEmptyAudio = errors.New("empty audio")
)

// Frame is one analysis tick: a linear magnitude spectrum and the
// time-domain window it was computed from
type Frame struct {
	Spectrum    []float64 `json:"spectrum"`     // linear magnitudes, bin i at i*SampleRate/FFTSize
	TimeSamples []float64 `json:"time_samples"` // raw samples in [-1,1]
	SampleRate  float64   `json:"sample_rate"`
}

// NewFrameFromDecibels builds a frame from a dBFS spectrum
func NewFrameFromDecibels(db, samples []float64, sampleRate float64) Frame {
	return Frame{
		Spectrum:    spectral.DecibelsToLinear(db),
		TimeSamples: samples,
		SampleRate:  sampleRate,
	}
}

// NewFrameFromBytes builds a frame from a 0-255 analyser spectrum spanning
// the default -100..-10 dB range
func NewFrameFromBytes(data []uint8, samples []float64, sampleRate float64) Frame {
	return Frame{
		Spectrum:    spectral.BytesToLinear(data, spectral.DefaultMinDecibels, spectral.DefaultMaxDecibels),
		TimeSamples: samples,
		SampleRate:  sampleRate,
	}
}

// FFTSize is the transform length the spectrum came from
func (f Frame) FFTSize() int {
	return 2 * len(f.Spectrum)
}

// BinSize is the width of one spectrum bin in Hz
func (f Frame) BinSize() float64 {
	if len(f.Spectrum) == 0 {
		return 0
	}
	return f.SampleRate / float64(f.FFTSize())
}

// Validate checks the frame. With strictLengths the time buffer must be
// exactly FFTSize samples long.
func (f Frame) Validate(strictLengths bool) error {
	if !(f.SampleRate > 0) || !common.IsFinite(f.SampleRate) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidFrame, f.SampleRate)
	}
	if len(f.Spectrum) == 0 {
		return fmt.Errorf("%w: empty spectrum", ErrInvalidFrame)
	}
	if len(f.TimeSamples) == 0 {
		return fmt.Errorf("%w: empty time buffer", ErrInvalidFrame)
	}
	if strictLengths && len(f.TimeSamples) != f.FFTSize() {
		return fmt.Errorf("%w: %d time samples for %d spectrum bins", ErrInvalidFrame, len(f.TimeSamples), len(f.Spectrum))
	}

	for i, v := range f.Spectrum {
		if v < 0 || !common.IsFinite(v) {
			return fmt.Errorf("%w: spectrum bin %d is %v", ErrInvalidFrame, i, v)
		}
	}
	for i, v := range f.TimeSamples {
		if !common.IsFinite(v) {
			return fmt.Errorf("%w: sample %d is %v", ErrInvalidFrame, i, v)
		}
	}

	return nil
}

// FrameResult holds the pitches found in one frame
type FrameResult struct {
	Pitches     []chroma.Note `json:"pitches"` // at most MaxPeaks, unique pitch class and octave
	Silent      bool          `json:"silent"`  // both paths were under their silence floor
	ProcessTime time.Duration `json:"process_time"`
	Frame       uint64        `json:"frame"` // 1-based index within the session
}

// Primary returns the first reported pitch, which is the fundamental when
// the autocorrelation estimate was fused in
func (r *FrameResult) Primary() (chroma.Note, bool) {
	if r == nil || len(r.Pitches) == 0 {
		return chroma.Note{}, false
	}
	return r.Pitches[0], true
}
