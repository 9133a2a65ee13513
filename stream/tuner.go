package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/RyanBlaney/sonido-tuner/logging"
)

// Block is one chunk of host audio. Right may be nil for mono input.
type Block struct {
	Left       []float64
	Right      []float64
	SampleRate float64
}

// Tuner couples a framer, an analyzer and one session. Blocks must be
// delivered by a single producer; a Tuner is not safe for concurrent use.
type Tuner struct {
	analyzer *analysis.Analyzer
	session  *analysis.Session
	framer   *Framer
	logger   logging.Logger
}

// NewTuner creates a tuner for audio at sampleRate
func NewTuner(analyzer *analysis.Analyzer, sampleRate float64) *Tuner {
	return &Tuner{
		analyzer: analyzer,
		session:  analyzer.NewSession(sampleRate),
		framer:   NewFramer(analyzer.Config().Stream, sampleRate),
		logger: logging.WithFields(logging.Fields{
			"component": "tuner",
		}),
	}
}

// SetLogger replaces the tuner's logger
func (t *Tuner) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	t.logger = logger.WithFields(logging.Fields{"component": "tuner"})
}

// Session returns the tuner's session for history reads
func (t *Tuner) Session() *analysis.Session {
	return t.session
}

// SampleRate returns the current input rate
func (t *Tuner) SampleRate() float64 {
	return t.framer.SampleRate()
}

// Process pushes a mono block and analyzes every frame it completes
func (t *Tuner) Process(samples []float64, sampleRate float64) ([]*analysis.FrameResult, error) {
	return t.ProcessStereo(samples, nil, sampleRate)
}

// ProcessStereo downmixes a stereo block, pushes it and analyzes every frame
// it completes. A sample rate change restarts the session and drops
// buffered audio.
func (t *Tuner) ProcessStereo(left, right []float64, sampleRate float64) ([]*analysis.FrameResult, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: sample rate %v", analysis.ErrInvalidFrame, sampleRate)
	}

	if sampleRate != t.framer.SampleRate() {
		t.logger.Info("Input sample rate changed", logging.Fields{
			"old_rate": t.framer.SampleRate(),
			"new_rate": sampleRate,
		})
		t.framer = NewFramer(t.analyzer.Config().Stream, sampleRate)
		t.session.Restart(sampleRate)
	}

	frames := t.framer.PushStereo(left, right)

	results := make([]*analysis.FrameResult, 0, len(frames))
	for _, frame := range frames {
		result, err := t.analyzer.Analyze(frame, t.session)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// AnalyzeBuffer analyzes a complete recording from the start of a fresh
// session. It returns ErrEmptyAudio when the buffer is shorter than one frame.
func (t *Tuner) AnalyzeBuffer(samples []float64, sampleRate float64) ([]*analysis.FrameResult, error) {
	if len(samples) < t.framer.FrameSize() {
		return nil, fmt.Errorf("%w: %d samples, need %d", analysis.ErrEmptyAudio, len(samples), t.framer.FrameSize())
	}

	t.Stop()
	return t.Process(samples, sampleRate)
}

// Run analyzes blocks until in is closed or ctx is done. Invalid blocks are
// logged and skipped; each result is sent on out.
func (t *Tuner) Run(ctx context.Context, in <-chan Block, out chan<- *analysis.FrameResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-in:
			if !ok {
				return nil
			}

			results, err := t.ProcessStereo(block.Left, block.Right, block.SampleRate)
			if err != nil {
				if !errors.Is(err, analysis.ErrInvalidFrame) {
					return err
				}
				t.logger.Warn("Skipping invalid block", logging.Fields{
					"error":   err.Error(),
					"samples": len(block.Left),
				})
			}

			for _, result := range results {
				select {
				case out <- result:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// Stop ends the session: buffered audio is dropped and the history zeroed
func (t *Tuner) Stop() {
	t.framer.Reset()
	t.session.Reset()
}
