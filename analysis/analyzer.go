package analysis

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
	"github.com/RyanBlaney/sonido-tuner/logging"
)

// Analyzer runs the per-frame pitch pipeline:
//
//	spectrum -> PeakDetector -> PolyphonicAssembler -\
//	                                                  Fuse -> FrameResult
//	samples  -> MonophonicEstimator -----------------/
//
// and updates the session's note history from the spectrum. An Analyzer
// holds only immutable configuration and may be shared between sessions.
type Analyzer struct {
	config    *config.Config
	peaks     *harmonic.PeakDetector
	assembler *harmonic.PolyphonicAssembler
	mono      *tonal.MonophonicEstimator
	logger    logging.Logger
}

// NewAnalyzer creates an analyzer. A nil config uses DefaultConfig.
func NewAnalyzer(cfg *config.Config) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer config: %w", err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "pitch_analyzer",
		"register":  string(cfg.Register),
	})

	return &Analyzer{
		config:    cfg,
		peaks:     harmonic.NewPeakDetector(cfg.Spectral),
		assembler: harmonic.NewPolyphonicAssembler(cfg.Polyphonic),
		mono:      tonal.NewMonophonicEstimator(cfg.Monophonic),
		logger:    logger,
	}, nil
}

// SetLogger replaces the analyzer's logger
func (a *Analyzer) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	a.logger = logger.WithFields(logging.Fields{
		"component": "pitch_analyzer",
		"register":  string(a.config.Register),
	})
}

// Config returns the analyzer configuration
func (a *Analyzer) Config() *config.Config {
	return a.config
}

// NewSession creates a session using the configured history parameters
func (a *Analyzer) NewSession(sampleRate float64) *Session {
	return NewSession(sampleRate, a.config.History)
}

// Analyze estimates the pitches of one frame and pushes one value per pitch
// class into the session history. An invalid frame returns an error wrapping
// ErrInvalidFrame and leaves the session untouched.
func (a *Analyzer) Analyze(frame Frame, session *Session) (*FrameResult, error) {
	if session == nil {
		return nil, fmt.Errorf("analyze: nil session")
	}
	if err := frame.Validate(a.config.StrictLengths); err != nil {
		a.logger.Debug("Rejected frame", logging.Fields{
			"error":        err.Error(),
			"frame":        session.frames + 1,
			"bins":         len(frame.Spectrum),
			"samples":      len(frame.TimeSamples),
			"rate":         frame.SampleRate,
			"session_rate": session.sampleRate,
		})
		return nil, err
	}

	if err := a.bindSampleRate(frame.SampleRate, session); err != nil {
		return nil, err
	}

	start := time.Now()

	peaks := a.peaks.DetectPeaks(frame.Spectrum, frame.SampleRate)
	poly := a.assembler.Assemble(peaks)
	mono := a.mono.Analyze(frame.TimeSamples, frame.SampleRate)

	pitches := Fuse(poly, mono.Frequency, mono.Voiced, a.config.Fusion, a.config.Polyphonic.MaxPeaks)

	silent := common.RMS(frame.Spectrum) < a.config.Spectral.SilenceFloor &&
		mono.RMS < a.config.Monophonic.SilenceFloor
	if silent {
		session.history.PushSilence()
	} else {
		session.history.Update(frame.Spectrum, frame.BinSize())
	}
	session.frames++

	result := &FrameResult{
		Pitches:     pitches,
		Silent:      silent,
		ProcessTime: time.Since(start),
		Frame:       session.frames,
	}

	if a.config.Budget > 0 && result.ProcessTime > a.config.Budget {
		a.logger.Warn("Frame analysis exceeded budget", logging.Fields{
			"frame":        result.Frame,
			"process_time": result.ProcessTime.String(),
			"budget":       a.config.Budget.String(),
			"fft_size":     frame.FFTSize(),
		})
	}

	if len(pitches) > 0 {
		a.logger.Debug("Frame analyzed", logging.Fields{
			"frame":       result.Frame,
			"peaks":       len(peaks),
			"notes":       len(poly),
			"mono_hz":     mono.Frequency,
			"correlation": mono.Correlation,
			"pitches":     len(pitches),
		})
	}

	return result, nil
}

// bindSampleRate ties an unbound session to rate and handles rate changes
func (a *Analyzer) bindSampleRate(rate float64, session *Session) error {
	switch {
	case session.sampleRate == 0:
		session.sampleRate = rate
	case session.sampleRate != rate:
		if !a.config.AutoRestart {
			return fmt.Errorf("%w: session at %v Hz, frame at %v Hz", ErrSampleRateChanged, session.sampleRate, rate)
		}
		a.logger.Info("Sample rate changed, restarting session", logging.Fields{
			"old_rate": session.sampleRate,
			"new_rate": rate,
		})
		session.Restart(rate)
	}
	return nil
}
