package stream

import (
	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/algorithms/filters"
	"github.com/RyanBlaney/sonido-tuner/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tuner/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
)

// Framer turns pushed PCM blocks into analysis frames. Each frame holds the
// raw window and its Hann-windowed magnitude spectrum, scaled so a full
// scale sine reads 1.0 at its bin.
type Framer struct {
	sampleRate float64
	window     *common.SlidingWindow
	hann       *windowing.Hann
	fft        *spectral.FFT
	gain       float64
	dc         *filters.DCRemoval
}

// NewFramer creates a framer for one sample rate
func NewFramer(cfg config.StreamConfig, sampleRate float64) *Framer {
	hann := windowing.NewHann(cfg.FrameSize, true)

	f := &Framer{
		sampleRate: sampleRate,
		window:     common.NewSlidingWindow(cfg.FrameSize, cfg.HopSize),
		hann:       hann,
		fft:        spectral.NewFFT(),
		gain:       2.0 / hann.Sum(),
	}

	if cfg.DCBlock {
		f.dc = filters.NewDCRemovalWithCutoff(sampleRate, cfg.DCCutoffHz)
	}

	return f
}

// SampleRate returns the rate frames are stamped with
func (f *Framer) SampleRate() float64 {
	return f.sampleRate
}

// FrameSize returns the analysis window length
func (f *Framer) FrameSize() int {
	return f.window.GetWindowSize()
}

// HopSize returns the number of samples between frame starts
func (f *Framer) HopSize() int {
	return f.window.GetHopSize()
}

// Buffered returns how many samples are waiting for the next frame
func (f *Framer) Buffered() int {
	return f.window.Buffered()
}

// Push appends mono samples and returns every frame that became ready
func (f *Framer) Push(samples []float64) []analysis.Frame {
	if f.dc != nil {
		samples = f.dc.ProcessBuffer(samples)
	}

	windows := f.window.AddSamples(samples)
	if len(windows) == 0 {
		return nil
	}

	frames := make([]analysis.Frame, len(windows))
	for i, w := range windows {
		frames[i] = f.frame(w)
	}
	return frames
}

// PushStereo downmixes two channels and pushes the result. A missing or
// mismatched right channel is ignored.
func (f *Framer) PushStereo(left, right []float64) []analysis.Frame {
	return f.Push(common.Downmix(left, right))
}

// Frame computes the spectrum of one full window without buffering
func (f *Framer) Frame(samples []float64) (analysis.Frame, bool) {
	if len(samples) != f.FrameSize() {
		return analysis.Frame{}, false
	}
	window := make([]float64, len(samples))
	copy(window, samples)
	return f.frame(window), true
}

func (f *Framer) frame(samples []float64) analysis.Frame {
	return analysis.Frame{
		Spectrum:    f.fft.Magnitude(f.hann.Apply(samples), f.gain),
		TimeSamples: samples,
		SampleRate:  f.sampleRate,
	}
}

// Reset drops buffered samples and filter state
func (f *Framer) Reset() {
	f.window.Reset()
	if f.dc != nil {
		f.dc.Reset()
	}
}
