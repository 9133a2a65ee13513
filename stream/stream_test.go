package stream

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
	"github.com/RyanBlaney/sonido-tuner/logging"
)

const testRate = 48000.0

func sine(freq, amplitude float64, n int, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func newTestTuner(t *testing.T, rate float64) *Tuner {
	t.Helper()
	a, err := analysis.NewAnalyzer(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a.SetLogger(&logging.NoOpLogger{})

	tuner := NewTuner(a, rate)
	tuner.SetLogger(&logging.NoOpLogger{})
	return tuner
}

func TestFramerHop(t *testing.T) {
	f := NewFramer(config.DefaultConfig().Stream, testRate)
	if f.HopSize() != 2048 {
		t.Fatalf("expected hop 2048, got %d", f.HopSize())
	}

	if frames := f.Push(make([]float64, 8000)); len(frames) != 0 {
		t.Fatalf("expected no frame before 8192 samples, got %d", len(frames))
	}
	if frames := f.Push(make([]float64, 192)); len(frames) != 1 {
		t.Fatalf("expected first frame at 8192 samples, got %d", len(frames))
	}
	if frames := f.Push(make([]float64, 4096)); len(frames) != 2 {
		t.Fatalf("expected two frames per 4096 samples at hop 2048, got %d", len(frames))
	}
	if f.Buffered() != 8192-2048 {
		t.Errorf("unexpected buffered count %d", f.Buffered())
	}

	f.Reset()
	if f.Buffered() != 0 {
		t.Error("Reset kept buffered samples")
	}
}

func TestFramerSpectrum(t *testing.T) {
	f := NewFramer(config.DefaultConfig().Stream, testRate)

	frames := f.Push(sine(440, 0.8, 8192, testRate))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	frame := frames[0]

	if len(frame.Spectrum) != 4096 || len(frame.TimeSamples) != 8192 || frame.SampleRate != testRate {
		t.Fatalf("unexpected frame shape %d/%d/%v", len(frame.Spectrum), len(frame.TimeSamples), frame.SampleRate)
	}

	peak := common.MaxIndex(frame.Spectrum)
	if peak != 75 {
		t.Errorf("expected peak at bin 75 (~439 Hz), got %d", peak)
	}
	if m := frame.Spectrum[peak]; m < 0.7 || m > 0.81 {
		t.Errorf("expected normalized magnitude near 0.8, got %v", m)
	}

	// raw samples are kept unwindowed
	if frame.TimeSamples[4096] != sine(440, 0.8, 8192, testRate)[4096] {
		t.Error("time samples were modified")
	}
}

func TestFramerStereoAndSingleFrame(t *testing.T) {
	f := NewFramer(config.DefaultConfig().Stream, testRate)

	left := sine(440, 0.8, 8192, testRate)
	right := make([]float64, 8192)
	frames := f.PushStereo(left, right)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if math.Abs(frames[0].TimeSamples[100]-left[100]/2) > 1e-12 {
		t.Error("stereo input was not averaged")
	}

	if _, ok := f.Frame(left[:100]); ok {
		t.Error("expected short buffer to be rejected")
	}
	frame, ok := f.Frame(left)
	if !ok || len(frame.Spectrum) != 4096 {
		t.Error("expected a full frame")
	}
	left[0] = 99
	if frame.TimeSamples[0] == 99 {
		t.Error("Frame aliased its input")
	}
}

func TestFramerDCBlock(t *testing.T) {
	cfg := config.DefaultConfig().Stream
	cfg.DCBlock = true
	f := NewFramer(cfg, testRate)

	samples := sine(440, 0.5, 8192, testRate)
	for i := range samples {
		samples[i] += 0.3
	}

	frames := f.Push(samples)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if mean := common.Mean(frames[0].TimeSamples[4096:]); math.Abs(mean) > 0.01 {
		t.Errorf("expected offset to be removed, mean %v", mean)
	}
}

func TestTunerProcess(t *testing.T) {
	tuner := newTestTuner(t, testRate)

	results, err := tuner.Process(sine(440, 0.8, 16384, testRate), testRate)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(results))
	}

	for _, r := range results {
		p, ok := r.Primary()
		if !ok || p.Name() != "A4" {
			t.Errorf("frame %d: expected A4, got %v", r.Frame, analysis.FormatPitches(r.Pitches))
		}
	}
	if tuner.Session().Frames() != 5 {
		t.Errorf("expected 5 session frames, got %d", tuner.Session().Frames())
	}
	if tuner.Session().HistoryFor(chroma.A)[119] <= 0 {
		t.Error("expected A activity in history")
	}
}

func TestTunerSampleRateChange(t *testing.T) {
	tuner := newTestTuner(t, testRate)

	if _, err := tuner.Process(make([]float64, 6000), testRate); err != nil {
		t.Fatal(err)
	}

	results, err := tuner.Process(make([]float64, 6000), 44100)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("buffered audio from the old rate leaked into a frame")
	}
	if tuner.SampleRate() != 44100 || tuner.Session().SampleRate() != 44100 || tuner.Session().Restarts() != 1 {
		t.Errorf("expected restart at 44100 Hz")
	}

	if _, err := tuner.Process(make([]float64, 10), 0); !errors.Is(err, analysis.ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame for zero rate, got %v", err)
	}
}

func TestTunerAnalyzeBuffer(t *testing.T) {
	tuner := newTestTuner(t, testRate)

	if _, err := tuner.AnalyzeBuffer(make([]float64, 100), testRate); !errors.Is(err, analysis.ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}

	results, err := tuner.AnalyzeBuffer(make([]float64, 8192+2048), testRate)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || !results[0].Silent {
		t.Errorf("expected 2 silent frames, got %d", len(results))
	}

	tuner.Stop()
	if tuner.Session().Frames() != 0 {
		t.Error("Stop did not reset the session")
	}
}

func TestTunerRun(t *testing.T) {
	tuner := newTestTuner(t, testRate)

	in := make(chan Block, 3)
	out := make(chan *analysis.FrameResult, 16)

	tone := sine(440, 0.8, 16384, testRate)
	in <- Block{Left: tone[:8192], SampleRate: testRate}
	in <- Block{Left: tone[:10], SampleRate: 0} // skipped
	in <- Block{Left: tone[8192:], Right: tone[8192:], SampleRate: testRate}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := tuner.Run(ctx, in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	count := 0
	for range out {
		count++
	}
	if count != 5 {
		t.Errorf("expected 5 results, got %d", count)
	}
}

func TestTunerRunCancelled(t *testing.T) {
	tuner := newTestTuner(t, testRate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tuner.Run(ctx, make(chan Block), make(chan *analysis.FrameResult))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
