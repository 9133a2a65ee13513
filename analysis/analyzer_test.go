package analysis_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tuner/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
	"github.com/RyanBlaney/sonido-tuner/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	sampleRate = 48000.0
	frameSize  = 8192
)

type tone struct {
	freq, amplitude, phase float64
}

// makeFrame renders tones into one analysis window and its spectrum
func makeFrame(rate float64, tones ...tone) analysis.Frame {
	samples := make([]float64, frameSize)
	for i := range samples {
		for _, t := range tones {
			samples[i] += t.amplitude * math.Sin(2*math.Pi*t.freq*float64(i)/rate+t.phase)
		}
	}

	hann := windowing.NewHann(frameSize, true)
	spectrum := spectral.NewFFT().Magnitude(hann.Apply(samples), 2.0/hann.Sum())

	return analysis.Frame{
		Spectrum:    spectrum,
		TimeSamples: samples,
		SampleRate:  rate,
	}
}

func silentFrame() analysis.Frame {
	return analysis.Frame{
		Spectrum:    make([]float64, frameSize/2),
		TimeSamples: make([]float64, frameSize),
		SampleRate:  sampleRate,
	}
}

func newAnalyzer(t *testing.T, cfg *config.Config) *analysis.Analyzer {
	t.Helper()
	a, err := analysis.NewAnalyzer(cfg)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	a.SetLogger(&logging.NoOpLogger{})
	return a
}

func analyze(t *testing.T, a *analysis.Analyzer, s *analysis.Session, frame analysis.Frame) *analysis.FrameResult {
	t.Helper()
	result, err := a.Analyze(frame, s)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return result
}

func names(notes []chroma.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Name()
	}
	return out
}

func TestAnalyzeSingleTone(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)

	result := analyze(t, a, s, makeFrame(sampleRate, tone{440, 0.8, 0}))

	if len(result.Pitches) != 1 {
		t.Fatalf("expected exactly one pitch, got %v", names(result.Pitches))
	}
	p := result.Pitches[0]
	if p.PitchClass != chroma.A || p.Octave != 4 || p.Cents < -5 || p.Cents > 5 {
		t.Errorf("expected A4 within 5 cents, got %s %+d", p.Name(), p.Cents)
	}
	if result.Silent || result.Frame != 1 {
		t.Errorf("unexpected result metadata %+v", result)
	}
	if s.HistoryFor(chroma.A)[119] <= 0 {
		t.Error("expected activity in the A history")
	}
}

func TestAnalyzeSingleNoteAcrossRegister(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		tones []tone
	}{
		{"G3 with overtones", "G3", []tone{{196, 0.5, 0}, {392, 0.3, 0}, {588, 0.2, 0}}},
		{"A2 with overtones", "A2", []tone{{110, 0.5, 0}, {220, 0.3, 0}, {330, 0.2, 0}}},
		{"loud A1", "A1", []tone{{55, 0.9, 0}}},
		{"loud B6", "B6", []tone{{1975.53, 0.9, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAnalyzer(t, nil)
			result := analyze(t, a, a.NewSession(sampleRate), makeFrame(sampleRate, tt.tones...))

			if got := names(result.Pitches); !reflect.DeepEqual(got, []string{tt.want}) {
				t.Fatalf("expected [%s], got %s", tt.want, analysis.FormatPitches(result.Pitches))
			}
			if c := result.Pitches[0].Cents; c < -5 || c > 5 {
				t.Errorf("expected %s within 5 cents, got %+d", tt.want, c)
			}
		})
	}
}

func TestAnalyzeRejectsOctave(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)

	result := analyze(t, a, s, makeFrame(sampleRate,
		tone{261.63, 0.4, 0},
		tone{523.25, 0.4, 0.3},
	))

	if len(result.Pitches) != 1 || result.Pitches[0].Name() != "C4" {
		t.Errorf("expected only C4, got %v", names(result.Pitches))
	}
}

func TestAnalyzeReportsFifth(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)

	result := analyze(t, a, s, makeFrame(sampleRate,
		tone{261.63, 0.4, 0},
		tone{392.00, 0.4, 1.0},
	))

	if got := names(result.Pitches); !reflect.DeepEqual(got, []string{"C4", "G4"}) {
		t.Errorf("expected [C4 G4], got %v", got)
	}
}

func TestAnalyzeLimitsPitchCount(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)

	var tones []tone
	for i, f := range []float64{200, 230, 290, 340, 410, 470, 550, 610} {
		tones = append(tones, tone{f, 0.1, float64(i) * 0.7})
	}

	result := analyze(t, a, s, makeFrame(sampleRate, tones...))

	if len(result.Pitches) != 6 {
		t.Fatalf("expected 6 pitches, got %v", names(result.Pitches))
	}
	seen := make(map[string]bool)
	for _, p := range result.Pitches {
		if seen[p.Name()] {
			t.Errorf("duplicate pitch %s", p.Name())
		}
		seen[p.Name()] = true
	}
}

func TestAnalyzeSilentFrame(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)

	analyze(t, a, s, makeFrame(sampleRate, tone{440, 0.8, 0}))
	result := analyze(t, a, s, silentFrame())

	if len(result.Pitches) != 0 || !result.Silent {
		t.Errorf("expected a silent empty result, got %+v", result)
	}

	for name, history := range s.History() {
		if len(history) != 120 {
			t.Errorf("%s: history length %d", name, len(history))
		}
		if history[119] != 0 {
			t.Errorf("%s: expected silence push, got %v", name, history[119])
		}
	}
	if s.HistoryFor(chroma.A)[118] <= 0 {
		t.Error("previous frame's A activity was lost")
	}
}

func TestAnalyzeHistoryLength(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)

	for range 130 {
		analyze(t, a, s, silentFrame())
	}

	if s.Frames() != 130 {
		t.Errorf("expected 130 frames, got %d", s.Frames())
	}
	for _, class := range chroma.PitchClasses() {
		if got := len(s.HistoryFor(class)); got != 120 {
			t.Errorf("%s: history length %d", class, got)
		}
	}
}

func TestAnalyzeInvalidFrames(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(sampleRate)
	analyze(t, a, s, makeFrame(sampleRate, tone{440, 0.8, 0}))

	before := s.History()

	good := silentFrame()
	nan := silentFrame()
	nan.Spectrum[10] = math.NaN()
	negative := silentFrame()
	negative.Spectrum[3] = -1

	frames := map[string]analysis.Frame{
		"zero rate":       {Spectrum: good.Spectrum, TimeSamples: good.TimeSamples},
		"negative rate":   {Spectrum: good.Spectrum, TimeSamples: good.TimeSamples, SampleRate: -48000},
		"empty spectrum":  {TimeSamples: good.TimeSamples, SampleRate: sampleRate},
		"empty samples":   {Spectrum: good.Spectrum, SampleRate: sampleRate},
		"length mismatch": {Spectrum: good.Spectrum, TimeSamples: good.TimeSamples[:4096], SampleRate: sampleRate},
		"nan bin":         nan,
		"negative bin":    negative,
	}

	for name, frame := range frames {
		result, err := a.Analyze(frame, s)
		if !errors.Is(err, analysis.ErrInvalidFrame) {
			t.Errorf("%s: expected ErrInvalidFrame, got %v", name, err)
		}
		if result != nil {
			t.Errorf("%s: expected nil result", name)
		}
	}

	if !reflect.DeepEqual(before, s.History()) || s.Frames() != 1 {
		t.Error("invalid frames modified the session")
	}
}

func TestAnalyzeLooseLengths(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StrictLengths = false
	a := newAnalyzer(t, cfg)

	frame := makeFrame(sampleRate, tone{440, 0.8, 0})
	frame.TimeSamples = frame.TimeSamples[:2048]

	if _, err := a.Analyze(frame, a.NewSession(sampleRate)); err != nil {
		t.Errorf("expected short time buffer to be accepted, got %v", err)
	}
}

func TestAnalyzeSampleRateChange(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AutoRestart = false
	strict := newAnalyzer(t, cfg)

	s := strict.NewSession(sampleRate)
	analyze(t, strict, s, makeFrame(sampleRate, tone{440, 0.8, 0}))

	_, err := strict.Analyze(makeFrame(44100, tone{440, 0.8, 0}), s)
	if !errors.Is(err, analysis.ErrSampleRateChanged) {
		t.Fatalf("expected ErrSampleRateChanged, got %v", err)
	}
	if s.Frames() != 1 {
		t.Error("rejected frame was counted")
	}

	auto := newAnalyzer(t, nil)
	analyze(t, auto, s, silentFrame()) // same rate, no restart
	rateChange := silentFrame()
	rateChange.SampleRate = 44100
	analyze(t, auto, s, rateChange)

	if s.SampleRate() != 44100 || s.Restarts() != 1 || s.Frames() != 1 {
		t.Errorf("expected a restart at 44100 Hz, got rate=%v restarts=%d frames=%d", s.SampleRate(), s.Restarts(), s.Frames())
	}
	if s.HistoryFor(chroma.A)[118] != 0 {
		t.Error("restart did not zero the history")
	}
}

func TestAnalyzeUnboundSession(t *testing.T) {
	a := newAnalyzer(t, nil)
	s := a.NewSession(0)

	analyze(t, a, s, silentFrame())
	if s.SampleRate() != sampleRate || s.Restarts() != 0 {
		t.Errorf("expected session to bind to %v, got %v", sampleRate, s.SampleRate())
	}

	if _, err := a.Analyze(silentFrame(), nil); err == nil {
		t.Error("expected error for nil session")
	}
}

func TestAnalyzeBudgetWarning(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Budget = time.Nanosecond
	a := newAnalyzer(t, cfg)

	core, recorded := observer.New(zapcore.DebugLevel)
	a.SetLogger(logging.NewZapLogger(zap.New(core)))

	result := analyze(t, a, a.NewSession(sampleRate), makeFrame(sampleRate, tone{440, 0.8, 0}))

	warnings := recorded.FilterMessage("Frame analysis exceeded budget").All()
	if len(warnings) != 1 {
		t.Fatalf("expected one budget warning, got %d", len(warnings))
	}
	if warnings[0].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", warnings[0].Level)
	}
	if warnings[0].ContextMap()["component"] != "pitch_analyzer" {
		t.Errorf("missing component field: %v", warnings[0].ContextMap())
	}
	if result.ProcessTime <= 0 {
		t.Error("expected a measured process time")
	}
}

func TestNewAnalyzerRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Polyphonic.MaxPeaks = 0

	if _, err := analysis.NewAnalyzer(cfg); err == nil {
		t.Error("expected config validation error")
	}
}
