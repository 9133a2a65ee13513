package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Chord is a named set of simultaneous notes
type Chord struct {
	Name  string
	Notes []chroma.Note
}

// Classes returns the chord's pitch classes
func (c Chord) Classes() []chroma.PitchClass {
	classes := make([]chroma.PitchClass, len(c.Notes))
	for i, n := range c.Notes {
		classes[i] = n.PitchClass
	}
	return classes
}

type pitch struct {
	class  chroma.PitchClass
	octave int
}

func triad(name string, notes ...pitch) Chord {
	chord := Chord{Name: name}
	for _, n := range notes {
		chord.Notes = append(chord.Notes, chroma.FrequencyToNote(chroma.NoteFrequency(n.class, n.octave)))
	}
	return chord
}

// DemoProgression returns the I-vi-IV-V progression in C major
func DemoProgression() []Chord {
	return []Chord{
		triad("C", pitch{chroma.C, 4}, pitch{chroma.E, 4}, pitch{chroma.G, 4}),
		triad("Am", pitch{chroma.A, 3}, pitch{chroma.C, 4}, pitch{chroma.E, 4}),
		triad("F", pitch{chroma.F, 3}, pitch{chroma.A, 3}, pitch{chroma.C, 4}),
		triad("G", pitch{chroma.G, 3}, pitch{chroma.B, 3}, pitch{chroma.D, 4}),
	}
}

// Config controls the demo synthesizer
type Config struct {
	SampleRate    int           `json:"sample_rate"`
	BPM           float64       `json:"bpm"`
	BeatsPerChord int           `json:"beats_per_chord"`
	Volume        float64       `json:"volume"`    // per-voice linear gain
	DetuneHz      float64       `json:"detune_hz"` // max random offset per voice
	Partials      []float64     `json:"partials"`  // relative harmonic amplitudes, fundamental first
	Envelope      EnvelopeShape `json:"envelope"`
	Seed          uint64        `json:"seed"`
}

// DefaultConfig returns a soft piano-like voice, two beats per chord at 90 BPM
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		BPM:           90,
		BeatsPerChord: 2,
		Volume:        0.25,
		DetuneHz:      0.5,
		Partials:      []float64{1.0, 0.4, 0.2, 0.1},
		Envelope: EnvelopeShape{
			Attack:  50 * time.Millisecond,
			Decay:   300 * time.Millisecond,
			Sustain: 0.6,
			Damping: 0.8,
			Release: 50 * time.Millisecond,
		},
		Seed: 1,
	}
}

// ChordDuration is the length of one chord at the configured tempo
func (c Config) ChordDuration() time.Duration {
	if c.BPM <= 0 {
		return 0
	}
	beats := float64(max(c.BeatsPerChord, 1))
	return time.Duration(beats * 60 / c.BPM * float64(time.Second))
}

// Progression renders chords one after another
func Progression(cfg Config, chords []Chord) beep.Streamer {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	streamers := make([]beep.Streamer, 0, len(chords))
	for _, chord := range chords {
		streamers = append(streamers, chordStreamer(cfg, chord, rng))
	}
	return beep.Seq(streamers...)
}

func chordStreamer(cfg Config, chord Chord, rng *rand.Rand) beep.Streamer {
	rate := beep.SampleRate(cfg.SampleRate)
	duration := cfg.ChordDuration()

	voices := make([]beep.Streamer, 0, len(chord.Notes))
	for _, note := range chord.Notes {
		detune := (rng.Float64()*2 - 1) * cfg.DetuneHz
		osc := NewOscillator(note.Frequency+detune, cfg.Partials, duration, rate)
		shaped := NewEnvelope(osc, duration, cfg.Envelope, rate)
		voices = append(voices, newVolume(shaped, cfg.Volume))
	}

	if len(voices) == 0 {
		return beep.Silence(rate.N(duration))
	}
	return beep.Mix(voices...)
}

// Tone renders a single sustained sine
func Tone(freq, amplitude float64, duration time.Duration, rate beep.SampleRate) beep.Streamer {
	return newVolume(NewOscillator(freq, []float64{1}, duration, rate), amplitude)
}

// Render reads up to maxSamples from s and averages its two channels.
// maxSamples <= 0 reads until the stream ends.
func Render(s beep.Streamer, maxSamples int) []float64 {
	var out []float64
	buf := make([][2]float64, 512)

	for maxSamples <= 0 || len(out) < maxSamples {
		chunk := buf
		if maxSamples > 0 {
			chunk = buf[:min(len(buf), maxSamples-len(out))]
		}

		n, ok := s.Stream(chunk)
		for i := range n {
			out = append(out, (chunk[i][0]+chunk[i][1])/2)
		}
		if !ok {
			break
		}
	}

	return out
}

// newVolume wraps s in a linear gain; zero or negative gain is silent
func newVolume(s beep.Streamer, gain float64) beep.Streamer {
	if gain <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(gain), Silent: false}
}
