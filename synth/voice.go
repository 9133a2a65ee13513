package synth

import (
	"math"
	"time"

	"github.com/gopxl/beep"
)

// oscillator sums harmonic partials of one fundamental
type oscillator struct {
	freq     float64
	partials []float64
	phase    float64 // fundamental phase in cycles, [0,1)
	duration int
	position int
	rate     beep.SampleRate
}

// NewOscillator creates a harmonic oscillator. partials[k] is the amplitude
// of harmonic k+1; the output is normalized so the partials sum to 1.
func NewOscillator(freq float64, partials []float64, duration time.Duration, rate beep.SampleRate) beep.Streamer {
	total := 0.0
	for _, p := range partials {
		total += math.Abs(p)
	}

	normalized := make([]float64, len(partials))
	if total > 0 {
		for i, p := range partials {
			normalized[i] = p / total
		}
	}

	return &oscillator{
		freq:     freq,
		partials: normalized,
		duration: rate.N(duration),
		rate:     rate,
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		val := 0.0
		for k, amp := range o.partials {
			val += amp * math.Sin(2*math.Pi*float64(k+1)*o.phase)
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// EnvelopeShape is a piano-style amplitude contour: linear attack to full
// level, linear decay to Sustain, then exponential damping at Damping per
// second, with a linear fade over the final Release
type EnvelopeShape struct {
	Attack  time.Duration `json:"attack"`
	Decay   time.Duration `json:"decay"`
	Sustain float64       `json:"sustain"`
	Damping float64       `json:"damping"`
	Release time.Duration `json:"release"`
}

type envelope struct {
	streamer       beep.Streamer
	position       int
	attackSamples  int
	decaySamples   int
	releaseSamples int
	totalSamples   int
	sustain        float64
	dampPerSample  float64
}

// NewEnvelope shapes s over duration
func NewEnvelope(s beep.Streamer, duration time.Duration, shape EnvelopeShape, rate beep.SampleRate) beep.Streamer {
	return &envelope{
		streamer:       s,
		attackSamples:  rate.N(shape.Attack),
		decaySamples:   rate.N(shape.Decay),
		releaseSamples: rate.N(shape.Release),
		totalSamples:   rate.N(duration),
		sustain:        shape.Sustain,
		dampPerSample:  shape.Damping / float64(rate),
	}
}

// level returns the envelope gain at a sample position
func (e *envelope) level(position int) float64 {
	var vol float64

	switch {
	case position < e.attackSamples:
		vol = float64(position) / float64(e.attackSamples)
	case position < e.attackSamples+e.decaySamples:
		progress := float64(position-e.attackSamples) / float64(e.decaySamples)
		vol = 1 - (1-e.sustain)*progress
	default:
		held := position - e.attackSamples - e.decaySamples
		vol = e.sustain * math.Exp(-float64(held)*e.dampPerSample)
	}

	releaseStart := e.totalSamples - e.releaseSamples
	if e.releaseSamples > 0 && position >= releaseStart {
		vol *= float64(e.totalSamples-position) / float64(e.releaseSamples)
	}

	return max(vol, 0)
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)

	for i := range n {
		if e.position >= e.totalSamples {
			return i, i > 0
		}

		vol := e.level(e.position)
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}

	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }
