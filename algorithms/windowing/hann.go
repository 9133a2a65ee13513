package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Hann represents a Hann (raised-cosine) window function
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
	sum          float64
}

// NewHann creates a new Hann window. Symmetric windows end on zero at both
// edges, which is what the autocorrelation taper wants; periodic windows
// suit FFT framing.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hann) generate() {
	if h.size <= 0 {
		h.coefficients = []float64{}
		return
	}

	if h.symmetric {
		h.coefficients = window.Hann(h.size)
	} else {
		h.coefficients = window.Hann(h.size + 1)[:h.size]
	}
	h.sum = floats.Sum(h.coefficients)
}

// Apply applies the window to a signal (creates new array)
func (h *Hann) Apply(signal []float64) []float64 {
	if len(signal) != h.size {
		return nil
	}

	windowed := make([]float64, h.size)
	floats.MulTo(windowed, signal, h.coefficients)
	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	floats.Mul(signal, h.coefficients)
	return nil
}

// Sum returns the coherent gain of the window (sum of coefficients)
func (h *Hann) Sum() float64 {
	return h.sum
}
