package filters

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
)

func TestRemoveMean(t *testing.T) {
	in := []float64{1.5, 2.5, 0.5, 3.5}
	out := RemoveMean(in)

	if math.Abs(common.Mean(out)) > 1e-12 {
		t.Errorf("expected zero mean, got %v", common.Mean(out))
	}
	if in[0] != 1.5 {
		t.Error("RemoveMean modified its input")
	}
}

func TestDCRemovalConvergesToZero(t *testing.T) {
	dc := NewDCRemovalWithCutoff(48000, 10)

	var last float64
	for range 48000 {
		last = dc.Process(0.3)
	}

	if math.Abs(last) > 1e-3 {
		t.Errorf("constant input should decay to ~0, got %v", last)
	}

	dc.Reset()
	if out := dc.Process(0); out != 0 {
		t.Errorf("expected 0 after reset, got %v", out)
	}
}

func TestDCRemovalCutoff(t *testing.T) {
	dc := NewDCRemovalWithCutoff(48000, 20)
	if got := dc.GetCutoffFrequency(48000); math.Abs(got-20) > 1e-9 {
		t.Errorf("cutoff = %v, want 20", got)
	}
	if dc := NewDCRemovalWithCutoff(0, 20); dc.GetPoleLocation() != 0.995 {
		t.Errorf("invalid rate should keep default pole, got %v", dc.GetPoleLocation())
	}
}
