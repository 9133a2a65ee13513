package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
)

func writeSineWAV(t *testing.T, freq float64, rate uint32, n int) string {
	t.Helper()

	var data bytes.Buffer
	for i := range n {
		v := int16(math.Round(26000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))))
		binary.Write(&data, binary.LittleEndian, v)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(1), rate, rate * 2, uint16(2), uint16(16)} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunInputWAV(t *testing.T) {
	path := writeSineWAV(t, 440, 48000, 48000)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-input", path, "-log-level", "error"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v (stderr %q)", err, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "A4") {
		t.Errorf("expected A4 in output:\n%s", out)
	}
	if !strings.Contains(out, "Pitch class history (20 frames") {
		t.Errorf("expected history summary for 20 frames:\n%s", out)
	}
	if !strings.Contains(out, "A  |") || !strings.Contains(out, "@") {
		t.Errorf("expected a shaded A row:\n%s", out)
	}
}

func TestRunDemo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := []string{"-demo", "-every", "10", "-log-level", "error", "-profile"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	for _, note := range []string{"C4", "E4", "G4", "A3", "F3", "B3", "D4"} {
		if !strings.Contains(out, note) {
			t.Errorf("expected %s in demo output", note)
		}
	}
	for _, chord := range []string{"[C]", "[Am]", "[F]", "[G]"} {
		if !strings.Contains(out, chord) {
			t.Errorf("expected chord %s in demo output", chord)
		}
	}
	if !strings.Contains(out, "Profile") || !strings.Contains(out, "per frame:") {
		t.Errorf("expected profile report:\n%s", out)
	}
}

func TestRunConfigFile(t *testing.T) {
	cfg := config.GetRegisterConfig(config.RegisterVocal)
	path := filepath.Join(t.TempDir(), "tuner.json")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	wav := writeSineWAV(t, 220, 44100, 20000)
	var stdout, stderr bytes.Buffer
	args := []string{"-input", wav, "-config", path, "-quiet", "-zap", "-log-level", "error"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout.String(), "A3 ") {
		t.Error("-quiet should suppress frame lines")
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no source", nil},
		{"both sources", []string{"-demo", "-input", "x.wav"}},
		{"bad register", []string{"-demo", "-register", "bass"}},
		{"bad log level", []string{"-demo", "-log-level", "loud"}},
		{"missing file", []string{"-input", filepath.Join(t.TempDir(), "missing.wav")}},
		{"missing config", []string{"-demo", "-config", filepath.Join(t.TempDir(), "none.json")}},
		{"unknown flag", []string{"-bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), tt.args, &stdout, &stderr); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestShadeAndDownsample(t *testing.T) {
	if shade(0) != ' ' || shade(1) != '@' || shade(2) != '@' || shade(-1) != ' ' {
		t.Error("unexpected ramp ends")
	}

	got := downsample([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Errorf("unexpected downsample %v", got)
	}
	if got := downsample([]float64{1, 2}, 60); len(got) != 2 {
		t.Errorf("short history should pass through, got %v", got)
	}
}

func TestPrintHistorySilent(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, analysis.NewSession(48000, config.DefaultConfig().History))
	if !strings.Contains(buf.String(), "(silent)") {
		t.Errorf("expected silent marker, got %q", buf.String())
	}
}

func TestNewProfile(t *testing.T) {
	var results []*analysis.FrameResult
	for i := 1; i <= 20; i++ {
		results = append(results, &analysis.FrameResult{ProcessTime: time.Duration(i) * time.Millisecond})
	}

	started := time.Now()
	p := newProfile(results, time.Second, 210*time.Millisecond, 17*time.Millisecond, 42.5)
	if elapsed := time.Since(started); elapsed > 250*time.Millisecond {
		t.Errorf("building the profile should not sample the host, took %v", elapsed)
	}

	if p.frames != 20 || p.overBudget != 3 || p.cpuPercent != 42.5 {
		t.Errorf("unexpected profile %+v", p)
	}
	if p.mean != 10500*time.Microsecond || p.worst != 20*time.Millisecond {
		t.Errorf("unexpected timing mean %v worst %v", p.mean, p.worst)
	}
	if p.p95 < 18*time.Millisecond || p.p95 > 20*time.Millisecond {
		t.Errorf("unexpected p95 %v", p.p95)
	}

	startCPUSample()
	if c := cpuSinceSample(); c < 0 || c > 100 {
		t.Errorf("cpu percentage out of range: %v", c)
	}
}
