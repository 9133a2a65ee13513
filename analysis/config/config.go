package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/algorithms/common"
	"github.com/RyanBlaney/sonido-tuner/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tuner/algorithms/tonal"
)

// Register selects a threshold preset tuned for a kind of source
type Register string

const (
	RegisterWide  Register = "wide"  // instruments and full mixes, 50-4000 Hz
	RegisterVocal Register = "vocal" // single voices, 60-2000 Hz, stricter harmonic rejection
)

// ParseRegister converts a register name to a Register
func ParseRegister(name string) (Register, error) {
	switch Register(strings.ToLower(strings.TrimSpace(name))) {
	case RegisterWide, "":
		return RegisterWide, nil
	case RegisterVocal:
		return RegisterVocal, nil
	default:
		return "", fmt.Errorf("unknown register %q (want %q or %q)", name, RegisterWide, RegisterVocal)
	}
}

// Config holds every threshold used by the analysis engine. All magnitudes
// are linear in [0,1]; scale conversion happens before a spectrum reaches
// the engine.
type Config struct {
	Register Register `json:"register"`

	Spectral   harmonic.PeakParams       `json:"spectral"`
	Polyphonic harmonic.PolyphonicParams `json:"polyphonic"`
	Monophonic tonal.MonophonicParams    `json:"monophonic"`
	Fusion     FusionConfig              `json:"fusion"`
	History    chroma.NoteHistoryParams  `json:"history"`
	Stream     StreamConfig              `json:"stream"`

	// Processing budget per frame; overruns are logged, not failed
	Budget time.Duration `json:"budget"`

	// Reject frames whose time buffer is not twice the spectrum length
	StrictLengths bool `json:"strict_lengths"`

	// Restart a session instead of failing when the sample rate changes
	AutoRestart bool `json:"auto_restart"`
}

// FusionConfig controls how the monophonic estimate is merged into the
// polyphonic result
type FusionConfig struct {
	MinToleranceHz      float64 `json:"min_tolerance_hz"`     // absolute agreement window
	TolerancePct        float64 `json:"tolerance_pct"`        // relative agreement window (0.01 = 1%)
	MonophonicMagnitude float64 `json:"monophonic_magnitude"` // magnitude assigned to autocorrelation estimates
}

// StreamConfig configures framing of pushed PCM blocks
type StreamConfig struct {
	FrameSize  int     `json:"frame_size"`   // samples per analysis window, power of two
	HopSize    int     `json:"hop_size"`     // samples between analyses
	DCBlock    bool    `json:"dc_block"`     // run a DC blocking filter on input
	DCCutoffHz float64 `json:"dc_cutoff_hz"` // DC blocker cutoff
}

// DefaultConfig returns the wide register configuration
func DefaultConfig() *Config {
	return &Config{
		Register: RegisterWide,
		Spectral: harmonic.PeakParams{
			SilenceFloor:  0.0004,
			AbsoluteFloor: 0.001,
			FloorFactor:   1.8,
			MinFrequency:  50.0,
			MaxFrequency:  4000.0,
		},
		Polyphonic: harmonic.PolyphonicParams{
			MaxPeaks:          6,
			RelativeFloor:     0.22,
			HarmonicTolerance: 0.025,
		},
		Monophonic: tonal.MonophonicParams{
			SilenceFloor:        0.0002,
			MinFrequency:        50.0,
			MaxFrequency:        2000.0,
			ConfidenceThreshold: 0.1,
			OctaveCorrection:    true,
			OctaveRatio:         0.9,
			Interpolate:         true,
		},
		Fusion: FusionConfig{
			MinToleranceHz:      2.0,
			TolerancePct:        0.01,
			MonophonicMagnitude: 1.0,
		},
		History: chroma.DefaultNoteHistoryParams(),
		Stream: StreamConfig{
			FrameSize:  8192,
			HopSize:    2048,
			DCBlock:    false,
			DCCutoffHz: 20.0,
		},
		Budget:        17 * time.Millisecond, // 10% of an 8192-sample window at 48 kHz
		StrictLengths: true,
		AutoRestart:   true,
	}
}

// GetRegisterConfig returns the configuration preset for a register
func GetRegisterConfig(register Register) *Config {
	config := DefaultConfig()

	switch register {
	case RegisterVocal:
		config.Register = RegisterVocal
		config.Spectral.MinFrequency = 60.0
		config.Spectral.MaxFrequency = 2000.0
		config.Spectral.FloorFactor = 1.3
		config.Polyphonic.RelativeFloor = 0.25
		config.Polyphonic.HarmonicTolerance = 0.03
		config.Monophonic.MinFrequency = 60.0
	}

	return config
}

// Validate checks the configuration for values the engine cannot work with
func (c *Config) Validate() error {
	if c.Spectral.SilenceFloor < 0 || c.Spectral.AbsoluteFloor < 0 {
		return fmt.Errorf("spectral floors must be non-negative")
	}
	if c.Spectral.FloorFactor <= 0 {
		return fmt.Errorf("spectral floor factor must be positive, got %v", c.Spectral.FloorFactor)
	}
	if err := validateBand("spectral", c.Spectral.MinFrequency, c.Spectral.MaxFrequency); err != nil {
		return err
	}

	if c.Polyphonic.MaxPeaks < 1 {
		return fmt.Errorf("polyphonic max peaks must be at least 1, got %d", c.Polyphonic.MaxPeaks)
	}
	if c.Polyphonic.RelativeFloor < 0 || c.Polyphonic.RelativeFloor > 1 {
		return fmt.Errorf("polyphonic relative floor must be in [0,1], got %v", c.Polyphonic.RelativeFloor)
	}
	if c.Polyphonic.HarmonicTolerance < 0 || c.Polyphonic.HarmonicTolerance >= 0.5 {
		return fmt.Errorf("harmonic tolerance must be in [0,0.5), got %v", c.Polyphonic.HarmonicTolerance)
	}

	if c.Monophonic.SilenceFloor < 0 || c.Monophonic.ConfidenceThreshold < 0 {
		return fmt.Errorf("monophonic thresholds must be non-negative")
	}
	if err := validateBand("monophonic", c.Monophonic.MinFrequency, c.Monophonic.MaxFrequency); err != nil {
		return err
	}
	if c.Monophonic.OctaveCorrection && (c.Monophonic.OctaveRatio <= 0 || c.Monophonic.OctaveRatio > 1) {
		return fmt.Errorf("octave ratio must be in (0,1], got %v", c.Monophonic.OctaveRatio)
	}

	if c.Fusion.MinToleranceHz < 0 || c.Fusion.TolerancePct < 0 {
		return fmt.Errorf("fusion tolerances must be non-negative")
	}

	if c.History.Length < 1 {
		return fmt.Errorf("history length must be at least 1, got %d", c.History.Length)
	}
	if c.History.MinOctave > c.History.MaxOctave {
		return fmt.Errorf("history octave range [%d,%d] is empty", c.History.MinOctave, c.History.MaxOctave)
	}

	if c.Stream.FrameSize < 64 || !common.IsPowerOfTwo(c.Stream.FrameSize) {
		return fmt.Errorf("stream frame size must be a power of two >= 64, got %d (try %d)",
			c.Stream.FrameSize, common.NextPowerOfTwo(max(c.Stream.FrameSize, 64)))
	}
	if c.Stream.HopSize < 1 || c.Stream.HopSize > c.Stream.FrameSize {
		return fmt.Errorf("stream hop size must be in [1,%d], got %d", c.Stream.FrameSize, c.Stream.HopSize)
	}

	if c.Budget < 0 {
		return fmt.Errorf("budget must be non-negative, got %v", c.Budget)
	}

	return nil
}

func validateBand(name string, lo, hi float64) error {
	if lo <= 0 || hi <= lo {
		return fmt.Errorf("%s band [%v,%v] Hz is invalid", name, lo, hi)
	}
	return nil
}

// LoadConfig reads a JSON configuration file. Fields missing from the file
// keep the values of the register it names (wide if none).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var header struct {
		Register string `json:"register"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	register, err := ParseRegister(header.Register)
	if err != nil {
		return nil, err
	}

	config := GetRegisterConfig(register)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	config.Register = register

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
