package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tuner/logging"
)

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata holds the source's properties before conversion
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // 0 keeps the source rate
	MaxDuration      time.Duration `json:"max_duration"`
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
	NativeWAV        bool          `json:"native_wav"` // decode .wav without ffmpeg when possible

	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns default decoder configuration. Normalization
// is off because loudness changes shift signals across the silence gates.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    0,
		MaxDuration:         0,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             30 * time.Second,
		NativeWAV:           true,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0,
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Decoder turns audio files into mono PCM, natively for WAV and through
// ffmpeg for everything else
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// SetLogger replaces the decoder's logger
func (d *Decoder) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	d.logger = logger.WithFields(logging.Fields{"component": "audio_decoder"})
}

// DecodeFile decodes an audio file into mono PCM
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if d.config.NativeWAV && strings.EqualFold(filepath.Ext(filename), ".wav") {
		audio, err := DecodeWAVFile(filename)
		switch {
		case err == nil:
			logger.Debug("Decoded wav natively", logging.Fields{
				"sample_rate": audio.SampleRate,
				"samples":     len(audio.PCM),
			})
			return d.trim(audio), nil
		case errors.Is(err, ErrUnsupportedWAV):
			logger.Debug("Falling back to ffmpeg", logging.Fields{"reason": err.Error()})
		default:
			return nil, err
		}
	}

	logger.Debug("Starting audio file decode")

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	return d.decode(ctx, filename, nil, metadata)
}

// DecodeReader decodes audio piped through ffmpeg's stdin
func (d *Decoder) DecodeReader(ctx context.Context, reader io.Reader) (*AudioData, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoAudio
	}

	metadata, err := d.probe(ctx, "pipe:0", data)
	if err != nil {
		d.logger.Error(err, "Failed to probe audio stream")
		return nil, err
	}

	return d.decode(ctx, "pipe:0", data, metadata)
}

func (d *Decoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.Timeout > 0 {
		return context.WithTimeout(ctx, d.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// probe uses ffprobe to read the first audio stream's properties
func (d *Decoder) probe(ctx context.Context, input string, stdin []byte) (*AudioMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		input,
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio stream found", ErrNoAudio)
	}

	s := probe.Streams[0]
	metadata := &AudioMetadata{
		Channels: s.Channels,
		Codec:    s.CodecName,
		Format:   "ffmpeg",
	}
	metadata.SampleRate, _ = strconv.Atoi(s.SampleRate)
	metadata.Bitrate, _ = strconv.Atoi(s.BitRate)
	metadata.Duration, _ = strconv.ParseFloat(s.Duration, 64)

	if metadata.SampleRate <= 0 {
		return nil, fmt.Errorf("ffprobe reported invalid sample rate %q", s.SampleRate)
	}

	return metadata, nil
}

// buildFFmpegArgs downmixes to mono f64le at the target (or source) rate
func (d *Decoder) buildFFmpegArgs(input string, metadata *AudioMetadata) []string {
	args := []string{"-v", "error", "-i", input}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	args = append(args,
		"-map", "0:a:0",
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.outputRate(metadata)),
	)

	if d.config.EnableNormalization {
		if filter := d.buildNormalizationFilter(); filter != "" {
			args = append(args, "-af", filter)
		}
	}

	return append(args, "pipe:1")
}

func (d *Decoder) outputRate(metadata *AudioMetadata) int {
	if d.config.TargetSampleRate > 0 {
		return d.config.TargetSampleRate
	}
	return metadata.SampleRate
}

func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS, d.config.TargetPeak, d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=f=500:g=31"
	default:
		return ""
	}
}

func (d *Decoder) decode(ctx context.Context, input string, stdin []byte, metadata *AudioMetadata) (*AudioData, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := d.buildFFmpegArgs(input, metadata)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	d.logger.Debug("Running FFmpeg", logging.Fields{
		"command": fmt.Sprintf("%s %s", d.config.FFmpegPath, strings.Join(args, " ")),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	rate := d.outputRate(metadata)
	d.logger.Debug("FFmpeg decode completed", logging.Fields{
		"samples":     len(samples),
		"decode_time": time.Since(startTime).Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: rate,
		Channels:   1,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(rate),
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}, nil
}

// trim applies MaxDuration to natively decoded audio
func (d *Decoder) trim(audio *AudioData) *AudioData {
	if d.config.MaxDuration <= 0 {
		return audio
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(audio.SampleRate))
	if limit < len(audio.PCM) {
		audio.PCM = audio.PCM[:limit]
		audio.Duration = time.Duration(limit) * time.Second / time.Duration(audio.SampleRate)
	}
	return audio
}

// bytesToFloat64 converts little-endian f64 bytes; a trailing partial sample
// is dropped
func bytesToFloat64(data []byte) []float64 {
	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8:])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}
