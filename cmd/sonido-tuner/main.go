// Command sonido-tuner prints the pitches heard in a recording, frame by
// frame, followed by a pitch-class history summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/RyanBlaney/sonido-tuner/analysis/config"
	"github.com/RyanBlaney/sonido-tuner/logging"
	"github.com/RyanBlaney/sonido-tuner/stream"
	"github.com/RyanBlaney/sonido-tuner/synth"
	"github.com/RyanBlaney/sonido-tuner/transcode"
)

type options struct {
	input      string
	demo       bool
	configPath string
	register   string
	every      int
	quiet      bool
	profile    bool
	logLevel   string
	useZap     bool
	timeout    time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sonido-tuner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.input, "input", "", "audio file to analyze (WAV natively, anything else through ffmpeg)")
	fs.BoolVar(&opts.demo, "demo", false, "analyze the built-in C-Am-F-G progression")
	fs.StringVar(&opts.configPath, "config", "", "JSON config file")
	fs.StringVar(&opts.register, "register", "wide", "threshold preset when no config file is given: wide, vocal")
	fs.IntVar(&opts.every, "every", 1, "print every Nth frame")
	fs.BoolVar(&opts.quiet, "quiet", false, "skip per-frame output")
	fs.BoolVar(&opts.profile, "profile", false, "print timing and host resource usage")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	fs.BoolVar(&opts.useZap, "zap", false, "log JSON through zap")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "decode timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.input == "" && !opts.demo {
		return nil, errors.New("one of -input or -demo is required")
	}
	if opts.input != "" && opts.demo {
		return nil, errors.New("-input and -demo are mutually exclusive")
	}
	opts.every = max(opts.every, 1)

	return opts, nil
}

func setupLogger(opts *options, stderr io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, nil, err
	}

	if opts.useZap {
		z, err := logging.NewZapProductionLogger(level)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	}

	l := logging.NewDefaultLoggerWithWriters(stderr, stderr)
	l.SetLevel(level)
	return l, func() {}, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.configPath != "" {
		return config.LoadConfig(opts.configPath)
	}

	register, err := config.ParseRegister(opts.register)
	if err != nil {
		return nil, err
	}
	return config.GetRegisterConfig(register), nil
}

func loadAudio(ctx context.Context, opts *options, logger logging.Logger) ([]float64, float64, error) {
	if opts.demo {
		cfg := synth.DefaultConfig()
		samples := synth.Render(synth.Progression(cfg, synth.DemoProgression()), 0)
		return samples, float64(cfg.SampleRate), nil
	}

	decoder := transcode.NewDecoder(nil)
	decoder.SetLogger(logger)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	audio, err := decoder.DecodeFile(ctx, opts.input)
	if err != nil {
		return nil, 0, err
	}
	return audio.PCM, float64(audio.SampleRate), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger, flush, err := setupLogger(opts, stderr)
	if err != nil {
		return err
	}
	defer flush()
	logging.SetGlobalLogger(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	started := time.Now()
	samples, sampleRate, err := loadAudio(ctx, opts, logger)
	if err != nil {
		return fmt.Errorf("failed to load audio: %w", err)
	}
	decodeTime := time.Since(started)

	analyzer, err := analysis.NewAnalyzer(cfg)
	if err != nil {
		return err
	}
	analyzer.SetLogger(logger)

	tuner := stream.NewTuner(analyzer, sampleRate)
	tuner.SetLogger(logger)

	if opts.profile {
		startCPUSample()
	}
	started = time.Now()
	results, err := tuner.AnalyzeBuffer(samples, sampleRate)
	if err != nil {
		return err
	}
	analyzeTime := time.Since(started)
	cpuPercent := 0.0
	if opts.profile {
		cpuPercent = cpuSinceSample()
	}

	hop := float64(cfg.Stream.HopSize) / sampleRate
	if !opts.quiet {
		printFrames(stdout, results, hop, opts.every)
	}
	printHistory(stdout, tuner.Session())

	if opts.profile {
		printProfile(stdout, newProfile(results, decodeTime, analyzeTime, cfg.Budget, cpuPercent))
	}

	return nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "sonido-tuner: %v\n", err)
		os.Exit(1)
	}
}
