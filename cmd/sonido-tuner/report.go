package main

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tuner/algorithms/chroma"
	"github.com/RyanBlaney/sonido-tuner/analysis"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"gonum.org/v1/gonum/stat"
)

const (
	historyColumns = 60
	shadeRamp      = " .:-=+*#%@"
)

func printFrames(w io.Writer, results []*analysis.FrameResult, hop float64, every int) {
	for i, r := range results {
		if i%every != 0 {
			continue
		}
		pitches, chord := "-", ""
		if !r.Silent {
			pitches = analysis.FormatPitches(r.Pitches)
		}
		if c, ok := analysis.NameChord(r.Pitches); ok {
			chord = "[" + c.Name() + "]"
		}
		fmt.Fprintf(w, "%5d  %7.2fs  %-8s %s\n", r.Frame, float64(i)*hop, chord, pitches)
	}
}

// shade maps v in [0, 1] onto the ramp
func shade(v float64) byte {
	idx := int(v * float64(len(shadeRamp)-1))
	idx = min(max(idx, 0), len(shadeRamp)-1)
	return shadeRamp[idx]
}

// downsample averages history into at most n columns
func downsample(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for c := range n {
		lo := c * len(values) / n
		hi := (c + 1) * len(values) / n
		out[c] = stat.Mean(values[lo:hi], nil)
	}
	return out
}

func printHistory(w io.Writer, session *analysis.Session) {
	rows := make([][]float64, chroma.NumPitchClasses)
	peak := 0.0
	for _, pc := range chroma.PitchClasses() {
		rows[pc] = downsample(session.HistoryFor(pc), historyColumns)
		if len(rows[pc]) > 0 {
			peak = max(peak, slices.Max(rows[pc]))
		}
	}

	fmt.Fprintf(w, "\nPitch class history (%d frames, oldest left)\n", session.Frames())
	if peak <= 0 {
		fmt.Fprintln(w, "  (silent)")
		return
	}

	for _, pc := range slices.Backward(chroma.PitchClasses()) {
		var line strings.Builder
		for _, v := range rows[pc] {
			line.WriteByte(shade(v / peak))
		}
		fmt.Fprintf(w, "%-3s|%s|\n", pc.String(), line.String())
	}
}

type profile struct {
	frames      int
	decodeTime  time.Duration
	analyzeTime time.Duration
	mean        time.Duration
	p95         time.Duration
	worst       time.Duration
	overBudget  int
	budget      time.Duration
	cpuPercent  float64
	memPercent  float64
	goroutines  int
}

// startCPUSample resets the host CPU baseline so that cpuSinceSample covers
// only the work done in between
func startCPUSample() {
	_, _ = cpu.Percent(0, false)
}

// cpuSinceSample returns host CPU use since the last sample
func cpuSinceSample() float64 {
	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		return 0
	}
	return percentages[0]
}

func newProfile(results []*analysis.FrameResult, decodeTime, analyzeTime, budget time.Duration, cpuPercent float64) profile {
	p := profile{
		frames:      len(results),
		decodeTime:  decodeTime,
		analyzeTime: analyzeTime,
		budget:      budget,
		cpuPercent:  cpuPercent,
		goroutines:  runtime.NumGoroutine(),
	}

	if len(results) > 0 {
		times := make([]float64, len(results))
		for i, r := range results {
			times[i] = float64(r.ProcessTime)
			if budget > 0 && r.ProcessTime > budget {
				p.overBudget++
			}
		}
		slices.Sort(times)

		p.mean = time.Duration(stat.Mean(times, nil))
		p.p95 = time.Duration(stat.Quantile(0.95, stat.Empirical, times, nil))
		p.worst = time.Duration(times[len(times)-1])
	}

	if memStats, err := mem.VirtualMemory(); err == nil {
		p.memPercent = memStats.UsedPercent
	}

	return p
}

func printProfile(w io.Writer, p profile) {
	fmt.Fprintf(w, "\nProfile\n")
	fmt.Fprintf(w, "  decode:      %v\n", p.decodeTime.Round(time.Microsecond))
	fmt.Fprintf(w, "  analyze:     %v for %d frames\n", p.analyzeTime.Round(time.Microsecond), p.frames)
	fmt.Fprintf(w, "  per frame:   mean %v, p95 %v, worst %v\n",
		p.mean.Round(time.Microsecond), p.p95.Round(time.Microsecond), p.worst.Round(time.Microsecond))
	fmt.Fprintf(w, "  over budget: %d (budget %v)\n", p.overBudget, p.budget)
	fmt.Fprintf(w, "  host:        cpu %.1f%% during analysis, ram %.1f%%, goroutines %d\n", p.cpuPercent, p.memPercent, p.goroutines)
}
