package transcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mjibson/go-dsp/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3

	wavChunkSamples = 16384
)

var (
	// ErrNoAudio is returned when a source decodes to zero samples
	ErrNoAudio = errors.New("no audio samples decoded")

	// ErrUnsupportedWAV is returned for WAV encodings the native reader
	// cannot handle (24/32-bit PCM, extensible headers)
	ErrUnsupportedWAV = errors.New("unsupported wav encoding")
)

// DecodeWAV reads a PCM 8/16-bit or IEEE float WAV stream into mono float64
// samples in [-1, 1]. Multichannel audio is averaged.
func DecodeWAV(r io.Reader) (*AudioData, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
	}

	if w.NumChannels == 0 || w.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, w.NumChannels, w.SampleRate)
	}
	pcm := w.AudioFormat == wavFormatPCM
	if pcm && w.BitsPerSample != 8 && w.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedWAV, w.BitsPerSample)
	}
	raw, err := readWAVSamples(w)
	if err != nil {
		return nil, err
	}

	channels := int(w.NumChannels)
	frames := len(raw) / channels
	if frames == 0 {
		return nil, ErrNoAudio
	}

	mono := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			v := float64(raw[i*channels+c])
			// PCM comes back in [0, 1]
			if pcm {
				v = 2*v - 1
			}
			sum += v
		}
		mono[i] = sum / float64(channels)
	}

	sampleRate := int(w.SampleRate)
	return &AudioData{
		PCM:        mono,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
		Timestamp:  time.Now(),
		Metadata: &AudioMetadata{
			SampleRate: sampleRate,
			Channels:   channels,
			Codec:      wavCodec(w.AudioFormat, w.BitsPerSample),
			Duration:   float64(frames) / float64(sampleRate),
			Format:     "wav",
		},
	}, nil
}

// readWAVSamples reads the data chunk until it runs out. The reported
// w.Samples is rounded down to a multiple of 8, so it is read in chunks and
// the remainder one sample at a time. A truncated chunk keeps what was read.
func readWAVSamples(w *wav.Wav) ([]float32, error) {
	raw := make([]float32, 0, w.Samples)
	remaining := w.Samples

	for {
		n := 1
		if remaining > 0 {
			n = min(remaining, wavChunkSamples)
		}

		chunk, err := w.ReadFloats(n)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return raw, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read wav samples: %w", err)
		}

		raw = append(raw, chunk...)
		remaining = max(remaining-n, 0)
	}
}

// DecodeWAVFile opens and decodes a WAV file
func DecodeWAVFile(path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeWAV(bufio.NewReader(f))
}

func wavCodec(format, bits uint16) string {
	if format == wavFormatFloat {
		return "pcm_f32le"
	}
	if bits == 8 {
		return "pcm_u8"
	}
	return "pcm_s16le"
}
