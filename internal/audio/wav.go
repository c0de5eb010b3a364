package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// DecodeWAV decodes a WAV stream and resamples it to sampleRate.
func DecodeWAV(name string, r io.Reader, sampleRate int) (*Sound, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	stream, err := wav.DecodeWithSampleRate(sampleRate, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(pcm) < FrameBytes {
		return nil, fmt.Errorf("decode %s: no audio frames", name)
	}

	return NewSound(name, pcm), nil
}

// Loader produces sounds in the mixer's format.
type Loader struct {
	SampleRate    int
	ToneSeconds   float64
	ToneAmplitude float64
}

// LoadFile decodes the WAV file at path.
func (l Loader) LoadFile(name, path string) (*Sound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeWAV(name, f, l.SampleRate)
}

// Tone synthesizes a looping tone for a note.
func (l Loader) Tone(name string, freq float64) (*Sound, error) {
	s := Tone(name, freq, l.SampleRate, l.ToneSeconds, l.ToneAmplitude)
	if s.Frames() == 0 {
		return nil, fmt.Errorf("tone %s: invalid frequency %.2f", name, freq)
	}
	return s, nil
}
