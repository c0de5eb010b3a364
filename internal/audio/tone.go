package audio

import (
	"encoding/binary"
	"math"
)

// Tone synthesizes a sine wave at freq Hz lasting roughly seconds.
//
// The length is rounded to a whole number of periods so that a looped tone
// has no click at the seam. amplitude is the peak level in (0, 1].
func Tone(name string, freq float64, sampleRate int, seconds, amplitude float64) *Sound {
	if freq <= 0 || sampleRate <= 0 || seconds <= 0 {
		return NewSound(name, nil)
	}
	if amplitude <= 0 || amplitude > 1 {
		amplitude = 1
	}

	cycles := math.Max(1, math.Round(freq*seconds))
	frames := int(math.Round(cycles * float64(sampleRate) / freq))

	pcm := make([]byte, frames*FrameBytes)
	step := 2 * math.Pi * freq / float64(sampleRate)
	for i := 0; i < frames; i++ {
		v := int16(math.Sin(step*float64(i)) * amplitude * math.MaxInt16)
		off := i * FrameBytes
		binary.LittleEndian.PutUint16(pcm[off:], uint16(v))
		binary.LittleEndian.PutUint16(pcm[off+2:], uint16(v))
	}

	return NewSound(name, pcm)
}

// Peak returns the largest absolute sample value in the sound.
func (s *Sound) Peak() int {
	peak := 0
	for i := 0; i+1 < len(s.pcm); i += BytesPerSample {
		v := int(int16(binary.LittleEndian.Uint16(s.pcm[i:])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
