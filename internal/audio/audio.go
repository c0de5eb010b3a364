// Package audio provides the sound assets and the play/stop primitives the
// instrument engines drive.
//
// All PCM handled here is 16-bit signed little endian, interleaved stereo.
package audio

import (
	"errors"
	"time"
)

// Output format constants.
const (
	DefaultSampleRate = 44100
	Channels          = 2
	BytesPerSample    = 2
	FrameBytes        = Channels * BytesPerSample
)

// ErrMixerClosed is returned when playing on a closed mixer.
var ErrMixerClosed = errors.New("mixer is closed")

// Sound is a decoded or synthesized asset ready for playback.
type Sound struct {
	name string
	pcm  []byte
}

// NewSound wraps PCM data. Trailing bytes that do not form a whole frame are
// dropped.
func NewSound(name string, pcm []byte) *Sound {
	return &Sound{name: name, pcm: pcm[:len(pcm)-len(pcm)%FrameBytes]}
}

// Name returns the asset name, usually the note it plays.
func (s *Sound) Name() string { return s.name }

// Bytes returns the raw PCM data. Callers must not modify it.
func (s *Sound) Bytes() []byte { return s.pcm }

// Frames returns the number of stereo frames in the sound.
func (s *Sound) Frames() int { return len(s.pcm) / FrameBytes }

// Duration returns the playing time at the given sample rate.
func (s *Sound) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(sampleRate)
}

// Voice is the token returned by Mixer.Play for one playing instance of a
// sound. Stop ends playback; calling it again has no effect.
type Voice interface {
	Stop()
}

// Mixer starts voices. Play never blocks on audio output; mixing runs on the
// backend's own thread.
type Mixer interface {
	// Play starts the sound once, or forever when loop is true.
	Play(s *Sound, loop bool) Voice

	// Close stops every voice and releases the output device.
	Close() error
}

// nopVoice is returned when a mixer cannot start a voice.
type nopVoice struct{}

func (nopVoice) Stop() {}
