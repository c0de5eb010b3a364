//go:build headless

package audio

import "errors"

// ErrNoAudioDevice is returned by NewOtoMixer in headless builds.
var ErrNoAudioDevice = errors.New("audio output not available in headless build")

// OtoMixer is unavailable in headless builds.
type OtoMixer struct{}

// NewOtoMixer always fails in headless builds.
func NewOtoMixer(sampleRate int) (*OtoMixer, error) {
	return nil, ErrNoAudioDevice
}

func (m *OtoMixer) Play(s *Sound, loop bool) Voice { return nopVoice{} }

func (m *OtoMixer) Close() error { return nil }

func (m *OtoMixer) Active() int { return 0 }
