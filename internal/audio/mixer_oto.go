//go:build !headless

package audio

import (
	"bytes"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// OtoMixer plays voices through the system audio device. Each voice gets its
// own oto player; oto mixes players on its output thread.
type OtoMixer struct {
	ctx    *oto.Context
	mu     sync.Mutex
	voices map[*otoVoice]struct{}
	closed bool
}

// NewOtoMixer opens the audio device. Only one mixer may exist per process.
func NewOtoMixer(sampleRate int) (*OtoMixer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoMixer{
		ctx:    ctx,
		voices: make(map[*otoVoice]struct{}),
	}, nil
}

// Play starts s on a new player. Looped voices repeat the whole buffer.
func (m *OtoMixer) Play(s *Sound, loop bool) Voice {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || s == nil || len(s.pcm) == 0 {
		return nopVoice{}
	}

	var src io.Reader = bytes.NewReader(s.pcm)
	if loop {
		src = ebaudio.NewInfiniteLoop(bytes.NewReader(s.pcm), int64(len(s.pcm)))
	}

	v := &otoVoice{mixer: m, player: m.ctx.NewPlayer(src)}
	m.voices[v] = struct{}{}
	v.player.Play()
	return v
}

// Close stops all voices and suspends the output device.
func (m *OtoMixer) Close() error {
	m.mu.Lock()
	voices := make([]*otoVoice, 0, len(m.voices))
	for v := range m.voices {
		voices = append(voices, v)
	}
	m.closed = true
	m.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	return m.ctx.Suspend()
}

// Active returns the number of voices that have not been stopped.
func (m *OtoMixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

type otoVoice struct {
	mixer  *OtoMixer
	player *oto.Player
	once   sync.Once
}

func (v *otoVoice) Stop() {
	v.once.Do(func() {
		v.player.Pause()
		v.player.Close()

		v.mixer.mu.Lock()
		delete(v.mixer.voices, v)
		v.mixer.mu.Unlock()
	})
}
