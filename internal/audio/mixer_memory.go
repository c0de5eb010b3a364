package audio

import (
	"sort"
	"sync"
)

// Op is a mixer operation recorded by MemoryMixer.
type Op string

const (
	OpPlay Op = "play"
	OpStop Op = "stop"
)

// Call is one recorded mixer operation.
type Call struct {
	Op    Op
	Sound string
	Loop  bool
}

// MemoryMixer records play and stop calls without producing sound. It backs
// headless runs and tests.
type MemoryMixer struct {
	mu     sync.Mutex
	calls  []Call
	voices map[*memoryVoice]struct{}
	closed bool
}

// NewMemoryMixer creates an empty MemoryMixer.
func NewMemoryMixer() *MemoryMixer {
	return &MemoryMixer{voices: make(map[*memoryVoice]struct{})}
}

// Play records the call and returns a voice that stays active until stopped.
func (m *MemoryMixer) Play(s *Sound, loop bool) Voice {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || s == nil {
		return nopVoice{}
	}

	v := &memoryVoice{mixer: m, sound: s.name, loop: loop}
	m.voices[v] = struct{}{}
	m.calls = append(m.calls, Call{Op: OpPlay, Sound: s.name, Loop: loop})
	return v
}

// Close stops every active voice.
func (m *MemoryMixer) Close() error {
	m.mu.Lock()
	voices := make([]*memoryVoice, 0, len(m.voices))
	for v := range m.voices {
		voices = append(voices, v)
	}
	m.closed = true
	m.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	return nil
}

// Calls returns a copy of the recorded operations.
func (m *MemoryMixer) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset forgets recorded calls but keeps active voices.
func (m *MemoryMixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Active returns the number of voices not yet stopped.
func (m *MemoryMixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Sounding returns the names of active voices, sorted.
func (m *MemoryMixer) Sounding() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.voices))
	for v := range m.voices {
		names = append(names, v.sound)
	}
	sort.Strings(names)
	return names
}

type memoryVoice struct {
	mixer *MemoryMixer
	sound string
	loop  bool
	once  sync.Once
}

func (v *memoryVoice) Stop() {
	v.once.Do(func() {
		v.mixer.mu.Lock()
		defer v.mixer.mu.Unlock()
		delete(v.mixer.voices, v)
		v.mixer.calls = append(v.mixer.calls, Call{Op: OpStop, Sound: v.sound, Loop: v.loop})
	})
}
