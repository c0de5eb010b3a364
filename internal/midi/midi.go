// Package midi mirrors engine events to a MIDI output port and renders
// recorded takes as Standard MIDI Files.
package midi

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/palette"
)

// ErrPortNotFound is returned when no output port matches the configured name.
var ErrPortNotFound = errors.New("midi output port not found")

// Config selects the output port and how notes are sent.
type Config struct {
	// Port is the output port name; empty disables MIDI output.
	Port string `yaml:"port"`
	// Channels holds the zero-based channel for piano, synth and trumpet.
	Channels []uint8 `yaml:"channels"`
	Velocity uint8   `yaml:"velocity"`
}

// DefaultConfig sends each mode on its own channel.
func DefaultConfig() Config {
	return Config{
		Channels: []uint8{0, 1, 2},
		Velocity: 100,
	}
}

// Channel returns the channel used for mode.
func (c Config) Channel(mode palette.Mode) uint8 {
	i := int(mode)
	if i < 0 || i >= len(c.Channels) {
		return 0
	}
	return c.Channels[i] & 0x0f
}

// Sender delivers one MIDI message.
type Sender func(msg gomidi.Message) error

type heldKey struct {
	ch  uint8
	key uint8
}

// Output forwards engine events as note messages. It implements
// engine.Sink.
type Output struct {
	mu     sync.Mutex
	send   Sender
	close  func() error
	config Config
	held   map[heldKey]int
	log    *zap.Logger
}

// NewOutput wraps a sender. closer, if not nil, runs on Close.
func NewOutput(send Sender, closer func() error, config Config, log *zap.Logger) *Output {
	if log == nil {
		log = zap.NewNop()
	}
	if config.Velocity == 0 {
		config.Velocity = DefaultConfig().Velocity
	}
	return &Output{
		send:   send,
		close:  closer,
		config: config,
		held:   make(map[heldKey]int),
		log:    log,
	}
}

// Publish sends the note message for ev.
func (o *Output) Publish(ev engine.Event) error {
	if ev.Note.MIDI < 0 || ev.Note.MIDI > 127 {
		return fmt.Errorf("note %s has no MIDI number", ev.Note.ID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	k := heldKey{ch: o.config.Channel(ev.Mode), key: uint8(ev.Note.MIDI)}
	var msg gomidi.Message
	switch ev.Kind {
	case engine.NoteOn:
		msg = gomidi.NoteOn(k.ch, k.key, o.config.Velocity)
		o.held[k]++
	case engine.NoteOff:
		msg = gomidi.NoteOff(k.ch, k.key)
		if o.held[k] > 1 {
			o.held[k]--
		} else {
			delete(o.held, k)
		}
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}

	if err := o.send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}
	return nil
}

// Close releases any key still held and closes the port.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	keys := make([]heldKey, 0, len(o.held))
	for k := range o.held {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ch != keys[j].ch {
			return keys[i].ch < keys[j].ch
		}
		return keys[i].key < keys[j].key
	})
	for _, k := range keys {
		if err := o.send(gomidi.NoteOff(k.ch, k.key)); err != nil {
			o.log.Warn("note off on close failed", zap.Error(err))
		}
	}
	o.held = make(map[heldKey]int)

	if o.close != nil {
		return o.close()
	}
	return nil
}
