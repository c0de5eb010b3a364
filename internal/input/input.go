// Package input carries the player's discrete commands (mode switch, quit)
// from keyboards, the tray and the HTTP API into the frame loop.
package input

import (
	"fmt"

	"github.com/ayusman/airtune/internal/palette"
)

// Command is one user command. The frame loop applies at most one per frame.
type Command int

const (
	None Command = iota
	SwitchPiano
	SwitchSynth
	SwitchTrumpet
	Quit
)

func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case SwitchPiano:
		return "piano"
	case SwitchSynth:
		return "synth"
	case SwitchTrumpet:
		return "trumpet"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Mode returns the mode a switch command selects.
func (c Command) Mode() (palette.Mode, bool) {
	switch c {
	case SwitchPiano:
		return palette.Piano, true
	case SwitchSynth:
		return palette.Synth, true
	case SwitchTrumpet:
		return palette.Trumpet, true
	}
	return palette.Piano, false
}

// ForMode returns the command that switches to m.
func ForMode(m palette.Mode) Command {
	switch m {
	case palette.Piano:
		return SwitchPiano
	case palette.Synth:
		return SwitchSynth
	case palette.Trumpet:
		return SwitchTrumpet
	}
	return None
}

const keyEsc = 27

// KeyCommand maps a key code to a command: p, s and t pick a mode, q and
// Esc quit. Anything else is None.
func KeyCommand(key int) Command {
	switch key {
	case 'p', 'P':
		return SwitchPiano
	case 's', 'S':
		return SwitchSynth
	case 't', 'T':
		return SwitchTrumpet
	case 'q', 'Q', keyEsc, 3: // 3 is Ctrl-C in raw mode
		return Quit
	}
	return None
}

// Source yields at most one pending command per call without blocking.
type Source interface {
	Poll() Command
}

// Queue is a buffered command channel safe for many senders and one poller.
type Queue struct {
	ch chan Command
}

// NewQueue creates a queue holding up to size pending commands.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Command, size)}
}

// Send enqueues c, reporting false when the queue is full.
func (q *Queue) Send(c Command) bool {
	if c == None {
		return true
	}
	select {
	case q.ch <- c:
		return true
	default:
		return false
	}
}

// Poll returns the oldest pending command or None.
func (q *Queue) Poll() Command {
	select {
	case c := <-q.ch:
		return c
	default:
		return None
	}
}

// Multi polls several sources in order and returns the first command found.
type Multi []Source

func (m Multi) Poll() Command {
	for _, s := range m {
		if s == nil {
			continue
		}
		if c := s.Poll(); c != None {
			return c
		}
	}
	return None
}
