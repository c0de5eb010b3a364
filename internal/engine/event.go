// Package engine turns per-frame gesture predicates into note events and
// drives the mixer accordingly.
//
// Engines are not safe for concurrent use. The frame loop owns them.
package engine

import (
	"fmt"
	"time"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/palette"
)

// Kind distinguishes note starts from note stops.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "note_on":
		return NoteOn, nil
	case "note_off":
		return NoteOff, nil
	}
	return NoteOn, fmt.Errorf("unknown event kind %q", s)
}

// Event is a note starting or stopping.
type Event struct {
	Kind Kind
	Note palette.Note
	// Mode is the mode the note was started in.
	Mode palette.Mode
	// Sustained is true when the voice loops until stopped.
	Sustained bool
	At        time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Kind, e.Note.ID, e.Mode)
}

// Sink receives every event the controller emits, in order.
type Sink interface {
	Publish(ev Event) error
}

// Engine is one instrument's update logic.
type Engine interface {
	// Update consumes one frame of predicates.
	Update(f gesture.Frame) []Event

	// StopAll silences every voice the engine started.
	StopAll() []Event

	// Sounding lists the notes currently playing.
	Sounding() []palette.Note
}

// Palette is the part of the note registry the engines read.
type Palette interface {
	NoteFor(mode palette.Mode, slot gesture.Slot) (palette.Note, bool)
	ValveNote(code palette.ValveCode) palette.Note
	Sound(mode palette.Mode, id palette.NoteID) (*audio.Sound, error)
}
