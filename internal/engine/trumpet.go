package engine

import (
	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/palette"
)

// Trumpet is the monophonic breath and valve engine. The valve hand's index,
// middle and ring fingers select the pitch; a closed fist on the other hand
// is the breath that makes it sound.
type Trumpet struct {
	pal       Palette
	mixer     audio.Mixer
	log       *zap.Logger
	valveSide gesture.Side

	code     palette.ValveCode
	breath   bool
	sounding bool
	note     palette.Note
	voice    audio.Voice
}

// NewTrumpet creates a silent trumpet whose valves are on valveSide.
func NewTrumpet(pal Palette, mixer audio.Mixer, valveSide gesture.Side, log *zap.Logger) *Trumpet {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trumpet{
		pal:       pal,
		mixer:     mixer,
		log:       log,
		valveSide: valveSide,
	}
}

// Update runs one step of the Silent / Sounding state machine. A changed
// target while breathing stops the old voice before starting the new one, so
// at most one voice exists at any time.
func (t *Trumpet) Update(f gesture.Frame) []Event {
	t.code = palette.CodeFromValves(f.Valves(t.valveSide))
	t.breath = f.Breath(t.valveSide.Other())
	target := t.pal.ValveNote(t.code)

	switch {
	case !t.breath:
		if ev, ok := t.stop(); ok {
			return []Event{ev}
		}
		return nil

	case !t.sounding:
		if ev, ok := t.start(target); ok {
			return []Event{ev}
		}
		return nil

	case target.ID != t.note.ID:
		off, _ := t.stop()
		events := []Event{off}
		if on, ok := t.start(target); ok {
			events = append(events, on)
		}
		return events
	}

	return nil
}

func (t *Trumpet) start(n palette.Note) (Event, bool) {
	sound, err := t.pal.Sound(palette.Trumpet, n.ID)
	if err != nil {
		t.log.Error("trumpet note has no sound", zap.String("note", string(n.ID)), zap.Error(err))
		return Event{}, false
	}

	t.voice = t.mixer.Play(sound, true)
	t.note = n
	t.sounding = true
	return Event{Kind: NoteOn, Note: n, Mode: palette.Trumpet, Sustained: true}, true
}

func (t *Trumpet) stop() (Event, bool) {
	if !t.sounding {
		return Event{}, false
	}

	t.voice.Stop()
	ev := Event{Kind: NoteOff, Note: t.note, Mode: palette.Trumpet, Sustained: true}
	t.voice = nil
	t.note = palette.Note{}
	t.sounding = false
	return ev, true
}

// StopAll forces the engine silent.
func (t *Trumpet) StopAll() []Event {
	t.breath = false
	t.code = 0
	if ev, ok := t.stop(); ok {
		return []Event{ev}
	}
	return nil
}

// Sounding returns the playing note, if any.
func (t *Trumpet) Sounding() []palette.Note {
	if !t.sounding {
		return nil
	}
	return []palette.Note{t.note}
}

// Code returns the valve code seen in the last update.
func (t *Trumpet) Code() palette.ValveCode {
	return t.code
}

// Breathing reports the breath gate seen in the last update.
func (t *Trumpet) Breathing() bool {
	return t.breath
}
