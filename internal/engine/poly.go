package engine

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/palette"
)

type activeNote struct {
	note      palette.Note
	mode      palette.Mode
	voice     audio.Voice
	sustained bool
	holders   int
}

// Poly is the piano/synth engine: every finger slot is an independent
// on/off stream and any number of notes may sound together.
type Poly struct {
	pal   Palette
	mixer audio.Mixer
	log   *zap.Logger

	mode    palette.Mode
	armed   bool
	latched [gesture.NumSlots]bool
	held    [gesture.NumSlots]palette.NoteID
	active  map[palette.NoteID]*activeNote
}

// NewPoly creates a keyboard engine playing mode, which must be Piano or
// Synth.
func NewPoly(pal Palette, mixer audio.Mixer, mode palette.Mode, log *zap.Logger) *Poly {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Poly{
		pal:    pal,
		mixer:  mixer,
		log:    log,
		armed:  true,
		active: make(map[palette.NoteID]*activeNote),
	}
	p.SetMode(mode)
	return p
}

// SetMode selects the palette and voice flavour used by later presses.
// Notes already sounding keep the flavour they started with.
func (p *Poly) SetMode(mode palette.Mode) {
	if mode != palette.Piano && mode != palette.Synth {
		mode = palette.Piano
	}
	p.mode = mode
}

// Mode returns the keyboard mode in use.
func (p *Poly) Mode() palette.Mode {
	return p.mode
}

// Update edge-detects every slot against the previous frame. A press starts
// the slot's note unless it is already sounding, in which case the slot just
// joins its holders. The note stops when its last holder lifts.
//
// The first frame after StopAll only records the baseline.
func (p *Poly) Update(f gesture.Frame) []Event {
	if !p.armed {
		p.latched = f.Down
		p.armed = true
		return nil
	}

	var events []Event
	for i, down := range f.Down {
		if down == p.latched[i] {
			continue
		}
		p.latched[i] = down

		if down {
			if ev, ok := p.press(i); ok {
				events = append(events, ev)
			}
		} else {
			if ev, ok := p.release(i); ok {
				events = append(events, ev)
			}
		}
	}
	return events
}

func (p *Poly) press(slot int) (Event, bool) {
	note, ok := p.pal.NoteFor(p.mode, gesture.SlotAt(slot))
	if !ok {
		return Event{}, false
	}

	if a, ok := p.active[note.ID]; ok {
		a.holders++
		p.held[slot] = note.ID
		return Event{}, false
	}

	sound, err := p.pal.Sound(p.mode, note.ID)
	if err != nil {
		p.log.Error("note has no sound", zap.String("note", string(note.ID)), zap.Error(err))
		return Event{}, false
	}

	sustained := p.mode.Sustained()
	p.active[note.ID] = &activeNote{
		note:      note,
		mode:      p.mode,
		voice:     p.mixer.Play(sound, sustained),
		sustained: sustained,
		holders:   1,
	}
	p.held[slot] = note.ID

	return Event{Kind: NoteOn, Note: note, Mode: p.mode, Sustained: sustained}, true
}

func (p *Poly) release(slot int) (Event, bool) {
	id := p.held[slot]
	p.held[slot] = ""
	if id == "" {
		return Event{}, false
	}

	a, ok := p.active[id]
	if !ok {
		return Event{}, false
	}
	a.holders--
	if a.holders > 0 {
		return Event{}, false
	}

	a.voice.Stop()
	delete(p.active, id)
	return Event{Kind: NoteOff, Note: a.note, Mode: a.mode, Sustained: a.sustained}, true
}

// StopAll stops every sounding note and disarms the engine so that fingers
// still down must be lifted and pressed again.
func (p *Poly) StopAll() []Event {
	notes := p.sorted()
	events := make([]Event, 0, len(notes))
	for _, a := range notes {
		a.voice.Stop()
		events = append(events, Event{Kind: NoteOff, Note: a.note, Mode: a.mode, Sustained: a.sustained})
	}

	p.active = make(map[palette.NoteID]*activeNote)
	p.latched = [gesture.NumSlots]bool{}
	p.held = [gesture.NumSlots]palette.NoteID{}
	p.armed = false
	return events
}

// Sounding returns the active notes, lowest first.
func (p *Poly) Sounding() []palette.Note {
	notes := p.sorted()
	out := make([]palette.Note, len(notes))
	for i, a := range notes {
		out[i] = a.note
	}
	return out
}

func (p *Poly) sorted() []*activeNote {
	out := make([]*activeNote, 0, len(p.active))
	for _, a := range p.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].note.MIDI < out[j].note.MIDI })
	return out
}
