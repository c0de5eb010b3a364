// Package palette maps instrument modes and finger slots to notes and holds
// the sound asset of every playable note.
package palette

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/gesture"
)

var (
	// ErrAssetMissing is returned when a note's sound cannot be loaded or
	// generated. It is fatal at startup.
	ErrAssetMissing = errors.New("sound asset missing")

	// ErrInvalidPalette is returned for malformed palette configuration.
	ErrInvalidPalette = errors.New("invalid palette")

	// ErrUnknownNote is returned when looking up a note outside a palette.
	ErrUnknownNote = errors.New("unknown note")
)

// NoteID is the symbolic key of a note, unique within a palette.
type NoteID string

// Note is one playable note.
type Note struct {
	ID    NoteID
	Pitch string
	MIDI  int
	Freq  float64
}

// SoundSource produces sound assets. audio.Loader is the production source.
type SoundSource interface {
	LoadFile(name, path string) (*audio.Sound, error)
	Tone(name string, freq float64) (*audio.Sound, error)
}

type modePalette struct {
	notes  []Note
	byID   map[NoteID]Note
	sounds map[NoteID]*audio.Sound
	slots  [gesture.NumSlots]NoteID
}

// Registry holds every palette and its preloaded assets. It is read-only
// after NewRegistry returns.
type Registry struct {
	palettes [3]*modePalette
	valves   [8]NoteID
	chords   []Chord
	skipped  []string
}

// NewRegistry builds all palettes and loads every asset. A palette with a
// sound directory reads "<dir>/<pitch>.wav" per note; one without synthesizes
// a tone from the note's frequency.
func NewRegistry(cfg Config, src SoundSource) (*Registry, error) {
	r := &Registry{}

	piano, err := keyboardPalette(Piano, cfg.Piano)
	if err != nil {
		return nil, err
	}
	synth, err := keyboardPalette(Synth, cfg.Synth)
	if err != nil {
		return nil, err
	}
	trumpet, err := r.trumpetPalette(cfg.Trumpet)
	if err != nil {
		return nil, err
	}

	r.palettes[Piano] = piano
	r.palettes[Synth] = synth
	r.palettes[Trumpet] = trumpet

	dirs := [3]string{cfg.Piano.SoundDir, cfg.Synth.SoundDir, cfg.Trumpet.SoundDir}
	for _, mode := range Modes {
		if err := r.palettes[mode].load(mode, dirs[mode], src); err != nil {
			return nil, err
		}
	}

	// A relaid piano can leave chords naming notes it no longer has.
	for _, c := range cfg.Chords {
		if piano.hasAll(c.Notes) {
			r.chords = append(r.chords, c)
		} else {
			r.skipped = append(r.skipped, c.Name)
		}
	}

	return r, nil
}

func newNote(id NoteID, pitch string) (Note, error) {
	midi, err := ParsePitch(pitch)
	if err != nil {
		return Note{}, fmt.Errorf("%w: note %s: %v", ErrInvalidPalette, id, err)
	}
	return Note{ID: id, Pitch: pitch, MIDI: midi, Freq: Frequency(midi)}, nil
}

func keyboardPalette(mode Mode, cfg KeyboardConfig) (*modePalette, error) {
	p := &modePalette{byID: make(map[NoteID]Note)}

	for _, side := range []gesture.Side{gesture.Left, gesture.Right} {
		pitches := cfg.Layout.side(side)
		if len(pitches) != gesture.NumFingers {
			return nil, fmt.Errorf("%w: %s %s hand has %d notes, want %d",
				ErrInvalidPalette, mode, side, len(pitches), gesture.NumFingers)
		}
		for f, pitch := range pitches {
			id := NoteID(pitch)
			n, err := newNote(id, pitch)
			if err != nil {
				return nil, err
			}
			if _, ok := p.byID[id]; !ok {
				p.byID[id] = n
				p.notes = append(p.notes, n)
			}
			p.slots[gesture.Slot{Side: side, Finger: gesture.Finger(f)}.Index()] = id
		}
	}

	sort.SliceStable(p.notes, func(i, j int) bool { return p.notes[i].MIDI < p.notes[j].MIDI })
	return p, nil
}

func (r *Registry) trumpetPalette(cfg TrumpetConfig) (*modePalette, error) {
	if len(cfg.Notes) == 0 {
		return nil, fmt.Errorf("%w: trumpet has no notes", ErrInvalidPalette)
	}

	p := &modePalette{byID: make(map[NoteID]Note)}
	for _, tn := range cfg.Notes {
		if _, ok := p.byID[tn.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate trumpet note %s", ErrInvalidPalette, tn.ID)
		}
		n, err := newNote(tn.ID, tn.Pitch)
		if err != nil {
			return nil, err
		}
		p.byID[tn.ID] = n
		p.notes = append(p.notes, n)
	}

	if _, ok := p.byID[cfg.Default]; !ok {
		return nil, fmt.Errorf("%w: default trumpet note %q not in palette", ErrInvalidPalette, cfg.Default)
	}
	for i := range r.valves {
		r.valves[i] = cfg.Default
	}
	for code, id := range cfg.Valves {
		c, err := ParseValveCode(code)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPalette, err)
		}
		if _, ok := p.byID[id]; !ok {
			return nil, fmt.Errorf("%w: valve %s maps to unknown note %q", ErrInvalidPalette, code, id)
		}
		r.valves[c] = id
	}

	return p, nil
}

func (p *modePalette) hasAll(ids []NoteID) bool {
	for _, id := range ids {
		if _, ok := p.byID[id]; !ok {
			return false
		}
	}
	return true
}

func (p *modePalette) load(mode Mode, dir string, src SoundSource) error {
	p.sounds = make(map[NoteID]*audio.Sound, len(p.notes))
	for _, n := range p.notes {
		var (
			s   *audio.Sound
			err error
		)
		if dir != "" {
			path := filepath.Join(dir, n.Pitch+".wav")
			s, err = src.LoadFile(string(n.ID), path)
			if err != nil {
				return fmt.Errorf("%w: %s note %s (%s): %v", ErrAssetMissing, mode, n.ID, path, err)
			}
		} else {
			s, err = src.Tone(string(n.ID), n.Freq)
			if err != nil {
				return fmt.Errorf("%w: %s note %s: %v", ErrAssetMissing, mode, n.ID, err)
			}
		}
		if s == nil {
			return fmt.Errorf("%w: %s note %s", ErrAssetMissing, mode, n.ID)
		}
		p.sounds[n.ID] = s
	}
	return nil
}

func (r *Registry) palette(mode Mode) *modePalette {
	if !mode.Valid() {
		return nil
	}
	return r.palettes[mode]
}

// NoteFor returns the note a finger slot plays in a keyboard mode. Trumpet
// has no per-slot notes.
func (r *Registry) NoteFor(mode Mode, slot gesture.Slot) (Note, bool) {
	p := r.palette(mode)
	if p == nil || mode == Trumpet {
		return Note{}, false
	}
	i := slot.Index()
	if i < 0 || i >= gesture.NumSlots {
		return Note{}, false
	}
	n, ok := p.byID[p.slots[i]]
	return n, ok
}

// Note looks up a note by identity.
func (r *Registry) Note(mode Mode, id NoteID) (Note, bool) {
	p := r.palette(mode)
	if p == nil {
		return Note{}, false
	}
	n, ok := p.byID[id]
	return n, ok
}

// Sound returns the preloaded asset for a note.
func (r *Registry) Sound(mode Mode, id NoteID) (*audio.Sound, error) {
	p := r.palette(mode)
	if p == nil {
		return nil, fmt.Errorf("%w: mode %s", ErrUnknownNote, mode)
	}
	if _, ok := p.byID[id]; !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownNote, id, mode)
	}
	s, ok := p.sounds[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrAssetMissing, id, mode)
	}
	return s, nil
}

// Palette returns a mode's notes, lowest first for keyboards and in
// configuration order for the trumpet.
func (r *Registry) Palette(mode Mode) []Note {
	p := r.palette(mode)
	if p == nil {
		return nil
	}
	out := make([]Note, len(p.notes))
	copy(out, p.notes)
	return out
}

// ValveNote resolves a valve code. Codes missing from the table resolve to
// the default note.
func (r *Registry) ValveNote(code ValveCode) Note {
	return r.palettes[Trumpet].byID[r.valves[code&7]]
}

// SkippedChords names the configured chords left out because a note is
// missing from the piano palette.
func (r *Registry) SkippedChords() []string {
	return r.skipped
}

// DetectChord returns the first configured chord whose notes are all in
// active.
func (r *Registry) DetectChord(active []NoteID) (string, bool) {
	if len(active) == 0 {
		return "", false
	}
	set := make(map[NoteID]struct{}, len(active))
	for _, id := range active {
		set[id] = struct{}{}
	}

	for _, c := range r.chords {
		if len(c.Notes) == 0 {
			continue
		}
		matched := true
		for _, id := range c.Notes {
			if _, ok := set[id]; !ok {
				matched = false
				break
			}
		}
		if matched {
			return c.Name, true
		}
	}
	return "", false
}
