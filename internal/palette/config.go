package palette

import (
	"fmt"
	"strings"

	"github.com/ayusman/airtune/internal/gesture"
)

// Layout assigns a pitch to each finger of each hand, thumb first.
type Layout struct {
	Left  []string `yaml:"left"`
	Right []string `yaml:"right"`
}

// side returns the pitch list for one hand.
func (l Layout) side(s gesture.Side) []string {
	if s == gesture.Left {
		return l.Left
	}
	return l.Right
}

// KeyboardConfig describes a finger-tapping palette.
type KeyboardConfig struct {
	Layout   Layout `yaml:"layout"`
	SoundDir string `yaml:"sound_dir,omitempty"`
}

// TrumpetNote names a trumpet note and the pitch its sample plays.
type TrumpetNote struct {
	ID    NoteID `yaml:"id"`
	Pitch string `yaml:"pitch"`
}

// TrumpetConfig describes the valve palette.
type TrumpetConfig struct {
	SoundDir string            `yaml:"sound_dir"`
	Notes    []TrumpetNote     `yaml:"notes"`
	Valves   map[string]NoteID `yaml:"valves"`
	Default  NoteID            `yaml:"default"`
}

// Chord is a named set of notes recognised while they sound together.
type Chord struct {
	Name  string   `yaml:"name"`
	Notes []NoteID `yaml:"notes"`
}

// Config is the palette configuration data for all modes.
type Config struct {
	Piano   KeyboardConfig `yaml:"piano"`
	Synth   KeyboardConfig `yaml:"synth"`
	Trumpet TrumpetConfig  `yaml:"trumpet"`
	Chords  []Chord        `yaml:"chords"`
}

// DefaultConfig returns the stock palettes: a two-octave-ish white-key
// keyboard split across the hands and a Bb trumpet's valve chart.
func DefaultConfig() Config {
	keys := Layout{
		Left:  []string{"G5", "F5", "E5", "D5", "C5"},
		Right: []string{"A5", "B5", "C6", "D6", "E6"},
	}

	return Config{
		Piano: KeyboardConfig{
			Layout:   keys,
			SoundDir: "Sounds/Piano",
		},
		Synth: KeyboardConfig{
			Layout: keys,
		},
		Trumpet: TrumpetConfig{
			SoundDir: "Sounds/Trumpet",
			Notes: []TrumpetNote{
				{ID: "C", Pitch: "C4"},
				{ID: "B", Pitch: "B3"},
				{ID: "Bb", Pitch: "Bb3"},
				{ID: "A", Pitch: "A3"},
				{ID: "Ab", Pitch: "Ab3"},
				{ID: "G", Pitch: "G3"},
				{ID: "Gb", Pitch: "Gb3"},
				{ID: "F", Pitch: "F3"},
			},
			Valves: map[string]NoteID{
				"000": "C",
				"100": "B",
				"010": "Bb",
				"110": "A",
				"001": "Ab",
				"011": "G",
				"101": "Gb",
				"111": "F",
			},
			Default: "C",
		},
		Chords: []Chord{
			{Name: "C Major", Notes: []NoteID{"C5", "E5", "G5"}},
			{Name: "D Minor", Notes: []NoteID{"D5", "F5", "A5"}},
			{Name: "E Minor", Notes: []NoteID{"E5", "G5", "B5"}},
			{Name: "F Major", Notes: []NoteID{"F5", "A5", "C6"}},
			{Name: "G Major", Notes: []NoteID{"G5", "B5", "D6"}},
			{Name: "A Minor", Notes: []NoteID{"A5", "C6", "E6"}},
		},
	}
}

// ValveCode is the pressed state of the three trumpet valves. Bit 2 is
// valve 1 (index finger), bit 1 valve 2 (middle), bit 0 valve 3 (ring).
type ValveCode uint8

// CodeFromValves packs three valve states, valve 1 first.
func CodeFromValves(v [3]bool) ValveCode {
	var c ValveCode
	for _, pressed := range v {
		c <<= 1
		if pressed {
			c |= 1
		}
	}
	return c
}

// String renders the code as "101", valve 1 first.
func (c ValveCode) String() string {
	b := []byte("000")
	for i := 0; i < 3; i++ {
		if c&(1<<(2-i)) != 0 {
			b[i] = '1'
		}
	}
	return string(b)
}

// ParseValveCode parses a three character "0"/"1" string.
func ParseValveCode(s string) (ValveCode, error) {
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return 0, fmt.Errorf("invalid valve code %q", s)
	}
	var v [3]bool
	for i := 0; i < 3; i++ {
		switch s[i] {
		case '0':
		case '1':
			v[i] = true
		default:
			return 0, fmt.Errorf("invalid valve code %q", s)
		}
	}
	return CodeFromValves(v), nil
}
