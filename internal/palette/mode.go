package palette

import (
	"fmt"
	"strings"
)

// Mode selects the instrument being played.
type Mode int

const (
	Piano Mode = iota
	Synth
	Trumpet
)

// Modes lists every mode in display order.
var Modes = []Mode{Piano, Synth, Trumpet}

func (m Mode) String() string {
	switch m {
	case Piano:
		return "piano"
	case Synth:
		return "synth"
	case Trumpet:
		return "trumpet"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Sustained reports whether notes in this mode loop until explicitly stopped.
// Piano samples play once and decay on their own.
func (m Mode) Sustained() bool {
	return m != Piano
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= Piano && m <= Trumpet
}

// ParseMode parses a mode name, ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "piano":
		return Piano, nil
	case "synth":
		return Synth, nil
	case "trumpet":
		return Trumpet, nil
	}
	return Piano, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
