package palette

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var pitchClasses = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParsePitch converts scientific pitch notation ("C5", "Bb3", "F#4") to a
// MIDI note number, with C4 = 60.
func ParsePitch(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid pitch %q", s)
	}

	class, ok := pitchClasses[strings.ToUpper(s[:1])]
	if !ok {
		return 0, fmt.Errorf("invalid pitch %q", s)
	}

	rest := s[1:]
	for len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		if rest[0] == '#' {
			class++
		} else {
			class--
		}
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid pitch %q: octave: %w", s, err)
	}

	midi := (octave+1)*12 + class
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("pitch %q out of MIDI range", s)
	}
	return midi, nil
}

// Frequency returns the equal-tempered frequency of a MIDI note, A4 = 440 Hz.
func Frequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// PitchName formats a MIDI note number using sharps.
func PitchName(midi int) string {
	if midi < 0 {
		return fmt.Sprintf("?%d", midi)
	}
	return fmt.Sprintf("%s%d", sharpNames[midi%12], midi/12-1)
}
