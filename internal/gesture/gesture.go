// Package gesture turns hand landmarks into per-finger playing predicates.
//
// Everything here is a pure function of the current frame's landmarks; no
// state is carried between frames.
package gesture

import (
	"fmt"
	"strings"

	"github.com/ayusman/airtune/internal/detector"
)

// Side identifies which of the player's hands a landmark set belongs to.
type Side int

const (
	Left Side = iota
	Right
)

// NumSides is the maximum number of hands considered per frame.
const NumSides = 2

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Other returns the opposite hand.
func (s Side) Other() Side {
	if s == Left {
		return Right
	}
	return Left
}

// ParseSide parses "left" or "right", ignoring case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Left, fmt.Errorf("unknown hand side %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Finger identifies one finger of a hand, thumb first.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

// NumFingers is the number of fingers per hand.
const NumFingers = 5

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < 0 || int(f) >= NumFingers {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// tipJoint pairs each finger's tip landmark with the joint it is compared to
// for the "down" predicate.
var tipJoint = [NumFingers][2]int{
	{detector.ThumbTip, detector.ThumbMCP},
	{detector.IndexTip, detector.IndexPIP},
	{detector.MiddleTip, detector.MiddlePIP},
	{detector.RingTip, detector.RingPIP},
	{detector.PinkyTip, detector.PinkyPIP},
}

// knuckles pairs the long fingers' tips with their MCP joints for the fist test.
var knuckles = [4][2]int{
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyMCP},
}

// MaxExtendedForFist is the largest number of extended long fingers a hand
// may show and still count as a closed fist.
const MaxExtendedForFist = 2

// Slot is one finger of one hand: the unit that produces an on/off stream.
type Slot struct {
	Side   Side
	Finger Finger
}

// NumSlots is the number of finger slots across both hands.
const NumSlots = NumSides * NumFingers

// Index returns the slot's stable position in [0, NumSlots).
func (s Slot) Index() int {
	return int(s.Side)*NumFingers + int(s.Finger)
}

func (s Slot) String() string {
	return s.Side.String() + "-" + s.Finger.String()
}

// SlotAt is the inverse of Slot.Index.
func SlotAt(i int) Slot {
	return Slot{Side: Side(i / NumFingers), Finger: Finger(i % NumFingers)}
}

// FingerDown reports whether a finger is folded.
//
// Long fingers are down when the tip is lower on screen than the PIP joint.
// The thumb folds sideways, so it compares horizontal positions instead and
// the direction depends on which hand it is.
func FingerDown(h *detector.HandLandmarks, f Finger, side Side) bool {
	tip := h.Points[tipJoint[f][0]]
	joint := h.Points[tipJoint[f][1]]

	if f == Thumb {
		if side == Left {
			return tip.X < joint.X
		}
		return tip.X > joint.X
	}
	return tip.Y > joint.Y
}

// ExtendedFingers counts long fingers whose tip is above their knuckle.
func ExtendedFingers(h *detector.HandLandmarks) int {
	n := 0
	for _, k := range knuckles {
		if h.Points[k[0]].Y < h.Points[k[1]].Y {
			n++
		}
	}
	return n
}

// FistClosed reports whether the hand is a fist: at most
// MaxExtendedForFist long fingers extended.
func FistClosed(h *detector.HandLandmarks) bool {
	return ExtendedFingers(h) <= MaxExtendedForFist
}

// ResolveSides assigns a Side to each of the first NumSides hands.
//
// Detector handedness labels are preferred. When a label is missing or both
// hands claim the same side, every hand falls back to its detection ordinal
// (first hand left, second right) and degraded is true. Detection order is
// not stable between frames, so the fallback can swap hands.
func ResolveSides(hands []detector.HandLandmarks) (sides []Side, degraded bool) {
	n := len(hands)
	if n > NumSides {
		n = NumSides
	}
	sides = make([]Side, n)

	labeled := true
	for i := 0; i < n; i++ {
		s, err := ParseSide(hands[i].Handedness)
		if err != nil {
			labeled = false
			break
		}
		sides[i] = s
	}
	if labeled && (n < 2 || sides[0] != sides[1]) {
		return sides, false
	}

	for i := range sides {
		sides[i] = Side(i)
	}
	return sides, n > 0
}

// Options tunes Analyze.
type Options struct {
	// MinScore drops hands whose detection score is below it.
	MinScore float64
}

// Frame holds the predicates derived from one frame's landmarks.
type Frame struct {
	Present  [NumSides]bool
	Down     [NumSlots]bool
	Fist     [NumSides]bool
	Tips     [NumSlots]detector.Point3D
	Degraded bool
}

// Analyze derives a Frame from the hands detected in one video frame.
// Missing hands leave all their predicates false.
func Analyze(hands []detector.HandLandmarks, opts Options) Frame {
	var f Frame

	kept := hands
	if opts.MinScore > 0 {
		kept = make([]detector.HandLandmarks, 0, len(hands))
		for _, h := range hands {
			if h.Score >= opts.MinScore {
				kept = append(kept, h)
			}
		}
	}

	sides, degraded := ResolveSides(kept)
	f.Degraded = degraded

	for i, side := range sides {
		h := &kept[i]
		f.Present[side] = true
		f.Fist[side] = FistClosed(h)
		for finger := Thumb; finger <= Pinky; finger++ {
			slot := Slot{Side: side, Finger: finger}.Index()
			f.Down[slot] = FingerDown(h, finger, side)
			f.Tips[slot] = h.Points[tipJoint[finger][0]]
		}
	}

	return f
}

// IsDown reports the predicate for one slot.
func (f *Frame) IsDown(s Slot) bool {
	return f.Down[s.Index()]
}

// Valves returns the index, middle and ring predicates of one hand, the
// fingers that work the three trumpet valves.
func (f *Frame) Valves(side Side) [3]bool {
	return [3]bool{
		f.IsDown(Slot{side, Index}),
		f.IsDown(Slot{side, Middle}),
		f.IsDown(Slot{side, Ring}),
	}
}

// Breath reports whether the hand on side is present and closed.
func (f *Frame) Breath(side Side) bool {
	return f.Present[side] && f.Fist[side]
}

// HandCount returns how many hands survived the score filter.
func (f *Frame) HandCount() int {
	n := 0
	for _, p := range f.Present {
		if p {
			n++
		}
	}
	return n
}

// DownCount returns how many fingers are down across both hands.
func (f *Frame) DownCount() int {
	n := 0
	for _, d := range f.Down {
		if d {
			n++
		}
	}
	return n
}
