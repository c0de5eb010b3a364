package engine

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/detector"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/palette"
)

var (
	leftPinky  = gesture.Slot{Side: gesture.Left, Finger: gesture.Pinky}  // C5
	leftRing   = gesture.Slot{Side: gesture.Left, Finger: gesture.Ring}   // D5
	leftMiddle = gesture.Slot{Side: gesture.Left, Finger: gesture.Middle} // E5
	leftThumb  = gesture.Slot{Side: gesture.Left, Finger: gesture.Thumb}  // G5
	rightThumb = gesture.Slot{Side: gesture.Right, Finger: gesture.Thumb} // A5
)

func newRegistry(t *testing.T, mutate func(*palette.Config)) *palette.Registry {
	t.Helper()
	cfg := palette.DefaultConfig()
	cfg.Piano.SoundDir = ""
	cfg.Trumpet.SoundDir = ""
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := palette.NewRegistry(cfg, audio.Loader{SampleRate: 8000, ToneSeconds: 0.05, ToneAmplitude: 0.2})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

// keys returns a frame with the given slots down and their hands present.
func keys(down ...gesture.Slot) gesture.Frame {
	var f gesture.Frame
	for _, s := range down {
		f.Down[s.Index()] = true
		f.Present[s.Side] = true
	}
	return f
}

// horn returns a frame with right-hand valves and an optional left fist.
func horn(valves [3]bool, breath bool) gesture.Frame {
	var f gesture.Frame
	f.Present[gesture.Right] = true
	fingers := []gesture.Finger{gesture.Index, gesture.Middle, gesture.Ring}
	for i, pressed := range valves {
		f.Down[gesture.Slot{Side: gesture.Right, Finger: fingers[i]}.Index()] = pressed
	}
	if breath {
		f.Present[gesture.Left] = true
		f.Fist[gesture.Left] = true
	}
	return f
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Kind.String() + ":" + string(ev.Note.ID)
	}
	return out
}

func assertEvents(t *testing.T, got []Event, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("events = %v, want %v", g, want)
	}
	for i := range g {
		if g[i] != want[i] {
			t.Fatalf("events = %v, want %v", g, want)
		}
	}
}

func TestPoly_EdgeDetection(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	p := NewPoly(newRegistry(t, nil), mixer, palette.Piano, zaptest.NewLogger(t))

	steps := []struct {
		name  string
		frame gesture.Frame
		want  []string
	}{
		{"press", keys(leftPinky), []string{"note_on:C5"}},
		{"held", keys(leftPinky), nil},
		{"held again", keys(leftPinky), nil},
		{"second finger", keys(leftPinky, leftMiddle), []string{"note_on:E5"}},
		{"release first", keys(leftMiddle), []string{"note_off:C5"}},
		{"release all", keys(), []string{"note_off:E5"}},
		{"stay up", keys(), nil},
		{"press again", keys(leftPinky), []string{"note_on:C5"}},
	}

	for _, step := range steps {
		assertEvents(t, p.Update(step.frame), step.want...)
	}

	if got := mixer.Sounding(); len(got) != 1 || got[0] != "C5" {
		t.Errorf("mixer sounding = %v, want [C5]", got)
	}
}

func TestPoly_SustainFollowsMode(t *testing.T) {
	tests := []struct {
		mode     palette.Mode
		wantLoop bool
	}{
		{palette.Piano, false},
		{palette.Synth, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			mixer := audio.NewMemoryMixer()
			p := NewPoly(newRegistry(t, nil), mixer, tt.mode, nil)

			events := p.Update(keys(rightThumb))
			if len(events) != 1 || events[0].Sustained != tt.wantLoop || events[0].Mode != tt.mode {
				t.Fatalf("unexpected events %+v", events)
			}
			calls := mixer.Calls()
			if len(calls) != 1 || calls[0].Loop != tt.wantLoop {
				t.Errorf("mixer calls = %+v, want one play with loop=%v", calls, tt.wantLoop)
			}
		})
	}

	t.Run("sounding note keeps its start flavour", func(t *testing.T) {
		mixer := audio.NewMemoryMixer()
		p := NewPoly(newRegistry(t, nil), mixer, palette.Synth, nil)
		p.Update(keys(leftPinky))
		p.SetMode(palette.Piano)

		off := p.Update(keys())
		if len(off) != 1 || !off[0].Sustained || off[0].Mode != palette.Synth {
			t.Errorf("NoteOff = %+v, want sustained synth note", off)
		}
	})
}

func TestPoly_SharedNoteHasOneVoice(t *testing.T) {
	// Left pinky and right thumb both play C5.
	reg := newRegistry(t, func(c *palette.Config) {
		c.Piano.Layout.Right = []string{"C5", "B5", "C6", "D6", "E6"}
	})
	mixer := audio.NewMemoryMixer()
	p := NewPoly(reg, mixer, palette.Piano, nil)

	assertEvents(t, p.Update(keys(leftPinky)), "note_on:C5")
	assertEvents(t, p.Update(keys(leftPinky, rightThumb)))
	if mixer.Active() != 1 {
		t.Fatalf("active voices = %d, want 1", mixer.Active())
	}
	if n := len(p.Sounding()); n != 1 {
		t.Fatalf("Sounding() has %d entries, want 1", n)
	}

	assertEvents(t, p.Update(keys(rightThumb)))
	if mixer.Active() != 1 {
		t.Error("note should sound while a holder remains")
	}

	assertEvents(t, p.Update(keys()), "note_off:C5")
	if mixer.Active() != 0 {
		t.Error("voice should stop after the last holder lifts")
	}
}

func TestPoly_StopAll(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	p := NewPoly(newRegistry(t, nil), mixer, palette.Synth, nil)

	p.Update(keys(leftPinky, leftRing, leftThumb))
	assertEvents(t, p.StopAll(), "note_off:C5", "note_off:D5", "note_off:G5")
	if mixer.Active() != 0 {
		t.Fatalf("active voices = %d after StopAll", mixer.Active())
	}
	if len(p.Sounding()) != 0 {
		t.Fatal("active set not cleared")
	}

	assertEvents(t, p.Update(keys(leftPinky, leftRing, leftThumb)))
	assertEvents(t, p.Update(keys(leftPinky)))
	assertEvents(t, p.Update(keys(leftPinky, leftRing)), "note_on:D5")

	assertEvents(t, p.StopAll(), "note_off:D5")
	assertEvents(t, p.StopAll())
}

func TestPoly_NoHandsStaysIdle(t *testing.T) {
	p := NewPoly(newRegistry(t, nil), audio.NewMemoryMixer(), palette.Piano, nil)

	p.Update(keys(leftPinky, rightThumb))
	assertEvents(t, p.Update(gesture.Frame{}), "note_off:C5", "note_off:A5")

	for i := 0; i < 30; i++ {
		if events := p.Update(gesture.Frame{}); len(events) != 0 {
			t.Fatalf("frame %d: unexpected events %v", i, ids(events))
		}
	}
	assertEvents(t, p.Update(keys(rightThumb)), "note_on:A5")
}

func TestTrumpet_ValveLegato(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	tr := NewTrumpet(newRegistry(t, nil), mixer, gesture.Right, zaptest.NewLogger(t))

	assertEvents(t, tr.Update(horn([3]bool{}, true)), "note_on:C")
	if got := mixer.Sounding(); len(got) != 1 || got[0] != "C" {
		t.Fatalf("sounding = %v, want [C]", got)
	}

	assertEvents(t, tr.Update(horn([3]bool{true, false, false}, true)), "note_off:C", "note_on:B")
	if got := mixer.Sounding(); len(got) != 1 || got[0] != "B" {
		t.Fatalf("sounding = %v, want [B]", got)
	}

	calls := mixer.Calls()
	want := []audio.Call{
		{Op: audio.OpPlay, Sound: "C", Loop: true},
		{Op: audio.OpStop, Sound: "C", Loop: true},
		{Op: audio.OpPlay, Sound: "B", Loop: true},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestTrumpet_ValveTable(t *testing.T) {
	tests := []struct {
		valves [3]bool
		want   palette.NoteID
	}{
		{[3]bool{false, false, false}, "C"},
		{[3]bool{true, false, false}, "B"},
		{[3]bool{false, true, false}, "Bb"},
		{[3]bool{true, true, false}, "A"},
		{[3]bool{false, false, true}, "Ab"},
		{[3]bool{false, true, true}, "G"},
		{[3]bool{true, false, true}, "Gb"},
		{[3]bool{true, true, true}, "F"},
	}

	reg := newRegistry(t, nil)
	for _, tt := range tests {
		code := palette.CodeFromValves(tt.valves)
		t.Run(code.String(), func(t *testing.T) {
			tr := NewTrumpet(reg, audio.NewMemoryMixer(), gesture.Right, nil)
			events := tr.Update(horn(tt.valves, true))
			if len(events) != 1 || events[0].Note.ID != tt.want {
				t.Errorf("events = %v, want note_on:%s", ids(events), tt.want)
			}
			if tr.Code() != code || !tr.Breathing() {
				t.Errorf("state = %s/%v", tr.Code(), tr.Breathing())
			}
		})
	}
}

func TestTrumpet_NoBreathIsSilent(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	tr := NewTrumpet(newRegistry(t, nil), mixer, gesture.Right, nil)

	for c := 0; c < 8; c++ {
		valves := [3]bool{c&4 != 0, c&2 != 0, c&1 != 0}
		if events := tr.Update(horn(valves, false)); len(events) != 0 {
			t.Errorf("code %03b: unexpected events %v", c, ids(events))
		}
	}
	if mixer.Active() != 0 || len(tr.Sounding()) != 0 {
		t.Error("trumpet should be silent without breath")
	}

	tr.Update(horn([3]bool{true, true, true}, true))
	assertEvents(t, tr.Update(horn([3]bool{true, true, true}, false)), "note_off:F")
	if mixer.Active() != 0 {
		t.Error("releasing breath should stop the voice")
	}
}

func TestTrumpet_SteadyStateAndNoHands(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	tr := NewTrumpet(newRegistry(t, nil), mixer, gesture.Right, nil)

	f := horn([3]bool{false, true, false}, true)
	assertEvents(t, tr.Update(f), "note_on:Bb")
	for i := 0; i < 5; i++ {
		assertEvents(t, tr.Update(f))
	}
	if n := len(mixer.Calls()); n != 1 {
		t.Errorf("held note restarted: %d mixer calls", n)
	}

	assertEvents(t, tr.Update(gesture.Frame{}), "note_off:Bb")
	for i := 0; i < 10; i++ {
		assertEvents(t, tr.Update(gesture.Frame{}))
	}
	if tr.Code() != 0 || tr.Breathing() {
		t.Error("no hands should reset valves and breath")
	}
}

func TestTrumpet_LeftHandValves(t *testing.T) {
	tr := NewTrumpet(newRegistry(t, nil), audio.NewMemoryMixer(), gesture.Left, nil)

	var f gesture.Frame
	f.Present = [gesture.NumSides]bool{true, true}
	f.Down[gesture.Slot{Side: gesture.Left, Finger: gesture.Ring}.Index()] = true
	f.Fist[gesture.Right] = true

	assertEvents(t, tr.Update(f), "note_on:Ab")
}

func TestTrumpet_StopAll(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	tr := NewTrumpet(newRegistry(t, nil), mixer, gesture.Right, nil)

	assertEvents(t, tr.StopAll())
	tr.Update(horn([3]bool{}, true))
	assertEvents(t, tr.StopAll(), "note_off:C")
	if mixer.Active() != 0 {
		t.Error("StopAll left a voice running")
	}
}

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Publish(ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestController_SwitchStopsSoundingNotes(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	c := NewController(newRegistry(t, nil), mixer, DefaultConfig(), zaptest.NewLogger(t))

	assertEvents(t, c.Update(keys(leftPinky)), "note_on:C5")

	events := c.Switch(palette.Trumpet)
	assertEvents(t, events, "note_off:C5")
	if mixer.Active() != 0 {
		t.Fatal("C5 still sounding after the switch")
	}
	if c.Mode() != palette.Trumpet {
		t.Fatalf("Mode() = %s, want trumpet", c.Mode())
	}

	assertEvents(t, c.Update(horn([3]bool{}, true)), "note_on:C")
}

func TestController_RoutesToOneEngine(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	c := NewController(newRegistry(t, nil), mixer, Config{Mode: palette.Trumpet, ValveSide: gesture.Right}, nil)

	assertEvents(t, c.Update(keys(leftPinky, leftThumb)))
	if mixer.Active() != 0 {
		t.Error("keyboard engine ran while trumpet was selected")
	}

	f := horn([3]bool{true, true, false}, true)
	assertEvents(t, c.Update(f), "note_on:A")
	assertEvents(t, c.Switch(palette.Synth), "note_off:A")

	// The frame that was playing the trumpet becomes the keyboard baseline.
	assertEvents(t, c.Update(f))
	assertEvents(t, c.Update(keys()))
	events := c.Update(keys(rightThumb))
	assertEvents(t, events, "note_on:A5")
	if !events[0].Sustained || events[0].Mode != palette.Synth {
		t.Errorf("expected a sustained synth note, got %+v", events[0])
	}
}

func TestController_SwitchBetweenKeyboards(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	c := NewController(newRegistry(t, nil), mixer, DefaultConfig(), nil)

	c.Update(keys(leftPinky, rightThumb))
	assertEvents(t, c.Switch(palette.Synth), "note_off:C5", "note_off:A5")
	assertEvents(t, c.Switch(palette.Synth))
	if mixer.Active() != 0 {
		t.Error("piano voices survived the switch to synth")
	}
}

func TestController_Sinks(t *testing.T) {
	c := NewController(newRegistry(t, nil), audio.NewMemoryMixer(), DefaultConfig(), zaptest.NewLogger(t))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return at })

	good := &recordingSink{}
	bad := &recordingSink{err: errors.New("disk full")}
	c.AddSink(bad)
	c.AddSink(good)

	c.Update(keys(leftPinky))
	c.Switch(palette.Trumpet)
	c.Update(horn([3]bool{}, true))

	if len(good.events) != 3 || len(bad.events) != 3 {
		t.Fatalf("sinks got %d/%d events, want 3", len(good.events), len(bad.events))
	}
	assertEvents(t, good.events, "note_on:C5", "note_off:C5", "note_on:C")
	for _, ev := range good.events {
		if !ev.At.Equal(at) {
			t.Errorf("event %s stamped %v, want %v", ev, ev.At, at)
		}
	}
}

func TestController_Shutdown(t *testing.T) {
	mixer := audio.NewMemoryMixer()
	c := NewController(newRegistry(t, nil), mixer, DefaultConfig(), nil)

	c.Update(keys(leftPinky, leftMiddle))
	assertEvents(t, c.Shutdown(), "note_off:C5", "note_off:E5")
	if mixer.Active() != 0 {
		t.Error("voices left after Shutdown")
	}
	assertEvents(t, c.Shutdown())
}

func TestController_SameLandmarksTwice(t *testing.T) {
	hands := []detector.HandLandmarks{
		detector.OpenHand(detector.HandLeft).Fold(detector.PinkyTip, detector.ThumbTip),
		detector.OpenHand(detector.HandRight).Fold(detector.IndexTip),
	}

	for _, mode := range palette.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			c := NewController(newRegistry(t, nil), audio.NewMemoryMixer(), Config{Mode: mode, ValveSide: gesture.Right}, nil)

			first := c.Update(gesture.Analyze(hands, gesture.Options{}))
			second := c.Update(gesture.Analyze(hands, gesture.Options{}))

			if mode != palette.Trumpet && len(first) != 3 {
				t.Errorf("first frame events = %v, want 3 note_on", ids(first))
			}
			if len(second) != 0 {
				t.Errorf("second identical frame produced %v", ids(second))
			}
		})
	}
}
