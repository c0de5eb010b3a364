package midi

import (
	"fmt"
	"io"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ayusman/airtune/internal/engine"
)

// File resolution and tempo of exported takes.
const (
	TicksPerQuarter = 960
	ExportBPM       = 120
)

// ticks converts a duration to ticks at ExportBPM.
func ticks(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	quarter := time.Minute / ExportBPM
	return uint32(int64(d) * TicksPerQuarter / int64(quarter))
}

// WriteSMF writes events as a single-track Standard MIDI File. Event times
// are taken relative to the first event.
func WriteSMF(w io.Writer, name string, events []engine.Event, config Config) error {
	if config.Velocity == 0 {
		config.Velocity = DefaultConfig().Velocity
	}

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	tr.Add(0, smf.MetaTempo(ExportBPM))

	var (
		start time.Time
		last  uint32
	)
	for i, ev := range events {
		if i == 0 {
			start = ev.At
		}
		if ev.Note.MIDI < 0 || ev.Note.MIDI > 127 {
			continue
		}

		at := ticks(ev.At.Sub(start))
		if at < last {
			at = last
		}
		delta := at - last
		last = at

		ch := config.Channel(ev.Mode)
		key := uint8(ev.Note.MIDI)
		switch ev.Kind {
		case engine.NoteOn:
			tr.Add(delta, gomidi.NoteOn(ch, key, config.Velocity))
		case engine.NoteOff:
			tr.Add(delta, gomidi.NoteOff(ch, key))
		}
	}
	tr.Close(0)

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	if err := file.Add(tr); err != nil {
		return fmt.Errorf("smf track: %w", err)
	}
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}
