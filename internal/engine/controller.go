package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/palette"
)

// Config configures a Controller.
type Config struct {
	Mode      palette.Mode
	ValveSide gesture.Side
}

// DefaultConfig starts on the piano with trumpet valves on the right hand.
func DefaultConfig() Config {
	return Config{Mode: palette.Piano, ValveSide: gesture.Right}
}

// Controller owns the current mode and routes each frame to exactly one
// engine. Piano and Synth share the keyboard engine.
type Controller struct {
	mode    palette.Mode
	poly    *Poly
	trumpet *Trumpet
	sinks   []Sink
	log     *zap.Logger
	now     func() time.Time
}

// NewController creates a controller with both engines idle.
func NewController(pal Palette, mixer audio.Mixer, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	mode := cfg.Mode
	if !mode.Valid() {
		mode = palette.Piano
	}

	c := &Controller{
		mode:    mode,
		poly:    NewPoly(pal, mixer, palette.Piano, log.Named("poly")),
		trumpet: NewTrumpet(pal, mixer, cfg.ValveSide, log.Named("trumpet")),
		log:     log,
		now:     time.Now,
	}
	if mode == palette.Trumpet {
		// The keyboard takes its baseline when first selected.
		c.poly.StopAll()
	} else {
		c.poly.SetMode(mode)
	}
	return c
}

// AddSink registers a receiver for every emitted event.
func (c *Controller) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// SetClock replaces the clock used to stamp events.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// Mode returns the current mode.
func (c *Controller) Mode() palette.Mode {
	return c.mode
}

// Trumpet exposes the trumpet engine for status display.
func (c *Controller) Trumpet() *Trumpet {
	return c.trumpet
}

func (c *Controller) active() Engine {
	if c.mode == palette.Trumpet {
		return c.trumpet
	}
	return c.poly
}

// Switch changes the mode. The outgoing engine is stopped before the new
// mode is set, so the returned NoteOff events precede anything the new
// engine emits. Switching to the current mode does nothing.
func (c *Controller) Switch(mode palette.Mode) []Event {
	if mode == c.mode {
		return nil
	}
	if !mode.Valid() {
		c.log.Warn("ignoring switch to invalid mode", zap.Stringer("mode", mode))
		return nil
	}

	events := c.active().StopAll()
	from := c.mode
	c.mode = mode
	if mode != palette.Trumpet {
		c.poly.SetMode(mode)
	}

	c.log.Info("mode switched",
		zap.Stringer("from", from),
		zap.Stringer("to", mode),
		zap.Int("stopped", len(events)))

	return c.publish(events)
}

// Update routes one frame to the active engine.
func (c *Controller) Update(f gesture.Frame) []Event {
	return c.publish(c.active().Update(f))
}

// Sounding lists the notes the active engine is playing.
func (c *Controller) Sounding() []palette.Note {
	return c.active().Sounding()
}

// Shutdown stops every voice of both engines.
func (c *Controller) Shutdown() []Event {
	events := c.poly.StopAll()
	events = append(events, c.trumpet.StopAll()...)
	return c.publish(events)
}

func (c *Controller) publish(events []Event) []Event {
	if len(events) == 0 {
		return events
	}

	at := c.now()
	for i := range events {
		events[i].At = at
		ev := events[i]
		c.log.Debug("note event",
			zap.Stringer("kind", ev.Kind),
			zap.String("note", string(ev.Note.ID)),
			zap.Stringer("mode", ev.Mode))

		for _, s := range c.sinks {
			if err := s.Publish(ev); err != nil {
				c.log.Warn("sink rejected event", zap.Error(err))
			}
		}
	}
	return events
}
