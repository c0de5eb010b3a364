// Package app runs the AirTune frame loop: capture, detection, gesture
// analysis and the instrument engines.
package app

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/capture"
	"github.com/ayusman/airtune/internal/detector"
	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/input"
	"github.com/ayusman/airtune/internal/palette"
)

// Display draws each processed frame, typically in a preview window.
type Display interface {
	Show(frame *gocv.Mat, snap *Snapshot)
}

// Config holds the components the loop drives.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Mixer    audio.Mixer
	Palettes *palette.Registry

	// Input is polled once per frame. Nil means no commands.
	Input input.Source
	// Display is optional.
	Display Display

	Engine  engine.Config
	Gesture gesture.Options
	Motion  capture.MotionConfig
	Log     *zap.Logger
}

// Snapshot is an immutable view of the loop state after one frame.
type Snapshot struct {
	Mode     palette.Mode
	Sounding []palette.Note
	Chord    string
	Hands    int
	Degraded bool
	// Valves and Breath describe the trumpet hands; they are only
	// meaningful in Trumpet mode.
	Valves palette.ValveCode
	Breath bool
	Frames uint64
	Frame  gesture.Frame
	At     time.Time
}

// App is the AirTune frame loop. All engine state is owned by the goroutine
// calling Run; other goroutines read Snapshot and send commands through the
// input queue.
type App struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	mixer      audio.Mixer
	palettes   *palette.Registry
	controller *engine.Controller
	input      input.Source
	motion     *capture.MotionGate
	sinks      []engine.Sink
	log        *zap.Logger

	lastHands []detector.HandLandmarks
	frames    uint64
	snapshot  atomic.Pointer[Snapshot]
	now       func() time.Time
	closeOnce sync.Once
}

// New creates an App from config. Camera, Detector and Palettes are
// required.
func New(config Config) *App {
	log := config.Log
	if log == nil {
		log = zap.NewNop()
	}
	mixer := config.Mixer
	if mixer == nil {
		mixer = audio.NewMemoryMixer()
	}
	src := config.Input
	if src == nil {
		src = input.Multi{}
	}

	a := &App{
		config:     config,
		camera:     config.Camera,
		detector:   config.Detector,
		mixer:      mixer,
		palettes:   config.Palettes,
		controller: engine.NewController(config.Palettes, mixer, config.Engine, log.Named("engine")),
		input:      src,
		log:        log,
		now:        time.Now,
	}
	if config.Motion.Enabled {
		a.motion = capture.NewMotionGate(config.Motion.Threshold)
	}

	a.publishSnapshot(gesture.Frame{})
	return a
}

// AddSink registers a receiver for every note event. Sinks that implement
// io.Closer are closed on shutdown in registration order, after the last
// note has been stopped.
func (a *App) AddSink(s engine.Sink) {
	a.sinks = append(a.sinks, s)
	a.controller.AddSink(s)
}

// SetClock replaces the time source used for events and snapshots.
func (a *App) SetClock(now func() time.Time) {
	a.now = now
	a.controller.SetClock(now)
}

// Controller returns the mode controller.
func (a *App) Controller() *engine.Controller {
	return a.controller
}

// Snapshot returns the state after the most recent frame. It is safe to call
// from any goroutine.
func (a *App) Snapshot() *Snapshot {
	return a.snapshot.Load()
}

func (a *App) publishSnapshot(f gesture.Frame) {
	mode := a.controller.Mode()
	snap := &Snapshot{
		Mode:     mode,
		Sounding: a.controller.Sounding(),
		Hands:    f.HandCount(),
		Degraded: f.Degraded,
		Frames:   a.frames,
		Frame:    f,
		At:       a.now(),
	}

	if mode == palette.Trumpet {
		tr := a.controller.Trumpet()
		snap.Valves = tr.Code()
		snap.Breath = tr.Breathing()
	} else if len(snap.Sounding) > 0 {
		ids := make([]palette.NoteID, len(snap.Sounding))
		for i, n := range snap.Sounding {
			ids[i] = n.ID
		}
		snap.Chord, _ = a.palettes.DetectChord(ids)
	}

	a.snapshot.Store(snap)
}

// Close runs the shutdown path once. Run calls it on return; a caller that
// never reaches Run calls it to release the mixer and detector.
func (a *App) Close() {
	a.closeOnce.Do(a.shutdown)
}

// shutdown stops every sounding note, then closes sinks, mixer, detector and
// camera in that order.
func (a *App) shutdown() {
	stopped := a.controller.Shutdown()
	a.log.Info("shutting down", zap.Int("stopped_notes", len(stopped)))
	a.publishSnapshot(gesture.Frame{})

	for _, s := range a.sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close sink", zap.Error(err))
		}
	}

	if err := a.mixer.Close(); err != nil {
		a.log.Warn("close mixer", zap.Error(err))
	}
	if err := a.detector.Close(); err != nil {
		a.log.Warn("close detector", zap.Error(err))
	}
	if a.motion != nil {
		a.motion.Close()
	}
	if err := a.camera.Close(); err != nil {
		a.log.Warn("close camera", zap.Error(err))
	}
}
