package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/app"
	"github.com/ayusman/airtune/internal/audio"
	"github.com/ayusman/airtune/internal/capture"
	"github.com/ayusman/airtune/internal/config"
	"github.com/ayusman/airtune/internal/detector"
	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/input"
	"github.com/ayusman/airtune/internal/logging"
	"github.com/ayusman/airtune/internal/midi"
	"github.com/ayusman/airtune/internal/palette"
	"github.com/ayusman/airtune/internal/preview"
	"github.com/ayusman/airtune/internal/server"
	"github.com/ayusman/airtune/internal/store"
	"github.com/ayusman/airtune/internal/tray"
)

type flags struct {
	config    string
	camera    int
	mode      string
	headless  bool
	noPreview bool
	tray      bool
	listen    string
	midiOut   string
	listMIDI  bool
	record    bool
	logLevel  string
	dev       bool
}

func parseFlags() (*flags, map[string]bool) {
	f := &flags{}
	defaultPath, _ := config.DefaultPath()

	flag.StringVar(&f.config, "config", defaultPath, "path to the YAML config file")
	flag.IntVar(&f.camera, "camera", 0, "camera device id")
	flag.StringVar(&f.mode, "mode", "", "starting instrument: piano, synth or trumpet")
	flag.BoolVar(&f.headless, "headless", false, "no sound output; play calls are only logged")
	flag.BoolVar(&f.noPreview, "no-preview", false, "do not open the camera preview window")
	flag.BoolVar(&f.tray, "tray", false, "show the system tray menu")
	flag.StringVar(&f.listen, "listen", "", "serve the HTTP control surface on this address")
	flag.StringVar(&f.midiOut, "midi-out", "", "mirror notes to the MIDI output port with this name")
	flag.BoolVar(&f.listMIDI, "list-midi", false, "list MIDI output ports and exit")
	flag.BoolVar(&f.record, "record", false, "record the session as a take")
	flag.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flag.BoolVar(&f.dev, "dev", false, "human readable development logging")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

// applyFlags overrides file values with the flags given on the command line.
func applyFlags(cfg *config.Config, f *flags, set map[string]bool) error {
	if set["camera"] {
		cfg.Camera.DeviceID = f.camera
	}
	if set["mode"] {
		m, err := palette.ParseMode(f.mode)
		if err != nil {
			return err
		}
		cfg.Mode = m
	}
	if set["headless"] {
		cfg.Audio.Headless = f.headless
	}
	if set["no-preview"] {
		cfg.Preview.Enabled = !f.noPreview
	}
	if set["tray"] {
		cfg.Tray.Enabled = f.tray
	}
	if set["listen"] {
		cfg.Server.Enabled = f.listen != ""
		cfg.Server.Listen = f.listen
	}
	if set["midi-out"] {
		cfg.MIDI.Port = f.midiOut
	}
	if set["record"] {
		cfg.Record.Enabled = f.record
	}
	if set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
	if set["dev"] {
		cfg.Log.Development = f.dev
	}
	return cfg.Validate()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "airtune:", err)
		os.Exit(1)
	}
}

func run() error {
	f, set := parseFlags()

	if f.listMIDI {
		for _, p := range midi.Ports() {
			fmt.Println(p)
		}
		midi.CloseDriver()
		return nil
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, f, set); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Any asset failure is fatal before the loop starts.
	loader := audio.Loader{
		SampleRate:    cfg.Audio.SampleRate,
		ToneSeconds:   cfg.Audio.ToneSeconds,
		ToneAmplitude: cfg.Audio.ToneAmplitude,
	}
	registry, err := palette.NewRegistry(cfg.Palettes, loader)
	if err != nil {
		log.Error("loading sounds failed", zap.Error(err))
		return err
	}
	for _, name := range registry.SkippedChords() {
		log.Warn("chord uses notes outside the piano layout, skipped", zap.String("chord", name))
	}

	var mixer audio.Mixer
	if cfg.Audio.Headless {
		mixer = audio.NewMemoryMixer()
		log.Info("headless audio, notes are not played")
	} else {
		m, err := audio.NewOtoMixer(cfg.Audio.SampleRate)
		if err != nil {
			return fmt.Errorf("audio output: %w", err)
		}
		mixer = m
	}

	// Try MediaPipe first, fall back to mock detector
	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(cfg.Detector.Config); err == nil {
		det = mp
		log.Info("using MediaPipe hand detection")
	} else {
		log.Warn("MediaPipe not available, no hands will be detected", zap.Error(err))
		det = detector.NewMockDetector()
	}

	queue := input.NewQueue(16)
	sources := input.Multi{queue}

	term := input.NewTerminal(queue)
	if err := term.Start(); err != nil {
		log.Debug("keyboard input from terminal disabled", zap.Error(err))
	} else {
		defer term.Stop()
	}

	var display app.Display
	if cfg.Preview.Enabled && !cfg.Tray.Enabled {
		win := preview.New()
		defer win.Close()
		display = win
		sources = input.Multi{win, queue}
	}

	a := app.New(app.Config{
		Camera:   capture.NewCamera(cfg.Camera),
		Detector: det,
		Mixer:    mixer,
		Palettes: registry,
		Input:    sources,
		Display:  display,
		Engine:   engine.Config{Mode: cfg.Mode, ValveSide: cfg.Trumpet.ValveHand},
		Gesture:  gesture.Options{MinScore: cfg.Detector.MinScore},
		Motion:   cfg.Motion,
		Log:      log,
	})
	// Releases the mixer and detector when setup fails before Run.
	defer a.Close()

	// Sinks close in this order at shutdown: recorder, then MIDI.
	var st *store.Store
	if cfg.Record.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Record.Path), 0755); err != nil {
			return err
		}
		st, err = store.New(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("open take store: %w", err)
		}
		defer st.Close()

		rec, err := st.NewRecorder(cfg.Mode, log.Named("recorder"))
		if err != nil {
			return err
		}
		a.AddSink(rec)
	}

	if cfg.MIDI.Port != "" {
		out, err := midi.Open(cfg.MIDI, log.Named("midi"))
		if err != nil {
			log.Warn("MIDI output disabled", zap.String("port", cfg.MIDI.Port), zap.Error(err))
		} else {
			a.AddSink(out)
		}
		defer midi.CloseDriver()
	}

	if cfg.Server.Enabled {
		hub := server.NewHub(log.Named("hub"))
		a.AddSink(hub)

		srv := server.New(server.Config{
			State:    a,
			Commands: queue,
			Hub:      hub,
			Store:    st,
			MIDI:     cfg.MIDI,
			Log:      log.Named("http"),
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
				log.Error("http server stopped", zap.Error(err))
			}
		}()
	}

	if !cfg.Tray.Enabled {
		return a.Run(ctx)
	}
	return runWithTray(ctx, a, queue, log)
}

// runWithTray gives the main goroutine to the tray and runs the frame loop
// beside it. Whichever ends first ends the other.
func runWithTray(ctx context.Context, a *app.App, queue *input.Queue, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New(queue, log.Named("tray"))
	t.OnQuit(cancel)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		t.Quit()
	}()

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if snap := a.Snapshot(); snap != nil {
					t.SetState(snap.Mode, snap.Sounding)
				}
			}
		}
	}()

	t.Run()
	cancel()

	err := <-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
