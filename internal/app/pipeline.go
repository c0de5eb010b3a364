package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/airtune/internal/detector"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/input"
)

// Run opens the camera and processes frames until ctx is cancelled, a Quit
// command arrives or the camera stops delivering frames. Every exit runs the
// same shutdown path. Only a camera that cannot be opened is an error.
//
// Per frame:
//  1. Read a mirrored frame
//  2. Detect hands, or reuse the previous result when the motion gate sees
//     a still frame
//  3. Poll one command and apply it
//  4. Analyze the landmarks and update the active engine
//  5. Publish a snapshot and draw the frame
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	w, h := a.camera.Size()
	a.log.Info("frame loop started",
		zap.Stringer("mode", a.controller.Mode()),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("fps", a.camera.FPS()),
	)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("frame loop cancelled")
			return nil
		default:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			a.log.Error("capture failed", zap.Error(err))
			return nil
		}

		quit := a.step(frame)
		frame.Close()
		if quit {
			a.log.Info("quit requested")
			return nil
		}
	}
}

// step runs one frame through the pipeline and reports whether to quit.
func (a *App) step(frame *gocv.Mat) bool {
	hands := a.detect(frame)
	quit := a.ProcessFrame(hands, a.input.Poll())

	if a.config.Display != nil && !quit {
		a.config.Display.Show(frame, a.Snapshot())
	}
	return quit
}

func (a *App) detect(frame *gocv.Mat) []detector.HandLandmarks {
	if a.motion != nil {
		if moved, _ := a.motion.Moved(frame); !moved {
			return a.lastHands
		}
	}

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.log.Warn("hand detection failed", zap.Error(err))
		hands = nil
	}
	a.lastHands = hands
	return hands
}

// ProcessFrame applies cmd, then feeds the hands seen in one frame to the
// active engine. It reports whether the loop should stop. A mode switch
// stops every sounding note before the new engine sees the frame.
func (a *App) ProcessFrame(hands []detector.HandLandmarks, cmd input.Command) bool {
	if cmd == input.Quit {
		return true
	}
	if mode, ok := cmd.Mode(); ok {
		a.controller.Switch(mode)
	}

	f := gesture.Analyze(hands, a.config.Gesture)
	if f.Degraded {
		a.log.Debug("handedness unavailable, using detection order", zap.Int("hands", len(hands)))
	}

	a.controller.Update(f)
	a.frames++
	a.publishSnapshot(f)
	return false
}
