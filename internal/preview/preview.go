// Package preview shows the mirrored camera frame with the playing state
// drawn on top.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/airtune/internal/app"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/input"
	"github.com/ayusman/airtune/internal/palette"
)

// Title is the window title.
const Title = "AirTune"

var (
	tipColor    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor   = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	breathOn    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	breathOff   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	valveOpen   = color.RGBA{R: 200, G: 200, B: 200, A: 0}
	valveClosed = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Window is a gocv preview window. It must be used from the goroutine that
// created it.
type Window struct {
	win *gocv.Window
}

// New opens the preview window.
func New() *Window {
	return &Window{win: gocv.NewWindow(Title)}
}

// Show draws snap onto frame and displays it.
func (w *Window) Show(frame *gocv.Mat, snap *app.Snapshot) {
	if frame == nil || frame.Empty() || snap == nil {
		return
	}
	Draw(frame, snap)
	w.win.IMShow(*frame)
}

// Poll pumps window events and maps the pressed key, if any, to a command.
func (w *Window) Poll() input.Command {
	return input.KeyCommand(w.win.WaitKey(1))
}

// Close destroys the window.
func (w *Window) Close() error {
	w.win.Close()
	return nil
}

// Draw renders fingertip dots for every finger that is down and the status
// line. In Trumpet mode it also draws the breath state and three valve
// indicators.
func Draw(frame *gocv.Mat, snap *app.Snapshot) {
	width, height := frame.Cols(), frame.Rows()

	for i := 0; i < gesture.NumSlots; i++ {
		if !snap.Frame.Down[i] {
			continue
		}
		x, y := snap.Frame.Tips[i].Pixel(width, height)
		gocv.Circle(frame, image.Pt(x, y), 10, tipColor, -1)
	}

	gocv.PutText(frame, StatusLine(snap), image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, textColor, 2)

	if snap.Mode != palette.Trumpet {
		return
	}

	breath, c := "NO BREATH", breathOff
	if snap.Breath {
		breath, c = "BLOWING", breathOn
	}
	gocv.PutText(frame, "BREATH: "+breath, image.Pt(10, 65), gocv.FontHersheySimplex, 0.7, c, 2)

	code := snap.Valves.String()
	for i := 0; i < 3; i++ {
		c := valveOpen
		if code[i] == '1' {
			c = valveClosed
		}
		center := image.Pt(width-130+i*40, 40)
		gocv.Circle(frame, center, 15, c, -1)
	}
}

// StatusLine formats the mode, the sounding notes and the detected chord.
func StatusLine(snap *app.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MODE: %s", strings.ToUpper(snap.Mode.String()))

	if len(snap.Sounding) > 0 {
		names := make([]string, len(snap.Sounding))
		for i, n := range snap.Sounding {
			names[i] = n.Pitch
		}
		b.WriteString("  NOTES: " + strings.Join(names, " "))
	}
	if snap.Chord != "" {
		b.WriteString("  CHORD: " + snap.Chord)
	}
	if snap.Hands == 0 {
		b.WriteString("  (no hands)")
	}
	return b.String()
}
