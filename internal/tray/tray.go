// Package tray provides the system tray menu for switching instruments.
package tray

import (
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/input"
	"github.com/ayusman/airtune/internal/palette"
)

// Tray represents the system tray application. Menu clicks become commands
// on the queue; the frame loop applies them.
type Tray struct {
	queue  *input.Queue
	onQuit func()
	log    *zap.Logger
	mode   palette.Mode
	notes  string
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuModes  map[palette.Mode]*systray.MenuItem
	menuStatus *systray.MenuItem
	ready      bool
}

// New creates a Tray that sends commands to queue.
func New(queue *input.Queue, log *zap.Logger) *Tray {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tray{
		queue:     queue,
		log:       log,
		menuModes: make(map[palette.Mode]*systray.MenuItem),
	}
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called and must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("AirTune")
	systray.SetTooltip("AirTune hand instrument")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusTitle(t.mode, t.notes), "Current instrument")
	t.menuStatus.Disable()
	systray.AddSeparator()

	for _, m := range palette.Modes {
		item := systray.AddMenuItemCheckbox(modeTitle(m), "Switch to "+m.String(), m == t.mode)
		t.menuModes[m] = item
		go t.watch(item, input.ForMode(m))
	}
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit AirTune")
	t.ready = true
	t.mu.Unlock()

	go func() {
		<-menuQuit.ClickedCh
		t.handleQuit()
	}()
}

func (t *Tray) watch(item *systray.MenuItem, cmd input.Command) {
	for range item.ClickedCh {
		t.send(cmd)
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func (t *Tray) send(cmd input.Command) {
	if !t.queue.Send(cmd) {
		t.log.Warn("command dropped, queue full", zap.Stringer("command", cmd))
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.send(input.Quit)

	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetState updates the checked mode and the status line. Unchanged state
// does not touch the menu.
func (t *Tray) SetState(mode palette.Mode, sounding []palette.Note) {
	pitches := make([]string, len(sounding))
	for i, n := range sounding {
		pitches[i] = n.Pitch
	}
	notes := strings.Join(pitches, " ")

	t.mu.Lock()
	defer t.mu.Unlock()

	if mode == t.mode && notes == t.notes {
		return
	}
	t.mode = mode
	t.notes = notes

	if !t.ready {
		return
	}
	t.menuStatus.SetTitle(statusTitle(mode, notes))
	for m, item := range t.menuModes {
		if m == mode {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

// Mode returns the mode last passed to SetState.
func (t *Tray) Mode() palette.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

func modeTitle(m palette.Mode) string {
	s := m.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

func statusTitle(m palette.Mode, notes string) string {
	if notes == "" {
		return "Playing: " + modeTitle(m)
	}
	return "Playing: " + modeTitle(m) + " (" + notes + ")"
}
