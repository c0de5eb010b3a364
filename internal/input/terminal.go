//go:build !windows

package input

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when stdin is not an interactive terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Terminal reads single key presses from a raw-mode stdin and forwards the
// resulting commands to a Queue.
type Terminal struct {
	queue   *Queue
	fd      int
	state   *term.State
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// NewTerminal creates a reader feeding q. Nothing happens until Start.
func NewTerminal(q *Queue) *Terminal {
	return &Terminal{
		queue:  q,
		fd:     int(os.Stdin.Fd()),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start switches stdin to raw non-blocking mode and begins reading.
func (t *Terminal) Start() error {
	if !term.IsTerminal(t.fd) {
		close(t.done)
		return ErrNotTerminal
	}

	state, err := term.MakeRaw(t.fd)
	if err != nil {
		close(t.done)
		return fmt.Errorf("raw mode: %w", err)
	}
	t.state = state

	if err := syscall.SetNonblock(t.fd, true); err != nil {
		_ = term.Restore(t.fd, t.state)
		t.state = nil
		close(t.done)
		return fmt.Errorf("nonblocking stdin: %w", err)
	}

	go t.run()
	return nil
}

func (t *Terminal) run() {
	defer close(t.done)
	buf := make([]byte, 1)

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		n, err := syscall.Read(t.fd, buf)
		if n > 0 {
			t.queue.Send(KeyCommand(int(buf[0])))
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || (err == nil && n == 0) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
	}
}

// Stop ends reading and restores the terminal. Safe to call more than once.
func (t *Terminal) Stop() {
	t.stopped.Do(func() {
		close(t.stopCh)
	})
	<-t.done
	if t.state != nil {
		_ = syscall.SetNonblock(t.fd, false)
		_ = term.Restore(t.fd, t.state)
		t.state = nil
	}
}
