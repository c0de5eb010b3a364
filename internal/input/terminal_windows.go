//go:build windows

package input

import (
	"errors"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when stdin is not an interactive terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Terminal is unavailable on Windows; use the preview window keys instead.
type Terminal struct {
	queue *Queue
}

// NewTerminal creates a reader feeding q.
func NewTerminal(q *Queue) *Terminal {
	return &Terminal{queue: q}
}

// Start always fails on Windows.
func (t *Terminal) Start() error {
	if !term.IsTerminal(0) {
		return ErrNotTerminal
	}
	return errors.New("raw key input is not supported on windows")
}

// Stop does nothing.
func (t *Terminal) Stop() {}
