//go:build headless

package midi

import (
	"errors"

	"go.uber.org/zap"
)

// ErrNoMIDIDriver is returned by Open in headless builds.
var ErrNoMIDIDriver = errors.New("midi driver not available in headless build")

// Open always fails in headless builds.
func Open(config Config, log *zap.Logger) (*Output, error) {
	return nil, ErrNoMIDIDriver
}

// Ports returns nothing in headless builds.
func Ports() []string { return nil }

// CloseDriver does nothing in headless builds.
func CloseDriver() {}
