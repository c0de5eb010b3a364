//go:build !headless

package midi

import (
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"
)

// Open connects to the output port whose name contains config.Port.
func Open(config Config, log *zap.Logger) (*Output, error) {
	port, err := findOut(config.Port)
	if err != nil {
		return nil, err
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}

	if log != nil {
		log.Info("midi output connected", zap.String("port", port.String()))
	}
	return NewOutput(send, port.Close, config, log), nil
}

// Ports lists output port names.
func Ports() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

func findOut(name string) (drivers.Out, error) {
	if out, err := gomidi.FindOutPort(name); err == nil {
		return out, nil
	}
	for _, p := range gomidi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

// CloseDriver shuts down the MIDI driver.
func CloseDriver() {
	gomidi.CloseDriver()
}
