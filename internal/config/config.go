// Package config loads and saves the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/airtune/internal/capture"
	"github.com/ayusman/airtune/internal/detector"
	"github.com/ayusman/airtune/internal/gesture"
	"github.com/ayusman/airtune/internal/midi"
	"github.com/ayusman/airtune/internal/palette"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// DetectorConfig extends the detector settings with the per-hand score
// filter applied before gesture analysis.
type DetectorConfig struct {
	detector.Config `yaml:",inline"`
	MinScore        float64 `yaml:"min_score"`
}

// AudioConfig describes the output format and synthesized tones.
type AudioConfig struct {
	SampleRate    int     `yaml:"sample_rate"`
	ToneSeconds   float64 `yaml:"tone_seconds"`
	ToneAmplitude float64 `yaml:"tone_amplitude"`
	// Headless records play/stop calls instead of producing sound.
	Headless bool `yaml:"headless"`
}

// TrumpetConfig places the trumpet on the hands.
type TrumpetConfig struct {
	ValveHand gesture.Side `yaml:"valve_hand"`
}

// ServerConfig configures the local HTTP control surface.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// RecordConfig configures the take recorder.
type RecordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PreviewConfig configures the camera preview window.
type PreviewConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TrayConfig configures the system tray menu.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the whole configuration file.
type Config struct {
	Mode     palette.Mode         `yaml:"mode"`
	Camera   capture.Config       `yaml:"camera"`
	Detector DetectorConfig       `yaml:"detector"`
	Motion   capture.MotionConfig `yaml:"motion"`
	Audio    AudioConfig          `yaml:"audio"`
	Palettes palette.Config       `yaml:"palettes"`
	Trumpet  TrumpetConfig        `yaml:"trumpet"`
	MIDI     midi.Config          `yaml:"midi"`
	Server   ServerConfig         `yaml:"server"`
	Record   RecordConfig         `yaml:"record"`
	Preview  PreviewConfig        `yaml:"preview"`
	Tray     TrayConfig           `yaml:"tray"`
	Log      LogConfig            `yaml:"log"`
}

// Dir returns the per-user data directory, ~/.airtune.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".airtune"), nil
}

// DefaultPath returns ~/.airtune/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	recordPath := "airtune.db"
	if dir, err := Dir(); err == nil {
		recordPath = filepath.Join(dir, "takes.db")
	}

	return &Config{
		Mode:     palette.Piano,
		Camera:   capture.DefaultConfig(),
		Detector: DetectorConfig{Config: detector.DefaultConfig(), MinScore: 0.5},
		Motion:   capture.DefaultMotionConfig(),
		Audio: AudioConfig{
			SampleRate:    44100,
			ToneSeconds:   2,
			ToneAmplitude: 0.3,
		},
		Palettes: palette.DefaultConfig(),
		Trumpet:  TrumpetConfig{ValveHand: gesture.Right},
		MIDI:     midi.DefaultConfig(),
		Server:   ServerConfig{Enabled: false, Listen: "127.0.0.1:8765"},
		Record:   RecordConfig{Enabled: false, Path: recordPath},
		Preview:  PreviewConfig{Enabled: true},
		Tray:     TrayConfig{Enabled: false},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the file at path on top of the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// yaml.v3 merges into a non-nil map, so a partial valve table would keep
	// the default entries. The defaults apply only when the file has none.
	defaultValves := cfg.Palettes.Trumpet.Valves
	cfg.Palettes.Trumpet.Valves = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Palettes.Trumpet.Valves == nil {
		cfg.Palettes.Trumpet.Valves = defaultValves
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges that would otherwise fail deep inside a component.
// Palette contents are checked when the registry loads.
func (c *Config) Validate() error {
	switch {
	case !c.Mode.Valid():
		return fmt.Errorf("%w: mode %d", ErrInvalid, int(c.Mode))
	case c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000:
		return fmt.Errorf("%w: sample_rate %d", ErrInvalid, c.Audio.SampleRate)
	case c.Audio.ToneSeconds <= 0:
		return fmt.Errorf("%w: tone_seconds must be positive", ErrInvalid)
	case c.Audio.ToneAmplitude <= 0 || c.Audio.ToneAmplitude > 1:
		return fmt.Errorf("%w: tone_amplitude must be in (0, 1]", ErrInvalid)
	case c.Detector.MaxHands < 1 || c.Detector.MaxHands > gesture.NumSides:
		return fmt.Errorf("%w: max_hands must be 1 or 2", ErrInvalid)
	case c.Detector.MinScore < 0 || c.Detector.MinScore > 1:
		return fmt.Errorf("%w: min_score must be in [0, 1]", ErrInvalid)
	case c.Trumpet.ValveHand != gesture.Left && c.Trumpet.ValveHand != gesture.Right:
		return fmt.Errorf("%w: valve_hand", ErrInvalid)
	case c.Server.Enabled && c.Server.Listen == "":
		return fmt.Errorf("%w: server.listen is empty", ErrInvalid)
	case c.Record.Enabled && c.Record.Path == "":
		return fmt.Errorf("%w: record.path is empty", ErrInvalid)
	}

	for _, ch := range c.MIDI.Channels {
		if ch > 15 {
			return fmt.Errorf("%w: midi channel %d", ErrInvalid, ch)
		}
	}
	return nil
}
