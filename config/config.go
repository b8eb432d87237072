package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go-midiclock/pll"
)

// PortKind selects how a named port is opened
type PortKind string

const (
	PortSerial PortKind = "serial" // UART / USB serial at 31250 baud
	PortHost   PortKind = "host"   // OS MIDI port through rtmidi
	PortLoop   PortKind = "loop"   // in-memory loopback
)

// SerialConfig names the MIDI port the engine talks to
type SerialConfig struct {
	Port string   `json:"port,omitempty"`
	Kind PortKind `json:"kind,omitempty"`
	Baud int      `json:"baud"`
}

// EncoderConfig controls transmit running status
type EncoderConfig struct {
	RunningStatus bool `json:"runningStatus"`
	RepeatLimit   int  `json:"repeatLimit"`
	TimeoutMs     int  `json:"timeoutMs"`
}

// QueueConfig sizes the bounded queues between goroutines
type QueueConfig struct {
	RxDepth   int `json:"rxDepth"`
	LineDepth int `json:"lineDepth"`
}

// ClockConfig configures measurement and generation
type ClockConfig struct {
	BlockAverageSize int    `json:"blockAverageSize"`
	FrequencyHz      uint32 `json:"frequencyHz"`
	InitialSBPM      uint16 `json:"initialSbpm"`
	// FollowClock drives the generator from the PLL while no heart rate is
	// connected
	FollowClock bool `json:"followClock"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette     string `json:"palette,omitempty"` // GPL palette file
	MaxLines    int    `json:"maxLines"`
	ChartPoints int    `json:"chartPoints"`
	LastSBPM    uint16 `json:"lastSbpm,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Serial   SerialConfig  `json:"serial"`
	Encoder  EncoderConfig `json:"encoder"`
	Queue    QueueConfig   `json:"queue"`
	Clock    ClockConfig   `json:"clock"`
	PLL      pll.Config    `json:"pll"`
	UI       UIConfig      `json:"ui"`
	LogLevel string        `json:"logLevel,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Kind: PortSerial,
			Baud: 31250,
		},
		Encoder: EncoderConfig{
			RunningStatus: true,
			RepeatLimit:   16,
			TimeoutMs:     300,
		},
		Queue: QueueConfig{
			RxDepth:   32,
			LineDepth: 32,
		},
		Clock: ClockConfig{
			BlockAverageSize: 48,
			FrequencyHz:      48_000_000,
			InitialSBPM:      12000,
			FollowClock:      true,
		},
		PLL: pll.DefaultConfig(),
		UI: UIConfig{
			MaxLines:    8,
			ChartPoints: 100,
		},
		LogLevel: "debug",
	}
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	switch c.Serial.Kind {
	case "", PortSerial, PortHost, PortLoop:
	default:
		return errors.Errorf("config: unknown port kind %q", c.Serial.Kind)
	}
	if c.Serial.Kind == PortSerial && c.Serial.Baud <= 0 {
		return errors.Errorf("config: serial baud %d", c.Serial.Baud)
	}
	if c.Encoder.RepeatLimit <= 0 {
		return errors.Errorf("config: encoder repeatLimit %d", c.Encoder.RepeatLimit)
	}
	if c.Encoder.TimeoutMs < 0 {
		return errors.Errorf("config: encoder timeoutMs %d", c.Encoder.TimeoutMs)
	}
	if c.Queue.RxDepth <= 0 || c.Queue.LineDepth <= 0 {
		return errors.Errorf("config: queue depths %d/%d", c.Queue.RxDepth, c.Queue.LineDepth)
	}
	if c.Clock.BlockAverageSize <= 0 {
		return errors.Errorf("config: clock blockAverageSize %d", c.Clock.BlockAverageSize)
	}
	if c.Clock.FrequencyHz == 0 {
		return errors.New("config: clock frequencyHz is zero")
	}
	if c.PLL.K <= 0 || c.PLL.Gain <= 0 || c.PLL.TrackingGain <= 0 {
		return errors.Errorf("config: pll divisors %d/%d/%d", c.PLL.K, c.PLL.Gain, c.PLL.TrackingGain)
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midiclock"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads path over the defaults, so missing keys keep their default
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "config: read")
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes indented JSON to path, creating the directory
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "config: mkdir")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "config: encode")
	}

	return errors.Wrap(os.WriteFile(path, data, 0644), "config: write")
}
