package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"lautenbacher.net/ledfx/board"
)

const CONFILE = "config.yml"

const (
	MaxHistoryLength = 1024
	MaxTemperature   = 2.0
)

var ErrInvalidConfig = errors.New("invalid configuration")

type GeneratorCfg struct {
	Model       string        `yaml:"Model" toml:"Model"`
	APIKey      string        `yaml:"APIKey,omitempty" toml:"APIKey,omitempty"`
	Endpoint    string        `yaml:"Endpoint,omitempty" toml:"Endpoint,omitempty"`
	Timeout     time.Duration `yaml:"Timeout" toml:"Timeout"`
	Temperature float32       `yaml:"Temperature" toml:"Temperature"`
	TargetBoard string        `yaml:"TargetBoard" toml:"TargetBoard"`
}

type PlaybackCfg struct {
	MinFrameDelay time.Duration `yaml:"MinFrameDelay" toml:"MinFrameDelay"`
	AutoPlay      bool          `yaml:"AutoPlay" toml:"AutoPlay"`
	HistoryLength int           `yaml:"HistoryLength" toml:"HistoryLength"`
}

type LoggingCfg struct {
	Level  string `yaml:"Level" toml:"Level"`
	Format string `yaml:"Format" toml:"Format"`
	File   string `yaml:"File" toml:"File"`
}

type Config struct {
	Generator GeneratorCfg      `yaml:"Generator" toml:"Generator"`
	Playback  PlaybackCfg       `yaml:"Playback" toml:"Playback"`
	Prompt    string            `yaml:"Prompt" toml:"Prompt"`
	Pins      []board.PinConfig `yaml:"Pins" toml:"Pins"`
	Logging   LoggingCfg        `yaml:"Logging" toml:"Logging"`
}

// Default is used for everything a config file leaves out.
func Default() Config {
	return Config{
		Generator: GeneratorCfg{
			Model:       "gemini-2.5-flash",
			Timeout:     60 * time.Second,
			TargetBoard: "Arduino Uno R3",
		},
		Playback: PlaybackCfg{
			MinFrameDelay: 10 * time.Millisecond,
			AutoPlay:      true,
			HistoryLength: 48,
		},
		Prompt: "Cycle through cool LED patterns when the button is pressed.",
		Pins:   board.DefaultPins(),
		Logging: LoggingCfg{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// IsToml reports whether cfile is read and written as TOML instead of
// YAML.
func IsToml(cfile string) bool {
	return strings.EqualFold(filepath.Ext(cfile), ".toml")
}

// ReadConfig loads and validates cfile on top of the defaults.
func ReadConfig(cfile string) (Config, error) {
	data, err := os.ReadFile(cfile)
	if err != nil {
		return Config{}, fmt.Errorf("can't read config file %s: %w", cfile, err)
	}
	conf, err := decode(cfile, data)
	if err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", cfile, err)
	}
	return conf, nil
}

func decode(cfile string, data []byte) (Config, error) {
	conf := Default()
	// decoders may reuse the backing array of a non-empty slice
	conf.Pins = nil
	if IsToml(cfile) {
		if _, err := toml.Decode(string(data), &conf); err != nil {
			return Config{}, fmt.Errorf("can't decode config file %s: %w", cfile, err)
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &conf); err != nil {
			return Config{}, fmt.Errorf("can't decode config file %s: %w", cfile, err)
		}
	}
	if conf.Pins == nil {
		conf.Pins = board.DefaultPins()
	}
	for i := range conf.Pins {
		// accept "led" or "Button" in the file
		if t, err := board.ParsePinType(string(conf.Pins[i].Type)); err == nil {
			conf.Pins[i].Type = t
		}
	}
	return conf, nil
}

// Encode renders the configuration in the format chosen by the file
// name.
func (c Config) Encode(cfile string) ([]byte, error) {
	var buf bytes.Buffer
	if IsToml(cfile) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return buf.Bytes(), nil
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate returns the first problem found, prefixed with the path of
// the offending field.
func (c Config) Validate() error {
	if c.Generator.Timeout < 0 {
		return fmt.Errorf("%w: Generator.Timeout must not be negative", ErrInvalidConfig)
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > MaxTemperature {
		return fmt.Errorf("%w: Generator.Temperature %.2f must be between 0 and %.0f",
			ErrInvalidConfig, c.Generator.Temperature, MaxTemperature)
	}
	if c.Playback.MinFrameDelay < 0 {
		return fmt.Errorf("%w: Playback.MinFrameDelay must not be negative", ErrInvalidConfig)
	}
	if c.Playback.HistoryLength < 0 || c.Playback.HistoryLength > MaxHistoryLength {
		return fmt.Errorf("%w: Playback.HistoryLength %d must be between 0 and %d",
			ErrInvalidConfig, c.Playback.HistoryLength, MaxHistoryLength)
	}

	if len(c.Pins) == 0 || len(c.Pins) > board.MaxComponents {
		return fmt.Errorf("%w: Pins must list between 1 and %d components, got %d",
			ErrInvalidConfig, board.MaxComponents, len(c.Pins))
	}
	for i, p := range c.Pins {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: Pins[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	if dups := board.Duplicates(c.Pins); len(dups) > 0 {
		return fmt.Errorf("%w: Pins: pin numbers %v are used more than once", ErrInvalidConfig, dups)
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%w: Logging.Level %q must be one of DEBUG, INFO, WARN, ERROR",
			ErrInvalidConfig, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: Logging.Format %q must be text or json", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}
