package config

import (
	"fmt"
	"log/slog"
	"os"

	"lautenbacher.net/ledfx/board"
)

// RuntimeConfig is the part of the configuration that can be changed
// from the running UI. Generator credentials and logging stay untouched.
type RuntimeConfig struct {
	Prompt string            `yaml:"Prompt" toml:"Prompt"`
	Pins   []board.PinConfig `yaml:"Pins" toml:"Pins"`
}

// SaveRuntime merges rc into the configuration stored in cfile,
// validates the result and writes it back, which in turn triggers a
// reload through the watcher.
func SaveRuntime(cfile string, rc RuntimeConfig) error {
	data, err := os.ReadFile(cfile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("can't read config file %s: %w", cfile, err)
	}
	full, err := decode(cfile, data)
	if err != nil {
		return err
	}

	full.Prompt = rc.Prompt
	full.Pins = rc.Pins
	if err := full.Validate(); err != nil {
		return err
	}

	out, err := full.Encode(cfile)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfile, out, 0o644); err != nil {
		return fmt.Errorf("can't write config file %s: %w", cfile, err)
	}
	slog.Info("Saved board to config file", "file", cfile, "pins", len(rc.Pins))
	return nil
}
