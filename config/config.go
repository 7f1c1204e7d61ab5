// Package config loads the compositor's static configuration: which DRM
// device node to open, the optional per-connector mode override, present
// mode, and cursor defaults. It follows the teacher's Config/
// DefaultConfig/Configure shape rather than functional options, since
// every field here is a flat scalar with an obvious zero-value default.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PresentMode selects the frame scheduler's queueing discipline.
type PresentMode string

const (
	DoubleBuffered PresentMode = "double"
	TripleBuffered PresentMode = "triple"
)

// Config is the compositor's static configuration.
type Config struct {
	// DevicePath is the DRM primary device node to open, e.g.
	// "/dev/dri/card0".
	DevicePath string `yaml:"device_path"`

	// VideoMode is an optional "WxH@Hz"/"WxH" override string, as
	// accepted by kms.SelectMode. Empty means no override.
	VideoMode string `yaml:"video_mode"`

	// Present selects double- or triple-buffered vsync pacing.
	Present PresentMode `yaml:"present"`

	// CursorEnabled controls whether the hardware cursor plane is used
	// at all.
	CursorEnabled bool `yaml:"cursor_enabled"`

	// PlaneBudgetLog, when true, logs a warning whenever a commit falls
	// back to the other plane type because the preferred one was
	// exhausted.
	PlaneBudgetLog bool `yaml:"plane_budget_log"`
}

// DefaultConfig returns the configuration used when no file is loaded.
func DefaultConfig() Config {
	return Config{
		DevicePath:     "/dev/dri/card0",
		Present:        DoubleBuffered,
		CursorEnabled:  true,
		PlaneBudgetLog: true,
	}
}

// Configure applies fn to a copy of DefaultConfig and returns the
// result, mirroring the teacher's engine.Configure helper.
func Configure(fn func(*Config)) Config {
	c := DefaultConfig()
	if fn != nil {
		fn(&c)
	}
	return c
}

// Load reads a YAML configuration file, applying its fields on top of
// DefaultConfig so a partial file is valid.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.Present != DoubleBuffered && c.Present != TripleBuffered {
		return Config{}, fmt.Errorf("config: %s: invalid present mode %q", path, c.Present)
	}
	return c, nil
}
