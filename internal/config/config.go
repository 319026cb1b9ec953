package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"github.com/scheerer/dasq-signals/internal/palette"
	"github.com/scheerer/dasq-signals/internal/screen"
	"github.com/scheerer/dasq-signals/signals"
)

// AmbientConfig configures the ambient binary. Signal fields left empty keep
// the value from the signal profile, or the library default.
type AmbientConfig struct {
	CaptureInterval time.Duration `env:"CAPTURE_INTERVAL" envDefault:"250ms"`
	ColorAlgo       string        `env:"COLOR_ALGO" envDefault:"AVERAGE"`
	PixelGridSize   int           `env:"PIXEL_GRID_SIZE" envDefault:"5"`
	ScreenNumber    int           `env:"SCREEN_NUMBER" envDefault:"0"`

	SignalProfile string   `env:"SIGNAL_PROFILE"`
	BackendURL    string   `env:"DASQ_BACKEND_URL"`
	PID           string   `env:"DASQ_PID"`
	ClientName    string   `env:"DASQ_CLIENT_NAME" envDefault:"Ambient Screen Colors"`
	Effect        string   `env:"DASQ_EFFECT"`
	Zones         []string `env:"DASQ_ZONES" envSeparator:","`
}

func Load() (AmbientConfig, error) {
	var cfg AmbientConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c AmbientConfig) Validate() error {
	if c.CaptureInterval <= 0 {
		return errors.New("CAPTURE_INTERVAL must be positive")
	}
	if c.PixelGridSize < 1 {
		return errors.New("PIXEL_GRID_SIZE must be at least 1")
	}
	if c.ScreenNumber < 0 {
		return errors.New("SCREEN_NUMBER must not be negative")
	}
	if _, err := screen.ParseAlgorithm(c.ColorAlgo); err != nil {
		return err
	}
	return nil
}

// SignalConfig layers the signal profile and then the environment over the
// library defaults.
func (c AmbientConfig) SignalConfig() (signals.Config, error) {
	cfg := signals.DefaultConfig()
	if c.SignalProfile != "" {
		var err error
		if cfg, err = LoadProfile(c.SignalProfile, cfg); err != nil {
			return cfg, err
		}
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.BackendURL, c.BackendURL)
	override(&cfg.PID, c.PID)
	override(&cfg.ClientName, c.ClientName)
	override(&cfg.Effect, c.Effect)
	if len(c.Zones) > 0 {
		cfg.Zones = c.Zones
	}
	return cfg, nil
}

// LoadProfile reads a yaml signal profile on top of base. Keys missing from
// the file keep base's value. Colours may be given by name.
func LoadProfile(path string, base signals.Config) (signals.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading signal profile: %w", err)
	}
	return ParseProfile(data, base)
}

func ParseProfile(data []byte, base signals.Config) (signals.Config, error) {
	cfg := base
	cfg.Zones = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parsing signal profile: %w", err)
	}
	if cfg.Zones == nil {
		cfg.Zones = append([]string(nil), base.Zones...)
	}

	if cfg.Color != base.Color {
		hex, err := palette.Parse(cfg.Color)
		if err != nil {
			return base, fmt.Errorf("signal profile color: %w", err)
		}
		cfg.Color = hex
	}
	return cfg, nil
}
