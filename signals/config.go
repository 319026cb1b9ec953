package signals

import (
	"golang.org/x/image/colornames"

	"github.com/scheerer/dasq-signals/internal/palette"
)

const (
	DefaultBackendURL = "http://localhost:27301/"
	DefaultPID        = "DK5QPID"
	DefaultZone       = "KEY_Q"
	DefaultClientName = "Go Client"

	// SignalsEndpoint is resolved against the backend URL, replacing any path it carries.
	SignalsEndpoint = "/api/1.0/signals"
)

// Effects understood by the Q desktop service.
const (
	EffectSetColor   = "SET_COLOR"
	EffectBlink      = "BLINK"
	EffectBreathe    = "BREATHE"
	EffectColorCycle = "COLOR_CYCLE"
)

var DefaultColor = palette.Hex(colornames.Aliceblue)

// Config seeds new signals. The yaml tags allow loading it from a profile file.
type Config struct {
	BackendURL string   `yaml:"backend_url"`
	Zones      []string `yaml:"zones"`
	Color      string   `yaml:"color"`
	Effect     string   `yaml:"effect"`
	PID        string   `yaml:"pid"`
	ClientName string   `yaml:"client_name"`
	Message    string   `yaml:"message"`
	Name       string   `yaml:"name"`
}

func DefaultConfig() Config {
	return Config{
		BackendURL: DefaultBackendURL,
		Zones:      []string{DefaultZone},
		Color:      DefaultColor,
		Effect:     EffectSetColor,
		PID:        DefaultPID,
		ClientName: DefaultClientName,
	}
}

// KeyZone returns the zone identifier of the key labelled r, e.g. KEY_A.
// No check is made that such a key exists.
func KeyZone(r rune) string {
	return "KEY_" + string(r)
}
