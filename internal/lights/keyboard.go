package lights

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/dasq-signals/internal/palette"
	"github.com/scheerer/dasq-signals/signals"
)

// Keyboard drives a fixed set of keyboard zones through the Q signal service.
// It keeps one signal for all zones and only republishes it when the colour
// changes.
type Keyboard struct {
	session *signals.Session
	zones   []string

	mu      sync.Mutex
	signal  *signals.Signal
	lastHex string
}

var _ LightService = (*Keyboard)(nil)

// NewKeyboard targets cfg.Zones. Every zone is cleared again on Stop.
func NewKeyboard(cfg signals.Config, client *signals.Client) *Keyboard {
	session := signals.NewSession(
		signals.WithConfig(cfg),
		signals.WithClient(client),
		signals.DeleteOnExit(true),
	)
	return &Keyboard{
		session: session,
		zones:   append([]string(nil), cfg.Zones...),
		signal:  session.Signal().ForZones(cfg.Zones...),
	}
}

func (k *Keyboard) LightCount() int {
	return len(k.zones)
}

// SetColorWithDuration publishes color on every zone. The Q service has no
// transitions, so duration is ignored.
func (k *Keyboard) SetColorWithDuration(ctx context.Context, color Color, duration time.Duration) error {
	hex := palette.Hex(color)

	k.mu.Lock()
	defer k.mu.Unlock()

	if hex == k.lastHex {
		return nil
	}

	logger.With(zap.String("color", hex), zap.Strings("zones", k.zones)).Debug("Setting keyboard color")

	if _, err := k.signal.WithColor(hex).Finalize(ctx); err != nil {
		// retry on the next tick
		k.lastHex = ""
		return err
	}
	k.lastHex = hex
	return nil
}

// Stop deletes the keyboard's signals.
func (k *Keyboard) Stop(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.lastHex = ""
	return k.session.Close(ctx)
}
