package lights

import (
	"context"
	"time"

	"github.com/scheerer/dasq-signals/internal/logging"
)

var logger = logging.New("lights")

type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// RGBA makes Color an opaque color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.Red)
	r |= r << 8
	g = uint32(c.Green)
	g |= g << 8
	b = uint32(c.Blue)
	b |= b << 8
	return r, g, b, 0xFFFF
}

type LightService interface {
	LightCount() int
	SetColorWithDuration(ctx context.Context, color Color, duration time.Duration) error
	Stop(ctx context.Context) error
}
