package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var leveler = &levelRegistry{
	levels: make(map[string]zap.AtomicLevel),
}

// Leveler adjusts the level of named loggers at runtime. Loggers created
// before and after a SetLevel call observe the same level.
type Leveler interface {
	SetLevel(name string, level zapcore.Level)
	GetLevel(name string) zapcore.Level
	SetAll(level zapcore.Level)
}

type levelRegistry struct {
	mu     sync.RWMutex
	levels map[string]zap.AtomicLevel
}

var _ Leveler = (*levelRegistry)(nil)

func GetLeveler() Leveler {
	return leveler
}

func (r *levelRegistry) SetLevel(name string, level zapcore.Level) {
	r.level(name, level).SetLevel(level)
}

func (r *levelRegistry) GetLevel(name string) zapcore.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.levels[name]; ok {
		return l.Level()
	}
	return zap.InfoLevel
}

func (r *levelRegistry) SetAll(level zapcore.Level) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.levels {
		l.SetLevel(level)
	}
}

// level returns the atomic level registered for name, creating it at def
// when the name is new. An existing level is left untouched.
func (r *levelRegistry) level(name string, def zapcore.Level) zap.AtomicLevel {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.levels[name]
	if !ok {
		l = zap.NewAtomicLevelAt(def)
		r.levels[name] = l
	}
	return l
}

// newConfig is the production preset switched to console output, with
// RFC 3339 timestamps and human readable durations.
func newConfig(level zap.AtomicLevel) zap.Config {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	return zap.Config{
		Level:            level,
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// New returns a named console logger writing to stdout.
func New(name string) *zap.SugaredLogger {
	c := newConfig(leveler.level(name, zap.InfoLevel))
	return zap.Must(c.Build(zap.AddStacktrace(zapcore.PanicLevel))).Named(name).Sugar()
}
