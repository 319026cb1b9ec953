package signals

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Session hands out signals sharing one Config and, optionally, deletes them
// all when it is closed.
//
//	s := signals.NewSession(signals.DeleteOnExit(true))
//	defer s.Close(ctx)
//	s.Signal().ForZone("KEY_A").Finalize(ctx)
type Session struct {
	config       Config
	client       *Client
	hook         func(*Signal) *Signal
	deleteOnExit bool
	signals      []*Signal

	responsesMu sync.RWMutex
	responses   map[string][]Notification
}

type SessionOption func(*Session)

func WithConfig(cfg Config) SessionOption {
	return func(s *Session) {
		s.config = cfg
	}
}

func WithClient(client *Client) SessionOption {
	return func(s *Session) {
		s.client = client
	}
}

// WithHook runs hook on every new signal. A non-nil return value replaces the signal.
func WithHook(hook func(*Signal) *Signal) SessionOption {
	return func(s *Session) {
		s.hook = hook
	}
}

func DeleteOnExit(deleteOnExit bool) SessionOption {
	return func(s *Session) {
		s.deleteOnExit = deleteOnExit
	}
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		config:    DefaultConfig(),
		client:    DefaultClient,
		responses: make(map[string][]Notification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Config() Config {
	cfg := s.config
	cfg.Zones = append([]string(nil), s.config.Zones...)
	return cfg
}

// Signal returns a new signal seeded from the session config. The hook runs
// first; whichever signal is kept has its published responses recorded in the
// session under its request id.
func (s *Session) Signal() *Signal {
	sig := newSignal(s.config, s.client)
	if s.hook != nil {
		if replaced := s.hook(sig); replaced != nil {
			sig = replaced
		}
	}
	sig.Subscribe(s.Subscription)
	s.signals = append(s.signals, sig)
	return sig
}

// Signals returns the signals created so far, oldest first.
func (s *Session) Signals() []*Signal {
	return append([]*Signal(nil), s.signals...)
}

// Subscription records a response against the request that produced it. It
// may be called from any goroutine, e.g. a webhook handler.
func (s *Session) Subscription(n Notification) {
	s.responsesMu.Lock()
	defer s.responsesMu.Unlock()

	s.responses[n.Request] = append(s.responses[n.Request], n)
}

// Response returns the latest notification recorded for requestID.
func (s *Session) Response(requestID string) (Notification, bool) {
	s.responsesMu.RLock()
	defer s.responsesMu.RUnlock()

	ns := s.responses[requestID]
	if len(ns) == 0 {
		return Notification{}, false
	}
	return ns[len(ns)-1], true
}

// Responses returns every notification recorded for requestID in arrival
// order. A fanned out signal records one per zone.
func (s *Session) Responses(requestID string) []Notification {
	s.responsesMu.RLock()
	defer s.responsesMu.RUnlock()

	return append([]Notification(nil), s.responses[requestID]...)
}

// Close ends the session scope. With DeleteOnExit every retained signal is
// deleted; a failure does not stop the remaining deletions and all errors are
// returned together.
func (s *Session) Close(ctx context.Context) error {
	if !s.deleteOnExit {
		return nil
	}

	var err error
	for _, sig := range s.signals {
		if _, deleteErr := sig.Delete(ctx); deleteErr != nil {
			err = multierr.Append(err, deleteErr)
		}
	}

	log := logger.With(zap.Int("signals", len(s.signals)))
	if err != nil {
		log.With(zap.Error(err)).Warn("Session cleanup finished with errors")
	} else {
		log.Info("Session cleanup finished")
	}
	return err
}

// Run calls fn inside the session scope and closes the session afterwards,
// also when fn panics. fn's error is always returned, joined with any
// cleanup error.
func (s *Session) Run(ctx context.Context, fn func(*Session) error) (err error) {
	defer func() {
		err = multierr.Append(err, s.Close(ctx))
	}()
	return fn(s)
}
