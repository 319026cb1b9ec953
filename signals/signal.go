package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scheerer/dasq-signals/internal/logging"
	"github.com/scheerer/dasq-signals/internal/palette"
)

var logger = logging.New("signals")

// Payload is the JSON body of a signal. Only these fields are ever sent.
type Payload struct {
	ZoneID     string `json:"zoneId"`
	Color      string `json:"color"`
	Effect     string `json:"effect"`
	PID        string `json:"pid"`
	ClientName string `json:"clientName"`
	Message    string `json:"message"`
	Name       string `json:"name"`
}

// Result describes one zone's request. Response is nil when nothing was sent.
type Result struct {
	Payload   Payload
	JSON      []byte
	Published bool
	Response  *Response
}

// Notification pairs a signal's request id with what the service answered.
type Notification struct {
	Request  string          `json:"request"`
	ZoneID   string          `json:"zoneId,omitempty"`
	Status   int             `json:"status,omitempty"`
	Response json.RawMessage `json:"response"`
}

// Signal is a mutable builder for one lighting command covering one or more
// zones. A Signal is not safe for concurrent mutation.
type Signal struct {
	backendURL  string
	zones       []string
	colors      []string
	effect      string
	pid         string
	clientName  string
	message     string
	name        string
	requestID   string
	subscribers []func(Notification)
	response    *Response
	client      *Client

	mu          sync.Mutex
	deleteTimer *time.Timer
}

// NewSignal returns a signal carrying the package defaults.
func NewSignal() *Signal {
	return newSignal(DefaultConfig(), DefaultClient)
}

func newSignal(cfg Config, client *Client) *Signal {
	if client == nil {
		client = DefaultClient
	}
	return &Signal{
		backendURL: cfg.BackendURL,
		zones:      append([]string(nil), cfg.Zones...),
		colors:     []string{cfg.Color},
		effect:     cfg.Effect,
		pid:        cfg.PID,
		clientName: cfg.ClientName,
		message:    cfg.Message,
		name:       cfg.Name,
		requestID:  uuid.NewString(),
		client:     client,
	}
}

// set applies a setter under the lock a pending DeleteAfter reads with.
func (s *Signal) set(fn func()) *Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	return s
}

func (s *Signal) WithBackendURL(u string) *Signal {
	return s.set(func() { s.backendURL = u })
}

func (s *Signal) ForZone(zoneID string) *Signal {
	return s.set(func() { s.zones = []string{zoneID} })
}

// ForZones targets several zones; Finalize then fans out one request per zone.
func (s *Signal) ForZones(zoneIDs ...string) *Signal {
	return s.set(func() { s.zones = append([]string(nil), zoneIDs...) })
}

// WithColor sets a colour already formatted as hex, e.g. "#FF0000".
func (s *Signal) WithColor(hex string) *Signal {
	return s.set(func() { s.colors = []string{hex} })
}

// WithColors sets one colour per zone, paired by index with ForZones.
func (s *Signal) WithColors(hexes ...string) *Signal {
	return s.set(func() { s.colors = append([]string(nil), hexes...) })
}

func (s *Signal) WithColorValue(c color.Color) *Signal {
	return s.WithColor(palette.Hex(c))
}

func (s *Signal) WithEffect(effect string) *Signal {
	return s.set(func() { s.effect = effect })
}

func (s *Signal) WithPID(pid string) *Signal {
	return s.set(func() { s.pid = pid })
}

func (s *Signal) WithClientName(clientName string) *Signal {
	return s.set(func() { s.clientName = clientName })
}

func (s *Signal) WithMessage(message string) *Signal {
	return s.set(func() { s.message = message })
}

func (s *Signal) WithName(name string) *Signal {
	return s.set(func() { s.name = name })
}

// Subscribe registers fn to be called after every request this signal publishes.
func (s *Signal) Subscribe(fn func(Notification)) *Signal {
	return s.set(func() { s.subscribers = append(s.subscribers, fn) })
}

func (s *Signal) BackendURL() string { return s.backendURL }
func (s *Signal) Zones() []string    { return append([]string(nil), s.zones...) }
func (s *Signal) Colors() []string   { return append([]string(nil), s.colors...) }
func (s *Signal) Effect() string     { return s.effect }
func (s *Signal) PID() string        { return s.pid }
func (s *Signal) ClientName() string { return s.clientName }
func (s *Signal) Message() string    { return s.message }
func (s *Signal) Name() string       { return s.name }
func (s *Signal) RequestID() string  { return s.requestID }

// Response returns the last answer received from the service, if any.
func (s *Signal) Response() *Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

func (s *Signal) setResponse(resp *Response) {
	s.mu.Lock()
	s.response = resp
	s.mu.Unlock()
}

// Clone returns an independent copy with a fresh request id and no pending deletion.
func (s *Signal) Clone() *Signal {
	return &Signal{
		backendURL:  s.backendURL,
		zones:       append([]string(nil), s.zones...),
		colors:      append([]string(nil), s.colors...),
		effect:      s.effect,
		pid:         s.pid,
		clientName:  s.clientName,
		message:     s.message,
		name:        s.name,
		requestID:   uuid.NewString(),
		subscribers: slices.Clone(s.subscribers),
		response:    s.Response(),
		client:      s.client,
	}
}

type finalizeOptions struct {
	endpoint string
	publish  bool
}

type FinalizeOption func(*finalizeOptions)

// WithEndpoint overrides the path signals are posted to.
func WithEndpoint(endpoint string) FinalizeOption {
	return func(o *finalizeOptions) {
		o.endpoint = endpoint
	}
}

// WithPublish controls whether Finalize sends anything. Payloads are built either way.
func WithPublish(publish bool) FinalizeOption {
	return func(o *finalizeOptions) {
		o.publish = publish
	}
}

// Finalize builds the payload of every zone and, unless WithPublish(false) is
// given, posts each one. Several zones fan out over clones in zone order; the
// clones share this signal's request id so their notifications group together.
// It stops at the first failed request and returns the results gathered so far.
func (s *Signal) Finalize(ctx context.Context, opts ...FinalizeOption) ([]Result, error) {
	o := finalizeOptions{endpoint: SignalsEndpoint, publish: true}
	for _, opt := range opts {
		opt(&o)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	if len(s.zones) == 1 {
		r, err := s.finalizeZone(ctx, o)
		return []Result{r}, err
	}

	results := make([]Result, 0, len(s.zones))
	for i, zone := range s.zones {
		c := s.Clone()
		c.requestID = s.requestID
		c.zones = []string{zone}
		c.colors = []string{s.colorAt(i)}

		r, err := c.finalizeZone(ctx, o)
		results = append(results, r)
		if r.Response != nil {
			s.setResponse(r.Response)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (s *Signal) validate() error {
	if len(s.zones) == 0 {
		return ErrNoZone
	}
	if len(s.colors) != 1 && len(s.colors) != len(s.zones) {
		return fmt.Errorf("%w: %d colors for %d zones", ErrColorMismatch, len(s.colors), len(s.zones))
	}
	return nil
}

func (s *Signal) colorAt(i int) string {
	if len(s.colors) == 1 {
		return s.colors[0]
	}
	if i < len(s.colors) {
		return s.colors[i]
	}
	return ""
}

func (s *Signal) payload(i int) Payload {
	return Payload{
		ZoneID:     s.zones[i],
		Color:      s.colorAt(i),
		Effect:     s.effect,
		PID:        s.pid,
		ClientName: s.clientName,
		Message:    s.message,
		Name:       s.name,
	}
}

func (s *Signal) finalizeZone(ctx context.Context, o finalizeOptions) (Result, error) {
	p := s.payload(0)
	body, err := json.Marshal(p)
	if err != nil {
		return Result{Payload: p}, fmt.Errorf("encoding signal for %s: %w", p.ZoneID, err)
	}
	r := Result{Payload: p, JSON: body}
	if !o.publish {
		return r, nil
	}

	logger.With(zap.String("zoneId", p.ZoneID), zap.String("color", p.Color), zap.String("effect", p.Effect)).
		Debug("Publishing signal")

	resp, err := s.client.Post(ctx, s.backendURL, o.endpoint, body)
	if resp == nil {
		return r, err
	}
	r.Published = true
	r.Response = resp
	s.setResponse(resp)
	s.notify(resp)
	return r, err
}

func (s *Signal) notify(resp *Response) {
	n := Notification{Request: s.requestID, ZoneID: s.zones[0], Status: resp.StatusCode}
	if len(resp.Body) > 0 && json.Valid(resp.Body) {
		n.Response = json.RawMessage(resp.Body)
	}
	for _, fn := range s.subscribers {
		fn(n)
	}
}

// Delete removes the signal from every zone it targets and cancels a pending
// deferred deletion. It stops at the first failed request and fails with
// ErrNoZone when there is nothing to delete.
func (s *Signal) Delete(ctx context.Context) ([]Result, error) {
	s.CancelDelete()
	return s.delete(ctx)
}

func (s *Signal) delete(ctx context.Context) ([]Result, error) {
	s.mu.Lock()
	backendURL, client := s.backendURL, s.client
	payloads := make([]Payload, len(s.zones))
	for i := range s.zones {
		payloads[i] = s.payload(i)
	}
	s.mu.Unlock()

	if len(payloads) == 0 {
		return nil, ErrNoZone
	}

	results := make([]Result, 0, len(payloads))
	for _, p := range payloads {
		logger.With(zap.String("pid", p.PID), zap.String("zoneId", p.ZoneID)).Debug("Deleting signal")

		resp, err := client.Delete(ctx, backendURL, deletePath(p.PID, p.ZoneID))
		r := Result{Payload: p, Published: resp != nil, Response: resp}
		results = append(results, r)
		if resp != nil {
			s.setResponse(resp)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// DeleteAfter schedules a single Delete after d on a background timer,
// replacing any deletion already scheduled.
func (s *Signal) DeleteAfter(d time.Duration) *Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteTimer != nil {
		s.deleteTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.deleteTimer == t {
			s.deleteTimer = nil
		}
		s.mu.Unlock()

		if _, err := s.delete(context.Background()); err != nil {
			logger.With(zap.String("requestId", s.requestID), zap.Error(err)).
				Warn("Deferred signal deletion failed")
		}
	})
	s.deleteTimer = t
	return s
}

// CancelDelete stops a deletion scheduled by DeleteAfter. It reports whether
// one was pending.
func (s *Signal) CancelDelete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteTimer == nil {
		return false
	}
	stopped := s.deleteTimer.Stop()
	s.deleteTimer = nil
	return stopped
}

// DeleteAfter is a session hook scheduling the deletion of every new signal.
func DeleteAfter(d time.Duration) func(*Signal) *Signal {
	return func(s *Signal) *Signal {
		return s.DeleteAfter(d)
	}
}
