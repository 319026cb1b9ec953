package signals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"
)

func decodePayload(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestFinalizeWithoutPublishCarriesExactlyTheSignalFields(t *testing.T) {
	results, err := NewSignal().
		ForZone("KEY_A").
		WithColor("#FF0000").
		WithEffect(EffectBlink).
		WithPID("PID").
		WithClientName("client").
		WithMessage("message").
		WithName("name").
		Finalize(context.Background(), WithPublish(false))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Published)
	assert.Nil(t, results[0].Response)
	assert.Equal(t, map[string]any{
		"zoneId":     "KEY_A",
		"color":      "#FF0000",
		"effect":     "BLINK",
		"pid":        "PID",
		"clientName": "client",
		"message":    "message",
		"name":       "name",
	}, decodePayload(t, results[0].JSON))
}

func TestFinalizePublishes(t *testing.T) {
	backend := newFakeBackend(t)

	sig := NewSignal().WithBackendURL(backend.URL).ForZone("KEY_A")
	results, err := sig.Finalize(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/api/1.0/signals", reqs[0].Path)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.JSONEq(t, string(results[0].JSON), string(reqs[0].Body))

	assert.True(t, results[0].Published)
	require.NotNil(t, results[0].Response)
	assert.Equal(t, http.StatusOK, results[0].Response.StatusCode)
	assert.JSONEq(t, `{"id":1}`, string(results[0].Response.Body))
	assert.Same(t, results[0].Response, sig.Response())
}

func TestFinalizeEndpointReplacesBasePath(t *testing.T) {
	backend := newFakeBackend(t)

	_, err := NewSignal().
		WithBackendURL(backend.URL+"/ignored/").
		Finalize(context.Background(), WithEndpoint("/custom/signals"))
	require.NoError(t, err)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/custom/signals", reqs[0].Path)
}

func TestFinalizeFanOutPairsColorsByIndex(t *testing.T) {
	sig := NewSignal().
		ForZones("KEY_A", "KEY_B", "KEY_C").
		WithColors("#FF0000", "#00FF00", "#0000FF")

	results, err := sig.Finalize(context.Background(), WithPublish(false))
	require.NoError(t, err)
	require.Len(t, results, 3)

	want := [][2]string{{"KEY_A", "#FF0000"}, {"KEY_B", "#00FF00"}, {"KEY_C", "#0000FF"}}
	for i, w := range want {
		assert.Equal(t, w[0], results[i].Payload.ZoneID)
		assert.Equal(t, w[1], results[i].Payload.Color)
		assert.Equal(t, w[0], decodePayload(t, results[i].JSON)["zoneId"])
	}

	// the fan out works on clones
	assert.Equal(t, []string{"KEY_A", "KEY_B", "KEY_C"}, sig.Zones())
	assert.Equal(t, []string{"#FF0000", "#00FF00", "#0000FF"}, sig.Colors())
}

func TestFinalizeFanOutSharesScalarColor(t *testing.T) {
	results, err := NewSignal().
		ForZones("KEY_A", "KEY_B").
		WithColor("#123456").
		Finalize(context.Background(), WithPublish(false))
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, "#123456", r.Payload.Color)
	}
}

func TestFinalizeFanOutPublishesInOrder(t *testing.T) {
	backend := newFakeBackend(t)

	_, err := NewSignal().
		WithBackendURL(backend.URL).
		ForZones("KEY_A", "KEY_B").
		WithColors("#FF0000", "#00FF00").
		Finalize(context.Background())
	require.NoError(t, err)

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "KEY_A", decodePayload(t, reqs[0].Body)["zoneId"])
	assert.Equal(t, "#00FF00", decodePayload(t, reqs[1].Body)["color"])
}

func TestFinalizeFanOutHonoursPublishFlag(t *testing.T) {
	backend := newFakeBackend(t)

	results, err := NewSignal().
		WithBackendURL(backend.URL).
		ForZones("KEY_A", "KEY_B").
		Finalize(context.Background(), WithPublish(false))
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Empty(t, backend.Requests())
}

func TestFinalizeRejectsMismatchedColors(t *testing.T) {
	backend := newFakeBackend(t)

	_, err := NewSignal().
		WithBackendURL(backend.URL).
		ForZones("KEY_A", "KEY_B", "KEY_C").
		WithColors("#FF0000", "#00FF00").
		Finalize(context.Background())
	assert.ErrorIs(t, err, ErrColorMismatch)
	assert.Empty(t, backend.Requests())

	_, err = NewSignal().ForZone("KEY_A").WithColors("#FF0000", "#00FF00").Finalize(context.Background())
	assert.ErrorIs(t, err, ErrColorMismatch)
}

func TestFinalizeRejectsMissingZone(t *testing.T) {
	_, err := NewSignal().ForZones().Finalize(context.Background())
	assert.ErrorIs(t, err, ErrNoZone)
}

func TestFinalizeStatusErrorKeepsResponse(t *testing.T) {
	backend := newFakeBackend(t)
	backend.setStatus(func(*http.Request) int { return http.StatusInternalServerError })

	results, err := NewSignal().WithBackendURL(backend.URL).Finalize(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, http.MethodPost, statusErr.Method)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Response)
	assert.Equal(t, http.StatusInternalServerError, results[0].Response.StatusCode)
}

func TestFinalizeFanOutStopsAtFirstFailure(t *testing.T) {
	backend := newFakeBackend(t)
	backend.setStatus(func(*http.Request) int { return http.StatusBadRequest })

	results, err := NewSignal().
		WithBackendURL(backend.URL).
		ForZones("KEY_A", "KEY_B").
		Finalize(context.Background())
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, backend.Requests(), 1)
}

func TestFinalizeTransportError(t *testing.T) {
	backend := newFakeBackend(t)
	backend.Close()

	results, err := NewSignal().WithBackendURL(backend.URL).Finalize(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
	require.Len(t, results, 1)
	assert.False(t, results[0].Published)
	assert.Nil(t, results[0].Response)
}

type signalFields struct {
	BackendURL string
	Zones      []string
	Colors     []string
	Effect     string
	PID        string
	ClientName string
	Message    string
	Name       string
}

func fieldsOf(s *Signal) signalFields {
	return signalFields{
		BackendURL: s.BackendURL(),
		Zones:      s.Zones(),
		Colors:     s.Colors(),
		Effect:     s.Effect(),
		PID:        s.PID(),
		ClientName: s.ClientName(),
		Message:    s.Message(),
		Name:       s.Name(),
	}
}

func TestSettersChangeOnlyTheirField(t *testing.T) {
	tests := []struct {
		name   string
		set    func(*Signal) *Signal
		modify func(*signalFields)
	}{
		{"ForZone", func(s *Signal) *Signal { return s.ForZone("KEY_Z") }, func(f *signalFields) { f.Zones = []string{"KEY_Z"} }},
		{"ForZones", func(s *Signal) *Signal { return s.ForZones("KEY_Y", "KEY_Z") }, func(f *signalFields) { f.Zones = []string{"KEY_Y", "KEY_Z"} }},
		{"WithColor", func(s *Signal) *Signal { return s.WithColor("#000001") }, func(f *signalFields) { f.Colors = []string{"#000001"} }},
		{"WithColorValue", func(s *Signal) *Signal { return s.WithColorValue(colornames.Red) }, func(f *signalFields) { f.Colors = []string{"#FF0000"} }},
		{"WithEffect", func(s *Signal) *Signal { return s.WithEffect(EffectBreathe) }, func(f *signalFields) { f.Effect = EffectBreathe }},
		{"WithPID", func(s *Signal) *Signal { return s.WithPID("OTHER") }, func(f *signalFields) { f.PID = "OTHER" }},
		{"WithClientName", func(s *Signal) *Signal { return s.WithClientName("c") }, func(f *signalFields) { f.ClientName = "c" }},
		{"WithMessage", func(s *Signal) *Signal { return s.WithMessage("m") }, func(f *signalFields) { f.Message = "m" }},
		{"WithName", func(s *Signal) *Signal { return s.WithName("n") }, func(f *signalFields) { f.Name = "n" }},
		{"WithBackendURL", func(s *Signal) *Signal { return s.WithBackendURL("http://q:1/") }, func(f *signalFields) { f.BackendURL = "http://q:1/" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := NewSignal()
			want := fieldsOf(sig)
			tt.modify(&want)

			assert.Same(t, sig, tt.set(sig))
			assert.Equal(t, want, fieldsOf(sig))

			tt.set(sig)
			assert.Equal(t, want, fieldsOf(sig))
		})
	}
}

func TestNewSignalDefaults(t *testing.T) {
	sig := NewSignal()
	assert.Equal(t, signalFields{
		BackendURL: "http://localhost:27301/",
		Zones:      []string{"KEY_Q"},
		Colors:     []string{"#F0F8FF"},
		Effect:     "SET_COLOR",
		PID:        "DK5QPID",
		ClientName: DefaultClientName,
	}, fieldsOf(sig))
	assert.NotEmpty(t, sig.RequestID())
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewSignal().ForZones("KEY_A", "KEY_B").WithColors("#000001", "#000002")
	c := orig.Clone()

	c.ForZone("KEY_C").WithColor("#FFFFFF").WithName("clone")
	c.zones = append(c.zones, "KEY_D")

	assert.Equal(t, []string{"KEY_A", "KEY_B"}, orig.Zones())
	assert.Equal(t, []string{"#000001", "#000002"}, orig.Colors())
	assert.Empty(t, orig.Name())
	assert.NotEqual(t, orig.RequestID(), c.RequestID())
}

func TestDefaultDeleteURL(t *testing.T) {
	u, err := resolve(DefaultBackendURL, deletePath(DefaultPID, DefaultZone))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:27301/api/1.0/signals/pid/DK5QPID/zoneId/KEY_Q", u)
}

func TestDelete(t *testing.T) {
	backend := newFakeBackend(t)

	results, err := NewSignal().WithBackendURL(backend.URL).Delete(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, http.StatusOK, results[0].Response.StatusCode)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, "/api/1.0/signals/pid/DK5QPID/zoneId/KEY_Q", reqs[0].Path)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.Empty(t, reqs[0].Body)
}

func TestDeleteEveryZone(t *testing.T) {
	backend := newFakeBackend(t)

	_, err := NewSignal().WithBackendURL(backend.URL).ForZones("KEY_A", "KEY_B").Delete(context.Background())
	require.NoError(t, err)

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/api/1.0/signals/pid/DK5QPID/zoneId/KEY_A", reqs[0].Path)
	assert.Equal(t, "/api/1.0/signals/pid/DK5QPID/zoneId/KEY_B", reqs[1].Path)
}

func TestDeleteAfter(t *testing.T) {
	backend := newFakeBackend(t)

	NewSignal().WithBackendURL(backend.URL).ForZone("KEY_A").DeleteAfter(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		return len(backend.Requests()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, http.MethodDelete, backend.Requests()[0].Method)
}

func TestCancelDelete(t *testing.T) {
	sig := NewSignal().DeleteAfter(time.Hour)

	assert.True(t, sig.CancelDelete())
	assert.False(t, sig.CancelDelete())
}

func TestDeleteCancelsPendingDeletion(t *testing.T) {
	backend := newFakeBackend(t)

	sig := NewSignal().WithBackendURL(backend.URL).DeleteAfter(50 * time.Millisecond)
	_, err := sig.Delete(context.Background())
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, backend.Requests(), 1)
	assert.False(t, sig.CancelDelete())
}

func TestSubscribersReceiveEachPublish(t *testing.T) {
	backend := newFakeBackend(t)

	var got []Notification
	sig := NewSignal().
		WithBackendURL(backend.URL).
		ForZones("KEY_A", "KEY_B").
		Subscribe(func(n Notification) { got = append(got, n) })

	_, err := sig.Finalize(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	for i, zone := range []string{"KEY_A", "KEY_B"} {
		assert.Equal(t, sig.RequestID(), got[i].Request)
		assert.Equal(t, zone, got[i].ZoneID)
		assert.Equal(t, http.StatusOK, got[i].Status)
		assert.JSONEq(t, `{"id":1}`, string(got[i].Response))
	}

	_, err = sig.Finalize(context.Background(), WithPublish(false))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestKeyZone(t *testing.T) {
	assert.Equal(t, "KEY_A", KeyZone('A'))
	assert.Equal(t, "KEY_!", KeyZone('!'))
}

func TestDeleteAfterWhileConfiguring(t *testing.T) {
	backend := newFakeBackend(t)
	cfg := backend.config()
	s := NewSession(WithConfig(cfg), WithHook(DeleteAfter(time.Millisecond)))

	sig := s.Signal()
	for i := 0; i < 100; i++ {
		sig.ForZone("KEY_Z").WithColor("#000001").WithPID("DK5QPID")
	}

	require.Eventually(t, func() bool {
		return len(backend.Requests()) == 1
	}, time.Second, 5*time.Millisecond)
	req := backend.Requests()[0]
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Contains(t, []string{
		"/api/1.0/signals/pid/DK5QPID/zoneId/KEY_Q",
		"/api/1.0/signals/pid/DK5QPID/zoneId/KEY_Z",
	}, req.Path)
}

func TestDeleteWithoutZone(t *testing.T) {
	backend := newFakeBackend(t)

	results, err := NewSignal().WithBackendURL(backend.URL).ForZones().Delete(context.Background())
	assert.ErrorIs(t, err, ErrNoZone)
	assert.Empty(t, results)
	assert.Empty(t, backend.Requests())
}
