package signals

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

// fakeBackend stands in for the Q desktop service and records every request.
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   func(r *http.Request) int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-type"),
			Body:        body,
		})
		status := http.StatusOK
		if b.status != nil {
			status = b.status(r)
		}
		b.mu.Unlock()

		w.Header().Set("Content-type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) Requests() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.requests...)
}

func (b *fakeBackend) setStatus(fn func(r *http.Request) int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = fn
}

func (b *fakeBackend) config() Config {
	cfg := DefaultConfig()
	cfg.BackendURL = b.URL
	return cfg
}
