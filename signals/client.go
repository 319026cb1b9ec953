package signals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrNoZone        = errors.New("signal has no zone")
	ErrColorMismatch = errors.New("color count does not match zone count")
)

// StatusError reports a non-2xx answer from the signal service. The response
// is still returned next to it.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Response is what the service answered to a single request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client sends requests to the signal service. It never retries.
type Client struct {
	http *http.Client
}

var DefaultClient = NewClient(&http.Client{Timeout: 10 * time.Second})

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient}
}

func (c *Client) Post(ctx context.Context, baseURL, endpoint string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, baseURL, endpoint, body)
}

func (c *Client) Delete(ctx context.Context, baseURL, endpoint string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, baseURL, endpoint, nil)
}

func (c *Client) do(ctx context.Context, method, baseURL, endpoint string, body []byte) (*Response, error) {
	target, err := resolve(baseURL, endpoint)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, target, err)
	}
	req.Header.Set("Content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, target, err)
	}

	r := &Response{StatusCode: resp.StatusCode, Body: respBody}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: respBody}
	}
	return r, nil
}

// resolve joins endpoint onto baseURL the way a browser resolves a link:
// an absolute endpoint path replaces the base path.
func resolve(baseURL, endpoint string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing backend url %q: %w", baseURL, err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func deletePath(pid, zone string) string {
	return SignalsEndpoint + "/pid/" + url.PathEscape(pid) + "/zoneId/" + url.PathEscape(zone)
}
