package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"resty.dev/v3"
)

// ErrInFlight is returned by Submit when a previous submission has not
// yet produced results. The service gives no ordering guarantee for
// interleaved submissions, so the client refuses to interleave.
var ErrInFlight = errors.New("compile request already in flight")

// Client is a compile service client. Safe for use from one goroutine
// per method; the in-flight guard serializes Submit against itself.
type Client struct {
	http     *resty.Client
	inFlight atomic.Bool

	pollInterval time.Duration
	maxInterval  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPollInterval sets the initial Await backoff interval.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.pollInterval = d }
}

// NewClient returns a client for the compile service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		http:         resty.New().SetBaseURL(baseURL),
		pollInterval: 100 * time.Millisecond,
		maxInterval:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.http.Close()
}

type submitRequest struct {
	Source string `json:"source"`
}

type pollResponse struct {
	Done    bool              `json:"done"`
	Results []json.RawMessage `json:"results,omitempty"`
}

// Submit posts source text for compilation. The service acknowledges
// and compiles asynchronously; results arrive via Poll or Await. A
// second Submit before results have been collected returns ErrInFlight.
func (c *Client) Submit(ctx context.Context, source string) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submitRequest{Source: source}).
		Post("/compile")
	if err != nil {
		c.inFlight.Store(false)
		return fmt.Errorf("submit compile: %w", err)
	}
	if resp.IsError() {
		c.inFlight.Store(false)
		return fmt.Errorf("submit compile: service returned %s", resp.Status())
	}
	slog.Debug("compile submitted", "bytes", len(source))
	return nil
}

// Poll asks the service for results once. ok is false while compilation
// is still running; that is a retryable condition, not an error and not
// absence of output. On ok the in-flight guard is released.
func (c *Client) Poll(ctx context.Context) (results []Result, ok bool, err error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/compile/results")
	if err != nil {
		return nil, false, fmt.Errorf("poll compile: %w", err)
	}
	if resp.IsError() {
		return nil, false, fmt.Errorf("poll compile: service returned %s", resp.Status())
	}

	var body pollResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return nil, false, fmt.Errorf("poll compile: %w", err)
	}
	if !body.Done {
		return nil, false, nil
	}

	decoded, err := decodeResults(body.Results)
	if err != nil {
		return nil, false, fmt.Errorf("poll compile: %w", err)
	}
	c.inFlight.Store(false)
	slog.Debug("compile results received", "count", len(decoded))
	return decoded, true, nil
}

// Await polls until the service reports completion, backing off from
// the initial interval up to a cap. The context bounds the whole wait;
// there is no fixed overall deadline of the client's own.
func (c *Client) Await(ctx context.Context) ([]Result, error) {
	interval := c.pollInterval
	for {
		results, ok, err := c.Poll(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return results, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("await compile: %w", ctx.Err())
		case <-time.After(interval):
		}
		if interval *= 2; interval > c.maxInterval {
			interval = c.maxInterval
		}
	}
}
