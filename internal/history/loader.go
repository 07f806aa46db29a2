// Package history implements the historical loader: a one-shot range query
// used to seed engine state before the live channel produces incremental
// updates, and as the fallback polling source when no live transport is
// available.
//
// The loader never retries on its own. Seeding failure is less urgent than
// live-stream failure and must not share the channel's aggressive retry
// loop; retry policy belongs to the caller.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xtxerr/scope/config"
	"github.com/xtxerr/scope/internal/errors"
	"github.com/xtxerr/scope/internal/event"
	"github.com/xtxerr/scope/internal/logging"
)

var log = logging.Component("history")

// Range describes a historical query window.
type Range struct {
	From time.Time
	To   time.Time

	// Service optionally restricts results to one service.
	Service string
}

// Loader issues range queries against the history endpoint. The endpoint
// returns a JSON array of frames in the same tagged-union shape as the live
// channel, so loaded history flows through the same decode and dispatch
// pipeline as live traffic.
type Loader struct {
	baseURL string
	client  *http.Client
}

// New creates a loader for the given endpoint URL.
func New(baseURL string) *Loader {
	return NewWithClient(baseURL, &http.Client{Timeout: config.DefaultLoadTimeout})
}

// NewWithClient creates a loader using a custom HTTP client.
func NewWithClient(baseURL string, client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: config.DefaultLoadTimeout}
	}
	return &Loader{baseURL: baseURL, client: client}
}

// Load performs one range query and returns the frames it produced.
//
// Failures wrap errors.ErrHistoricalLoad and are recoverable; the caller
// decides whether and when to retry.
func (l *Loader) Load(ctx context.Context, r Range) ([]event.Frame, error) {
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad endpoint %q: %v", errors.ErrHistoricalLoad, l.baseURL, err)
	}

	q := u.Query()
	q.Set("from", r.From.UTC().Format(time.RFC3339))
	q.Set("to", r.To.UTC().Format(time.RFC3339))
	if r.Service != "" {
		q.Set("service", r.Service)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrHistoricalLoad, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrHistoricalLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d from %s", errors.ErrHistoricalLoad, resp.StatusCode, u.Host)
	}

	var frames []event.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", errors.ErrHistoricalLoad, err)
	}

	log.Debug("historical range loaded",
		"from", r.From, "to", r.To, "service", r.Service, "frames", len(frames))
	return frames, nil
}
