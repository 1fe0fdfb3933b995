// Package source fetches raw image bytes for the render pipeline. The engine
// itself never performs network I/O; this collaborator is the only place
// source bytes come from.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wb-go/wbf/retry"
)

// ErrSourceTooLarge is returned when the source body exceeds the configured
// size limit.
var ErrSourceTooLarge = errors.New("source image exceeds size limit")

// DefaultMaxBytes caps source downloads when no explicit limit is configured.
const DefaultMaxBytes = 32 << 20 // 32 MiB

// Fetcher downloads source images over HTTP with retries.
type Fetcher struct {
	client   *http.Client
	strategy retry.Strategy
	maxBytes int64
}

// NewFetcher creates a Fetcher with the given per-request timeout, retry
// strategy, and source size limit. A non-positive maxBytes falls back to
// DefaultMaxBytes.
func NewFetcher(timeout time.Duration, strategy retry.Strategy, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		strategy: strategy,
		maxBytes: maxBytes,
	}
}

// Fetch downloads the source image at url. Transient failures are retried
// per the configured strategy; non-2xx responses and oversized bodies fail.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch source: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("fetch source: unexpected status %s", resp.Status)
		}

		// Read one byte past the limit to tell "exactly at limit" from "over".
		data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return fmt.Errorf("read source body: %w", err)
		}
		if int64(len(data)) > f.maxBytes {
			return ErrSourceTooLarge
		}

		body = data

		return nil
	}, f.strategy)
	if err != nil {
		return nil, err
	}

	return body, nil
}
