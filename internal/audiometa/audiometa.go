// Package audiometa fetches narration audio and inspects its metadata. The
// orchestration layer uses it for two things: handing the raw bytes to a
// speech-to-text provider, and learning the true audio duration so a
// synthesized timing estimate can be rescaled.
package audiometa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTooLarge is returned when the audio at a URL exceeds the configured
// size cap.
var ErrTooLarge = errors.New("audiometa: audio exceeds size limit")

// FetchError wraps a transient fetch failure. Callers may retry the whole
// preparation when they see one; decode failures are not wrapped and are
// permanent for the given bytes.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("audiometa: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const (
	// DefaultMaxBytes caps fetched audio at 25 MiB, matching the upload
	// limit of the hosted transcription APIs the audio is forwarded to.
	DefaultMaxBytes = 25 << 20

	// DefaultFetchTimeout bounds one audio download.
	DefaultFetchTimeout = 30 * time.Second
)

// Option is a functional option for configuring a Fetcher.
type Option func(*Fetcher)

// WithMaxBytes overrides the audio size cap. Values <= 0 are ignored.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithTimeout overrides the per-download timeout. Values <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to add a proxy.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// Fetcher downloads narration audio over HTTP with a size cap.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher with default limits.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		maxBytes: DefaultMaxBytes,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads the audio at url. Network failures and non-2xx responses
// come back as a [*FetchError]; a body over the size cap returns
// [ErrTooLarge].
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("audiometa: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, ErrTooLarge
	}

	// Read one byte past the cap to distinguish "exactly at" from "over".
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
