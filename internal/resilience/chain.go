package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every link in a [Chain] failed or had an open
// breaker.
var ErrExhausted = errors.New("resilience: all providers failed")

// ChainConfig configures the breaker created for each link in a [Chain].
type ChainConfig struct {
	Breaker BreakerConfig
}

type link[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds an ordered list of interchangeable providers, each guarded by
// its own [Breaker]. Calls go to the first link whose breaker admits them and
// whose call succeeds.
type Chain[T any] struct {
	links []link[T]
	cfg   ChainConfig
}

// NewChain creates a [Chain] with primary as its first link.
func NewChain[T any](primary T, name string, cfg ChainConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Append(name, primary)
	return c
}

// Append adds a link after all existing ones.
func (c *Chain[T]) Append(name string, value T) {
	bc := c.cfg.Breaker
	bc.Name = name
	c.links = append(c.links, link[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bc),
	})
}

// Do applies fn to each link in order until one call succeeds. Links with an
// open breaker are skipped. The returned error wraps [ErrExhausted] with the
// last failure when no link succeeds.
func Do[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.links {
		l := &c.links[i]
		var out R
		err := l.breaker.Do(func() error {
			var callErr error
			out, callErr = fn(l.value)
			return callErr
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider, breaker open", "provider", l.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", l.name, "error", err)
		}
	}
	// Both errors stay unwrappable so callers can match ErrExhausted and
	// still classify the underlying provider failure.
	return zero, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
