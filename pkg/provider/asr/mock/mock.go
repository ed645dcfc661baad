// Package mock provides a scripted asr.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/eliasvob/readsync/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Provider is a scripted ASR provider. Configure Result/Err (or TranscribeFn
// for per-call behaviour) before use. The zero value returns an empty Result.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFn is nil.
	Result asr.Result

	// Err is returned by Transcribe when TranscribeFn is nil.
	Err error

	// Delay, when non-nil, is waited on before returning; closing it
	// releases the call. Used to simulate a slow provider.
	Delay chan struct{}

	// TranscribeFn overrides the scripted behaviour entirely.
	TranscribeFn func(ctx context.Context, req asr.Request) (asr.Result, error)

	// Calls records every request received.
	Calls []asr.Request
}

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	fn := p.TranscribeFn
	res, err := p.Result, p.Err
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return asr.Result{}, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return res, err
}

// CallCount returns how many Transcribe calls the provider has received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
