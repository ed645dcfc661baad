package resilience

import (
	"context"

	"github.com/eliasvob/readsync/pkg/provider/asr"
)

// ASRFallback implements [asr.Provider] with automatic failover across
// multiple speech-to-text backends, each guarded by its own breaker.
type ASRFallback struct {
	chain *Chain[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary asr.Provider, name string, cfg ChainConfig) *ASRFallback {
	return &ASRFallback{chain: NewChain(primary, name, cfg)}
}

// AddFallback registers an additional backend, tried after all existing ones.
func (f *ASRFallback) AddFallback(name string, p asr.Provider) {
	f.chain.Append(name, p)
}

// Transcribe runs the request against the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	return Do(f.chain, func(p asr.Provider) (asr.Result, error) {
		return p.Transcribe(ctx, req)
	})
}
