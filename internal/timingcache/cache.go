// Package timingcache provides the content-addressed store for computed
// timing sets, keyed by (owner id, text hash). Its job is purely economic:
// at most one expensive ASR call per key is the goal. Absence of an entry is
// a normal state, and storage failures are logged and degraded to misses;
// a broken cache must cost latency, never correctness.
//
// The cache does not guarantee mutual exclusion across concurrent requests
// for the same key; duplicate concurrent ASR calls are an accepted, bounded
// cost.
package timingcache

import (
	"context"

	"github.com/eliasvob/readsync/pkg/timing"
)

// Key addresses one cached timing set.
type Key struct {
	// OwnerID identifies the narration owner (the content the text belongs to).
	OwnerID string

	// TextHash is the stable hash of the exact narration text, from
	// [timing.TextHash].
	TextHash string
}

// Store is a content-addressed timing set store.
//
// Get returns (nil, false) for both a miss and a read error; implementations
// log failures themselves and never propagate storage errors to the caller.
// Put overwrites any existing entry for the key (idempotent upsert); callers
// invoke it fire-and-forget and only log the returned error.
type Store interface {
	Get(ctx context.Context, key Key) (*timing.Set, bool)
	Put(ctx context.Context, key Key, set *timing.Set) error
}
