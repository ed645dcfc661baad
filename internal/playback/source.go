// Package playback resolves "which timing item is being spoken right now"
// from a live audio position, and translates it to a display token index for
// the rendering layer to highlight.
package playback

import (
	"sync"
	"time"
)

// PositionSource supplies the live playback position. Implementations must
// be safe for concurrent use; the synchronizer polls the source from its
// tracking goroutine while the owner updates it from elsewhere.
type PositionSource interface {
	// Position returns the current playback position from the start of the
	// narration audio.
	Position() time.Duration
}

// Compile-time assertion that ManualSource satisfies PositionSource.
var _ PositionSource = (*ManualSource)(nil)

// ManualSource is a PositionSource fed by explicit position reports, e.g.
// from a client streaming its player position over a WebSocket.
type ManualSource struct {
	mu  sync.RWMutex
	pos time.Duration
}

// NewManualSource returns a ManualSource at position zero.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Position implements PositionSource.
func (s *ManualSource) Position() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos
}

// Report records a new playback position.
func (s *ManualSource) Report(pos time.Duration) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}
