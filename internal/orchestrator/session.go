// Package orchestrator ties the timing pipeline together: it resolves a
// timing set for a narration (cache, then speech-to-text, then synthesized
// estimate), aligns it with the display text, and feeds the result into a
// playback session. Better timing data arriving later replaces what a session
// currently uses; results from a superseded load are discarded.
package orchestrator

import (
	"sync"
	"time"

	"github.com/eliasvob/readsync/internal/align"
	"github.com/eliasvob/readsync/internal/offset"
	"github.com/eliasvob/readsync/internal/playback"
	"github.com/eliasvob/readsync/pkg/timing"
	"github.com/eliasvob/readsync/pkg/token"
)

// Session is one reader following one narration. It owns the playback
// synchronizer and the identity of the currently loaded text.
type Session struct {
	source  *playback.ManualSource
	syncer  *playback.Synchronizer
	offsets offset.Store

	mu        sync.Mutex
	epoch     uint64
	ownerID   string
	textHash  string
	tokens    []token.Token
	set       *timing.Set
	alignment align.Map
}

// NewSession creates a Session with an empty synchronizer. Offsets read and
// written by the session go through the given store.
func NewSession(offsets offset.Store, opts ...playback.Option) *Session {
	src := playback.NewManualSource()
	return &Session{
		source:  src,
		syncer:  playback.New(src, opts...),
		offsets: offsets,
	}
}

// begin points the session at a new narration and returns the epoch token
// that later swaps must present. Any result computed for a previous epoch
// becomes unswappable. The persisted offset for the new scope is applied
// immediately.
func (s *Session) begin(ownerID, textHash string, tokens []token.Token) uint64 {
	s.mu.Lock()
	s.epoch++
	e := s.epoch
	s.ownerID = ownerID
	s.textHash = textHash
	s.tokens = tokens
	s.set = nil
	s.alignment = nil
	s.mu.Unlock()

	s.syncer.SetOffset(s.offsets.Get(ownerID, textHash))
	return e
}

// swap installs a timing set and alignment if the epoch is still current and
// the new set is at least as good as the installed one. Refinements race
// (duration rescale vs transcription), so a slower duration result must not
// replace transcribed timings that already landed. It reports whether the
// swap happened.
func (s *Session) swap(epoch uint64, set *timing.Set, m align.Map) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	if s.set != nil && sourceRank(set.Source) < sourceRank(s.set.Source) {
		s.mu.Unlock()
		return false
	}
	s.set = set
	s.alignment = m
	s.mu.Unlock()
	s.syncer.Load(set, m)
	return true
}

// sourceRank orders timing sources by quality: transcription beats a
// duration-rescaled estimate beats a rate-based estimate.
func sourceRank(src timing.Source) int {
	switch src {
	case timing.SourceASR:
		return 2
	case timing.SourceFallbackAdjusted:
		return 1
	default:
		return 0
	}
}

// Current returns the timing set and alignment the session is using, or nil
// when nothing is loaded.
func (s *Session) Current() (*timing.Set, align.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set, s.alignment
}

// Synchronizer exposes the session's playback synchronizer.
func (s *Session) Synchronizer() *playback.Synchronizer { return s.syncer }

// Tokens returns the display tokens of the currently loaded text.
func (s *Session) Tokens() []token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// ReportPosition feeds a playback position sample into the session.
func (s *Session) ReportPosition(pos time.Duration) {
	s.source.Report(pos)
}

// SetOffset applies and persists a manual sync offset for the session's
// current narration.
func (s *Session) SetOffset(seconds float64) error {
	s.mu.Lock()
	ownerID, textHash := s.ownerID, s.textHash
	s.mu.Unlock()

	s.syncer.SetOffset(seconds)
	return s.offsets.Set(ownerID, textHash, seconds)
}

// Close stops tracking and invalidates every in-flight preparation result.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	s.set = nil
	s.alignment = nil
	s.mu.Unlock()
	s.syncer.Unload()
}
