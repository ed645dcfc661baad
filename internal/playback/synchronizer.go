package playback

import (
	"context"
	"sync"
	"time"

	"github.com/eliasvob/readsync/internal/align"
	"github.com/eliasvob/readsync/pkg/timing"
)

// DefaultPollInterval is the default cadence at which the tracking loop
// samples the position source. ~100 ms keeps the highlight responsive
// without burning CPU on a lookup that changes a few times per second.
const DefaultPollInterval = 100 * time.Millisecond

// State is the synchronizer's lifecycle state.
type State int

const (
	// StateIdle means no timing set is loaded.
	StateIdle State = iota

	// StateReady means a timing set and alignment are loaded but playback
	// is not being tracked.
	StateReady

	// StateTracking means the polling loop is running.
	StateTracking
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Update is one change of the active timing item, emitted while tracking.
// ItemIndex and TokenIndex are -1 when no item covers the current position.
type Update struct {
	ItemIndex  int
	TokenIndex int

	// Generation identifies the timing set the indices refer to. Consumers
	// that cache per-set state should discard updates from past generations.
	Generation uint64
}

// Option is a functional option for configuring a Synchronizer.
type Option func(*Synchronizer)

// WithPollInterval overrides the tracking cadence. Values <= 0 are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Synchronizer tracks a position source against a loaded timing set.
//
// Lifecycle: idle → (Load) → ready → (Start) → tracking → (Stop) → ready.
// Load may be called in any state: a new set supersedes the old one and
// bumps the generation, which invalidates any update still in flight from
// the previous set. All methods are safe for concurrent use.
type Synchronizer struct {
	source   PositionSource
	interval time.Duration

	mu         sync.Mutex
	state      State
	set        *timing.Set
	alignment  align.Map
	offset     float64
	generation uint64
	lastItem   int
	cancel     context.CancelFunc

	updates chan Update
}

// New creates a Synchronizer polling the given source.
func New(source PositionSource, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:   source,
		interval: DefaultPollInterval,
		state:    StateIdle,
		lastItem: -1,
		updates:  make(chan Update, 16),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Updates returns the channel on which item changes are emitted while
// tracking. The channel is never closed; it goes quiet after Unload.
func (s *Synchronizer) Updates() <-chan Update { return s.updates }

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the generation of the currently loaded set.
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Load swaps in a new timing set and its alignment, superseding any previous
// set. The generation counter is incremented so that in-flight updates
// computed against the old set can no longer be emitted. Tracking, if
// active, continues against the new set.
func (s *Synchronizer) Load(set *timing.Set, alignment align.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
	s.alignment = alignment
	s.generation++
	s.lastItem = -1
	if s.state == StateIdle {
		s.state = StateReady
	}
}

// SetOffset sets the manual playback offset in seconds, applied to every
// position sample before timing lookup.
func (s *Synchronizer) SetOffset(seconds float64) {
	s.mu.Lock()
	s.offset = seconds
	// Force re-emission on the next tick even if the item is unchanged;
	// the offset may have moved the position into a different item.
	s.lastItem = -2
	s.mu.Unlock()
}

// Start begins the tracking loop. It is a no-op when already tracking and
// returns without starting when no set is loaded. The loop stops when Stop
// or Unload is called or ctx is cancelled.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateTracking
	s.mu.Unlock()

	go s.track(loopCtx)
}

// Stop halts tracking, returning to the ready state. Pending updates
// computed before Stop are discarded by the state check at emission time.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.state == StateTracking {
		s.state = StateReady
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	s.mu.Unlock()
}

// Unload halts tracking and drops the loaded set, returning to idle. The
// generation is incremented so nothing stale can be emitted afterwards.
func (s *Synchronizer) Unload() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateIdle
	s.set = nil
	s.alignment = nil
	s.generation++
	s.lastItem = -1
	s.mu.Unlock()
}

// Resolve looks up the timing item and display token active at the given raw
// position, applying the current offset. It is the pure core of the tracking
// loop, exposed for callers that need an immediate answer (e.g. after a
// seek) without waiting for the next tick.
func (s *Synchronizer) Resolve(pos time.Duration) (itemIndex, tokenIndex int) {
	s.mu.Lock()
	set := s.set
	alignment := s.alignment
	offset := s.offset
	s.mu.Unlock()

	if set == nil {
		return -1, -1
	}
	itemIndex = set.IndexAt(pos.Seconds() + offset)
	return itemIndex, alignment.TokenFor(itemIndex)
}

// track is the polling loop. Each tick samples the source, resolves the
// active item, and emits an Update when it changed, unless the generation
// moved or tracking stopped between computation and emission, in which case
// the result is stale and dropped.
func (s *Synchronizer) track(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.state != StateTracking || s.set == nil {
			s.mu.Unlock()
			return
		}
		gen := s.generation
		set := s.set
		alignment := s.alignment
		offset := s.offset
		s.mu.Unlock()

		item := set.IndexAt(s.source.Position().Seconds() + offset)
		tok := alignment.TokenFor(item)

		s.mu.Lock()
		stale := s.generation != gen || s.state != StateTracking
		changed := item != s.lastItem
		if !stale && changed {
			s.lastItem = item
		}
		s.mu.Unlock()

		if stale || !changed {
			continue
		}

		select {
		case s.updates <- Update{ItemIndex: item, TokenIndex: tok, Generation: gen}:
		default:
			// Consumer is behind; dropping is safe because each update
			// supersedes the last.
		}
	}
}
