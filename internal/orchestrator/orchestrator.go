package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eliasvob/readsync/internal/align"
	"github.com/eliasvob/readsync/internal/audiometa"
	"github.com/eliasvob/readsync/internal/observe"
	"github.com/eliasvob/readsync/internal/synth"
	"github.com/eliasvob/readsync/internal/timingcache"
	"github.com/eliasvob/readsync/pkg/provider/asr"
	"github.com/eliasvob/readsync/pkg/timing"
	"github.com/eliasvob/readsync/pkg/token"
)

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator)

// WithFetcher replaces the audio fetcher.
func WithFetcher(f *audiometa.Fetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithSynthesizer replaces the fallback timing synthesizer.
func WithSynthesizer(s *synth.Synthesizer) Option {
	return func(o *Orchestrator) { o.synth = s }
}

// WithAligner replaces the timing-to-token aligner.
func WithAligner(a *align.Aligner) Option {
	return func(o *Orchestrator) { o.aligner = a }
}

// WithMetrics replaces the metrics sink, e.g. for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator resolves, caches, and aligns timing sets.
type Orchestrator struct {
	asr     asr.Provider
	cache   timingcache.Store
	fetcher *audiometa.Fetcher
	synth   *synth.Synthesizer
	aligner *align.Aligner
	metrics *observe.Metrics
}

// New creates an Orchestrator using provider for transcription and cache for
// persisted timing sets.
func New(provider asr.Provider, cache timingcache.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		asr:     provider,
		cache:   cache,
		fetcher: audiometa.NewFetcher(),
		synth:   synth.New(),
		aligner: align.New(),
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PrepareRequest identifies a narration to prepare a session for.
type PrepareRequest struct {
	AudioURL string
	OwnerID  string
	Text     string
	Language string
}

// TimingRequest identifies a narration for a bare timing resolution. The
// caller supplies the text hash itself; the text is not needed because no
// alignment is built.
type TimingRequest struct {
	AudioURL string
	OwnerID  string
	TextHash string
	Language string
}

// Resolved is the outcome of a timing resolution.
type Resolved struct {
	Set    *timing.Set
	Cached bool
}

// ResolveTiming returns the timing set for one narration: from the cache when
// present, otherwise freshly transcribed. Only transcription results are
// written back to the cache; the write is fire-and-forget. Errors carry an
// [asr.Error] classification where one applies.
func (o *Orchestrator) ResolveTiming(ctx context.Context, req TimingRequest) (Resolved, error) {
	key := timingcache.Key{OwnerID: req.OwnerID, TextHash: req.TextHash}

	if set, ok := o.cache.Get(ctx, key); ok {
		o.metrics.RecordCacheLookup(ctx, true)
		o.metrics.RecordTimingRequest(ctx, string(set.Source), "cached")
		return Resolved{Set: set, Cached: true}, nil
	}
	o.metrics.RecordCacheLookup(ctx, false)

	set, err := o.transcribe(ctx, req)
	if err != nil {
		o.metrics.RecordTimingRequest(ctx, "asr", "error")
		return Resolved{}, err
	}
	o.metrics.RecordTimingRequest(ctx, "asr", "ok")

	o.storeAsync(key, set)
	return Resolved{Set: set}, nil
}

// Prepare readies a session for playback of one narration. A usable timing
// set is installed before Prepare returns: the cached one when available,
// otherwise a synthesized estimate. When the estimate was used, transcription
// and a duration probe continue in the background and replace it with better
// data as it arrives. A result computed for a superseded session load is
// discarded.
func (o *Orchestrator) Prepare(ctx context.Context, sess *Session, req PrepareRequest) error {
	textHash := timing.TextHash(req.Text)
	tokens := token.Tokenize(req.Text)
	epoch := sess.begin(req.OwnerID, textHash, tokens)

	key := timingcache.Key{OwnerID: req.OwnerID, TextHash: textHash}
	if set, ok := o.cache.Get(ctx, key); ok {
		o.metrics.RecordCacheLookup(ctx, true)
		sess.swap(epoch, set, o.buildAlignment(ctx, set, tokens))
		return nil
	}
	o.metrics.RecordCacheLookup(ctx, false)

	// Synthesized estimate first so the session is usable immediately.
	est := o.synth.Estimate(req.Text)
	sess.swap(epoch, est, o.buildAlignment(ctx, est, tokens))

	go o.refine(context.WithoutCancel(ctx), sess, epoch, key, req, tokens)
	return nil
}

// refine upgrades a session's synthesized estimate in the background: first
// to a duration-scaled estimate once the true audio length is known, then to
// transcribed timings when transcription succeeds.
func (o *Orchestrator) refine(ctx context.Context, sess *Session, epoch uint64, key timingcache.Key, req PrepareRequest, tokens []token.Token) {
	audio, err := o.fetcher.Fetch(ctx, req.AudioURL)
	if err != nil {
		slog.Warn("audio fetch failed, keeping synthesized timings",
			"owner_id", req.OwnerID, "error", err)
		return
	}

	// The two refinements race and each installs its result as soon as it
	// has one. A transcription can take arbitrarily long; the duration
	// rescale must not wait for it. The session refuses downgrades, so a
	// duration result arriving after transcribed timings is a no-op.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := audiometa.Duration(audio)
		if err != nil {
			slog.Debug("audio duration probe failed", "error", err)
			return nil
		}
		adjusted := o.synth.WithDuration(req.Text, d)
		sess.swap(epoch, adjusted, o.buildAlignment(ctx, adjusted, tokens))
		return nil
	})
	g.Go(func() error {
		set, err := o.transcribeBytes(gctx, audio, req.AudioURL, req.Language)
		if err != nil {
			slog.Warn("transcription failed, keeping synthesized timings",
				"owner_id", req.OwnerID, "error", err)
			return nil
		}
		if sess.swap(epoch, set, o.buildAlignment(ctx, set, tokens)) {
			o.storeAsync(key, set)
		}
		return nil
	})
	_ = g.Wait()
}

// transcribe fetches the narration audio and transcribes it.
func (o *Orchestrator) transcribe(ctx context.Context, req TimingRequest) (*timing.Set, error) {
	audio, err := o.fetcher.Fetch(ctx, req.AudioURL)
	if err != nil {
		if errors.Is(err, audiometa.ErrTooLarge) {
			return nil, &asr.Error{Code: asr.CodePayloadTooLarge, Err: err}
		}
		return nil, fmt.Errorf("orchestrator: fetch audio: %w", err)
	}
	return o.transcribeBytes(ctx, audio, req.AudioURL, req.Language)
}

// transcribeBytes runs speech-to-text over already-fetched audio and
// normalizes the result into a timing set.
func (o *Orchestrator) transcribeBytes(ctx context.Context, audio []byte, audioURL, language string) (*timing.Set, error) {
	start := time.Now()
	res, err := o.asr.Transcribe(ctx, asr.Request{
		Audio:    audio,
		Filename: filenameHint(audioURL),
		Language: language,
	})
	o.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordProviderError(ctx, "asr", string(asr.CodeOf(err)))
		return nil, fmt.Errorf("orchestrator: transcribe: %w", err)
	}

	set, err := asr.Normalize(res)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: normalize transcription: %w", err)
	}
	return set, nil
}

// filenameHint derives an upload name from the audio URL so providers see
// the container extension. Falls back to a generic mp3 name.
func filenameHint(audioURL string) string {
	if u, err := url.Parse(audioURL); err == nil {
		if base := path.Base(u.Path); strings.Contains(base, ".") {
			return base
		}
	}
	return "narration.mp3"
}

// buildAlignment maps a timing set onto display tokens and records coverage.
func (o *Orchestrator) buildAlignment(ctx context.Context, set *timing.Set, tokens []token.Token) align.Map {
	m := o.aligner.Build(set, tokens)
	if n := len(set.Items); n > 0 {
		o.metrics.AlignmentCoverage.Record(ctx, m.Coverage(n))
	}
	return m
}

// storeAsync writes a transcribed timing set to the cache without blocking
// the caller. Synthesized sets never reach the cache.
func (o *Orchestrator) storeAsync(key timingcache.Key, set *timing.Set) {
	if set.Source != timing.SourceASR {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.cache.Put(ctx, key, set); err != nil {
			slog.Warn("timing cache write failed",
				"owner_id", key.OwnerID, "text_hash", key.TextHash, "error", err)
		}
	}()
}
