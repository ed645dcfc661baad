// Package synth builds uniform-duration fallback timing when ASR timing is
// unavailable, failed, or came back empty. The narration still plays and the
// highlight still advances, just on an evenly-divided schedule instead of
// real speech timing.
package synth

import (
	"strings"
	"time"

	"github.com/eliasvob/readsync/pkg/timing"
)

// DefaultWordsPerSecond is the assumed narration rate (~200 words/minute)
// used to estimate audio duration before the real duration is known. It is an
// empirical tuning value, not a derived constant, and materially affects
// perceived sync quality, so keep it configurable.
const DefaultWordsPerSecond = 3.3

// modelName identifies synthesized sets in the timing.Set Model field.
const modelName = "uniform-synth"

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithWordsPerSecond overrides the assumed narration rate used by
// [Synthesizer.Estimate]. Values <= 0 are ignored.
func WithWordsPerSecond(rate float64) Option {
	return func(s *Synthesizer) {
		if rate > 0 {
			s.wordsPerSecond = rate
		}
	}
}

// Synthesizer produces uniform fallback timing sets. It is stateless apart
// from configuration and safe for concurrent use.
type Synthesizer struct {
	wordsPerSecond float64
}

// New returns a Synthesizer configured with the supplied options.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{wordsPerSecond: DefaultWordsPerSecond}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Estimate synthesizes timing for text using an audio duration estimated from
// the configured narration rate. The result has source
// [timing.SourceFallback]; once the true audio duration is known the caller
// should supersede it via [Synthesizer.WithDuration].
func (s *Synthesizer) Estimate(text string) *timing.Set {
	words := strings.Fields(text)
	duration := float64(len(words)) / s.wordsPerSecond
	return s.uniform(words, duration, timing.SourceFallback)
}

// WithDuration synthesizes timing for text spread uniformly over the known
// audio duration (seconds). The result has source
// [timing.SourceFallbackAdjusted]: its last item ends exactly at duration.
func (s *Synthesizer) WithDuration(text string, duration float64) *timing.Set {
	return s.uniform(strings.Fields(text), duration, timing.SourceFallbackAdjusted)
}

// uniform assigns each word an equal share of duration. Deterministic for a
// fixed (word count, duration) pair: item boundaries are computed from the
// word index each time, not accumulated, so re-running yields identical
// values.
func (s *Synthesizer) uniform(words []string, duration float64, source timing.Source) *timing.Set {
	set := &timing.Set{
		Granularity: timing.GranularityWord,
		Source:      source,
		Model:       modelName,
		CreatedAt:   time.Now().UTC(),
	}
	if len(words) == 0 || duration <= 0 {
		return set
	}

	perWord := duration / float64(len(words))
	set.Items = make([]timing.Item, len(words))
	for i, w := range words {
		set.Items[i] = timing.Item{
			Index: i,
			Text:  w,
			Start: float64(i) * perWord,
			End:   float64(i+1) * perWord,
		}
	}
	return set
}
