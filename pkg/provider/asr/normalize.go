package asr

import (
	"time"

	"github.com/eliasvob/readsync/pkg/timing"
)

// Normalize converts a raw provider [Result] into a canonical [timing.Set].
//
// Word-level timestamps are preferred: when any word items survive
// sanitization the set has word granularity and segments are ignored.
// Otherwise the segments are used at sentence granularity. When both arrays
// are empty (or empty after sanitization) Normalize fails with [ErrNoTiming],
// which is the caller's cue to synthesize fallback timing instead.
func Normalize(res Result) (*timing.Set, error) {
	words := make([]timing.Item, len(res.Words))
	for i, w := range res.Words {
		words[i] = timing.Item{Text: w.Text, Start: w.Start, End: w.End}
	}
	if items := timing.Sanitize(words); len(items) > 0 {
		return &timing.Set{
			Granularity: timing.GranularityWord,
			Items:       items,
			Source:      timing.SourceASR,
			Model:       res.Model,
			CreatedAt:   time.Now().UTC(),
		}, nil
	}

	segs := make([]timing.Item, len(res.Segments))
	for i, s := range res.Segments {
		segs[i] = timing.Item{Text: s.Text, Start: s.Start, End: s.End}
	}
	if items := timing.Sanitize(segs); len(items) > 0 {
		return &timing.Set{
			Granularity: timing.GranularitySentence,
			Items:       items,
			Source:      timing.SourceASR,
			Model:       res.Model,
			CreatedAt:   time.Now().UTC(),
		}, nil
	}

	return nil, ErrNoTiming
}
