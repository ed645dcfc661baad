// Package timing defines the canonical timed-transcription data model for
// readsync: an ordered sequence of (text, start, end) items anchoring a
// narration transcript to audio time, plus the sanitization pipeline that
// repairs the heterogeneous output of ASR providers into that canonical form.
//
// All times are expressed in seconds as float64. A [Set] is immutable after
// creation: components that need a better-quality version (for example a
// duration-adjusted fallback) build a new Set and swap the whole value,
// never patch items in place.
package timing

import "time"

// Granularity describes what one timing item corresponds to.
type Granularity string

const (
	// GranularityWord means each item is a single spoken word.
	GranularityWord Granularity = "word"

	// GranularitySentence means each item is a sentence or ASR segment.
	GranularitySentence Granularity = "sentence"
)

// Source describes how a [Set] was produced.
type Source string

const (
	// SourceASR marks timings produced by an ASR provider.
	SourceASR Source = "asr"

	// SourceFallback marks uniformly-synthesized timings based on an
	// estimated audio duration.
	SourceFallback Source = "fallback"

	// SourceFallbackAdjusted marks uniformly-synthesized timings recomputed
	// once the true audio duration became known.
	SourceFallbackAdjusted Source = "fallback-adjusted"
)

// MinItemDuration is the minimum duration (seconds) an item is given when its
// end timestamp is repaired during sanitization.
const MinItemDuration = 0.1

// Item anchors one transcription unit (word or segment) to audio time.
// Start is inclusive, End is exclusive.
type Item struct {
	// Index is the item's position within its Set, assigned during
	// sanitization after sorting.
	Index int `json:"index"`

	// Text is the transcribed content of this unit, trimmed of surrounding
	// whitespace.
	Text string `json:"text"`

	// Start is the audio position in seconds at which the unit begins.
	Start float64 `json:"start"`

	// End is the audio position in seconds at which the unit ends. Always
	// >= Start after sanitization.
	End float64 `json:"end"`
}

// Contains reports whether the half-open interval [Start, End) covers pos.
func (it Item) Contains(pos float64) bool {
	return pos >= it.Start && pos < it.End
}

// Set is a complete timing sequence for one (narration, text) pair.
type Set struct {
	Granularity Granularity `json:"granularity"`
	Items       []Item      `json:"items"`
	Source      Source      `json:"source"`

	// Model names the ASR model (or synthesizer) that produced the items.
	Model string `json:"model"`

	CreatedAt time.Time `json:"created_at"`
}

// Duration returns the end timestamp of the last item, or 0 for an empty set.
func (s *Set) Duration() float64 {
	if len(s.Items) == 0 {
		return 0
	}
	return s.Items[len(s.Items)-1].End
}

// IndexAt returns the index of the item whose [Start, End) interval contains
// pos, using binary search over the sorted items. It returns -1 when pos
// falls before the first item, after the last, or inside a gap between
// items; a gap simply means no unit is highlighted at that position.
func (s *Set) IndexAt(pos float64) int {
	items := s.Items
	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi) / 2
		if items[mid].Start <= pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	// lo is the first item with Start > pos; the candidate is the one before.
	if lo == 0 {
		return -1
	}
	if items[lo-1].Contains(pos) {
		return lo - 1
	}
	return -1
}
