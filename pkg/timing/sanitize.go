package timing

import (
	"sort"
	"strings"
)

// Sanitize repairs a raw item sequence into canonical form. ASR providers
// routinely return empty fragments, negative timestamps, inverted intervals,
// and overlapping neighbours; all of these are repaired locally rather than
// surfaced as errors.
//
// The repair steps, in order:
//
//  1. Trim each item's text and discard items that are empty afterwards.
//  2. Coerce negative start/end values to zero.
//  3. Sort items ascending by start (stable, preserving provider order for
//     equal starts).
//  4. Repair inverted intervals: end < start becomes start + [MinItemDuration].
//  5. Clamp overlaps: when item i starts before item i-1 ends, the previous
//     item's end is clamped down to the current item's start. Later items win
//     ties, since ASR confidence typically increases with more context.
//  6. Reassign Index to the final position of each item.
//
// The input slice is not modified.
func Sanitize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.Text = strings.TrimSpace(it.Text)
		if it.Text == "" {
			continue
		}
		if it.Start < 0 {
			it.Start = 0
		}
		if it.End < 0 {
			it.End = 0
		}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})

	for i := range out {
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start + MinItemDuration
		}
	}

	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			out[i-1].End = out[i].Start
		}
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

// Validate reports whether items satisfy the canonical invariants: sorted
// ascending by start, pairwise non-overlapping, and end >= start for every
// item. It is used by tests and by ingestion paths that want a cheap
// assertion before trusting externally-supplied data.
func Validate(items []Item) bool {
	for i, it := range items {
		if it.End < it.Start {
			return false
		}
		if i > 0 {
			if it.Start < items[i-1].Start {
				return false
			}
			if it.Start < items[i-1].End {
				return false
			}
		}
	}
	return true
}
