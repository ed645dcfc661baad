// Package align maps timing items onto display tokens. The aligner walks the
// two sequences front to back in a single pass: ASR transcriptions are
// strictly time-ordered and the narration text is read once without
// repetition, so the search never re-matches an already-consumed token.
package align

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Matcher decides whether an ASR-transcribed word corresponds to a word
// token from the source text. Matchers are tried in registration order, so a
// stricter matcher placed first wins over a looser one later in the chain.
// Implementations must be stateless or read-only after construction.
type Matcher interface {
	// Match reports whether spoken (a timing item's word) corresponds to
	// written (a word token from the source text).
	Match(spoken, written string) bool

	// Name identifies the matcher in logs and metrics.
	Name() string
}

// ExactMatcher matches on case-insensitive string equality of the trimmed
// words.
type ExactMatcher struct{}

// Match implements Matcher.
func (ExactMatcher) Match(spoken, written string) bool {
	return strings.EqualFold(strings.TrimSpace(spoken), strings.TrimSpace(written))
}

// Name implements Matcher.
func (ExactMatcher) Name() string { return "exact" }

// NormalizedMatcher matches after stripping every rune that is not a letter
// or digit and lowercasing, so "Park." matches "park" and "don't" matches
// "dont".
type NormalizedMatcher struct{}

// Match implements Matcher.
func (NormalizedMatcher) Match(spoken, written string) bool {
	a := normalizeWord(spoken)
	b := normalizeWord(written)
	if a == "" || b == "" {
		return false
	}
	return a == b
}

// Name implements Matcher.
func (NormalizedMatcher) Name() string { return "normalized" }

// normalizeWord lowercases and drops all non-letter, non-digit runes.
func normalizeWord(w string) string {
	var b strings.Builder
	for _, r := range w {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

const (
	defaultPhoneticJWThreshold = 0.80
)

// PhoneticMatcher matches words that sound alike: Double Metaphone codes must
// overlap and the Jaro-Winkler similarity of the normalized strings must
// clear a threshold. It rescues ASR near-misses ("there" vs "their",
// "Gruffalo" vs "gruffallo") that the exact and normalized stages reject.
type PhoneticMatcher struct {
	jwThreshold float64
}

// PhoneticOption is a functional option for configuring a PhoneticMatcher.
type PhoneticOption func(*PhoneticMatcher)

// WithJaroWinklerThreshold sets the minimum Jaro-Winkler score required in
// addition to phonetic-code overlap. Default: 0.80.
func WithJaroWinklerThreshold(threshold float64) PhoneticOption {
	return func(m *PhoneticMatcher) { m.jwThreshold = threshold }
}

// NewPhoneticMatcher returns a PhoneticMatcher configured with the supplied
// options.
func NewPhoneticMatcher(opts ...PhoneticOption) *PhoneticMatcher {
	m := &PhoneticMatcher{jwThreshold: defaultPhoneticJWThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match implements Matcher.
func (m *PhoneticMatcher) Match(spoken, written string) bool {
	a := normalizeWord(spoken)
	b := normalizeWord(written)
	if a == "" || b == "" {
		return false
	}

	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if !codesOverlap(ap, as, bp, bs) {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= m.jwThreshold
}

// Name implements Matcher.
func (m *PhoneticMatcher) Name() string { return "phonetic" }

// codesOverlap reports whether any non-empty primary/secondary Double
// Metaphone code is shared between the two words.
func codesOverlap(ap, as, bp, bs string) bool {
	for _, a := range []string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || (bs != "" && a == bs) {
			return true
		}
	}
	return false
}
