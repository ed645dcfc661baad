package align

import (
	"strings"

	"github.com/eliasvob/readsync/pkg/timing"
	"github.com/eliasvob/readsync/pkg/token"
)

// DefaultLookahead is the default number of word tokens the aligner scans
// forward from its cursor before declaring a timing item unmatched. The bound
// is what keeps a single transcription error from dragging the cursor past
// the rest of the passage.
const DefaultLookahead = 8

// Map is a sparse translation from timing-item index to display-token index.
// Not every timing item maps to a token and not every token is covered; an
// unmapped item simply contributes no highlight.
type Map map[int]int

// TokenFor returns the token index for a timing item index, or -1 when the
// item is unmapped (including itemIndex -1, the "nothing active" sentinel).
func (m Map) TokenFor(itemIndex int) int {
	if idx, ok := m[itemIndex]; ok {
		return idx
	}
	return -1
}

// Coverage returns |map| / itemCount, an observable quality signal for how
// much of the timing set found a home in the text. Zero when itemCount is 0.
func (m Map) Coverage(itemCount int) float64 {
	if itemCount == 0 {
		return 0
	}
	return float64(len(m)) / float64(itemCount)
}

// Option is a functional option for configuring an Aligner.
type Option func(*Aligner)

// WithLookahead sets how many word tokens the aligner scans forward per
// timing item. Values <= 0 are ignored.
func WithLookahead(n int) Option {
	return func(a *Aligner) {
		if n > 0 {
			a.lookahead = n
		}
	}
}

// WithMatchers replaces the matcher chain. Matchers are tried in order
// across the look-ahead window; the first stage that produces a match wins,
// so stricter strategies belong earlier in the chain.
func WithMatchers(matchers ...Matcher) Option {
	return func(a *Aligner) {
		if len(matchers) > 0 {
			a.matchers = matchers
		}
	}
}

// Aligner builds alignment maps. Read-only after construction and safe for
// concurrent use.
type Aligner struct {
	matchers  []Matcher
	lookahead int
}

// New returns an Aligner with the default two-stage matcher chain
// (exact, then normalized) and the default look-ahead window.
func New(opts ...Option) *Aligner {
	a := &Aligner{
		matchers:  []Matcher{ExactMatcher{}, NormalizedMatcher{}},
		lookahead: DefaultLookahead,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Build maps each timing item of set to the index of its display token in
// tokens. The walk is monotonic and forward-only: each match consumes the
// matched token and every token before it, and an unmatched item leaves the
// cursor where it was. For sentence-granularity sets the anchor word is the
// first word of the item's text.
func (a *Aligner) Build(set *timing.Set, tokens []token.Token) Map {
	m := make(Map)
	wordIdx := token.Words(tokens)
	cursor := 0 // position within wordIdx, not within tokens

	for _, item := range set.Items {
		spoken := anchorWord(item.Text)
		if spoken == "" {
			continue
		}

		end := cursor + a.lookahead
		if end > len(wordIdx) {
			end = len(wordIdx)
		}

		matched := -1
	scan:
		for _, matcher := range a.matchers {
			for w := cursor; w < end; w++ {
				if matcher.Match(spoken, tokens[wordIdx[w]].Text) {
					matched = w
					break scan
				}
			}
		}

		if matched < 0 {
			continue
		}
		m[item.Index] = wordIdx[matched]
		cursor = matched + 1
	}
	return m
}

// anchorWord returns the word a timing item is anchored on: the item text
// itself at word granularity, its first field for sentence segments.
func anchorWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
