package align

import (
	"testing"

	"github.com/eliasvob/readsync/pkg/timing"
	"github.com/eliasvob/readsync/pkg/token"
)

// wordSet builds a word-granularity timing set with uniform 0.4 s items.
func wordSet(words ...string) *timing.Set {
	items := make([]timing.Item, len(words))
	for i, w := range words {
		items[i] = timing.Item{
			Index: i,
			Text:  w,
			Start: 0.4 * float64(i),
			End:   0.4 * float64(i+1),
		}
	}
	return &timing.Set{Granularity: timing.GranularityWord, Items: items, Source: timing.SourceASR}
}

func TestBuild_FullCoverage(t *testing.T) {
	text := "Yesterday I went to the park."
	tokens := token.Tokenize(text)
	set := wordSet("Yesterday", "I", "went", "to", "the", "park")

	m := New().Build(set, tokens)
	if len(m) != 6 {
		t.Fatalf("mapped = %d, want 6", len(m))
	}
	if cov := m.Coverage(len(set.Items)); cov != 1.0 {
		t.Errorf("coverage = %v, want 1.0", cov)
	}
	// Every mapped token must be a word token with the expected text.
	for itemIdx, tokIdx := range m {
		if !tokens[tokIdx].IsWord {
			t.Errorf("item %d mapped to non-word token %q", itemIdx, tokens[tokIdx].Text)
		}
	}
}

func TestBuild_NormalizedStageHandlesPunctuation(t *testing.T) {
	tokens := token.Tokenize("Stop! Don't run.")
	set := wordSet("stop", "dont", "run")

	m := New().Build(set, tokens)
	if len(m) != 3 {
		t.Fatalf("mapped = %d, want 3 (map %v)", len(m), m)
	}
}

func TestBuild_Monotonic(t *testing.T) {
	tokens := token.Tokenize("the cat and the dog and the bird")
	// Repeated words: each "the" must bind to a later token than the last.
	set := wordSet("the", "the", "the")

	m := New().Build(set, tokens)
	if len(m) != 3 {
		t.Fatalf("mapped = %d, want 3", len(m))
	}
	prev := -1
	for i := 0; i < 3; i++ {
		tok := m.TokenFor(i)
		if tok <= prev {
			t.Errorf("item %d mapped to token %d, not after %d", i, tok, prev)
		}
		prev = tok
	}
}

func TestBuild_UnmatchedItemLeftUnmapped(t *testing.T) {
	tokens := token.Tokenize("a short sentence")
	set := wordSet("a", "completely", "sentence")

	m := New().Build(set, tokens)
	if _, ok := m[1]; ok {
		t.Error("hallucinated word should stay unmapped")
	}
	// The surrounding items still align.
	if m.TokenFor(0) < 0 || m.TokenFor(2) < 0 {
		t.Errorf("neighbours unmapped: %v", m)
	}
}

func TestBuild_BoundedLookaheadPreventsRunaway(t *testing.T) {
	tokens := token.Tokenize("one two three four five six seven eight nine ten")
	// An ASR word matching only the far end of the text must not be chased
	// past the window.
	set := wordSet("ten")

	m := New(WithLookahead(3)).Build(set, tokens)
	if len(m) != 0 {
		t.Errorf("match beyond the window should be rejected, got %v", m)
	}
}

func TestBuild_SentenceGranularityAnchorsFirstWord(t *testing.T) {
	tokens := token.Tokenize("Hello there. Goodbye now.")
	set := &timing.Set{
		Granularity: timing.GranularitySentence,
		Items: []timing.Item{
			{Index: 0, Text: "Hello there.", Start: 0, End: 1.0},
			{Index: 1, Text: "Goodbye now.", Start: 1.0, End: 2.0},
		},
	}

	m := New().Build(set, tokens)
	if got := m.TokenFor(0); tokensText(tokens, got) != "Hello" {
		t.Errorf("item 0 anchored on %q, want Hello", tokensText(tokens, got))
	}
	if got := m.TokenFor(1); tokensText(tokens, got) != "Goodbye" {
		t.Errorf("item 1 anchored on %q, want Goodbye", tokensText(tokens, got))
	}
}

func TestBuild_DesyncRecovers(t *testing.T) {
	tokens := token.Tokenize("alpha beta gamma delta epsilon")
	// "bravo" is a transcription error; later items must still align.
	set := wordSet("alpha", "bravo", "gamma", "delta")

	m := New().Build(set, tokens)
	if m.TokenFor(2) < 0 || m.TokenFor(3) < 0 {
		t.Errorf("alignment did not recover after a bad item: %v", m)
	}
	if m.TokenFor(2) <= m.TokenFor(0) {
		t.Errorf("recovered items out of order: %v", m)
	}
}

func TestTokenFor_Sentinel(t *testing.T) {
	m := Map{0: 2}
	if m.TokenFor(-1) != -1 {
		t.Error("TokenFor(-1) must be -1")
	}
	if m.TokenFor(5) != -1 {
		t.Error("TokenFor(unmapped) must be -1")
	}
}

func TestPhoneticMatcher(t *testing.T) {
	m := NewPhoneticMatcher()
	if !m.Match("their", "there") {
		t.Error("their/there should match phonetically")
	}
	if m.Match("cat", "elephant") {
		t.Error("cat/elephant should not match")
	}
}

func TestBuild_PhoneticStageRescuesNearMiss(t *testing.T) {
	tokens := token.Tokenize("the Gruffalo smiled")
	set := wordSet("the", "gruffallo", "smiled")

	strict := New().Build(set, tokens)
	if _, ok := strict[1]; ok {
		t.Fatal("misspelling should not match without the phonetic stage")
	}

	loose := New(WithMatchers(ExactMatcher{}, NormalizedMatcher{}, NewPhoneticMatcher())).Build(set, tokens)
	if _, ok := loose[1]; !ok {
		t.Errorf("phonetic stage should rescue the near-miss: %v", loose)
	}
}

func TestCoverage_EmptySet(t *testing.T) {
	if c := (Map{}).Coverage(0); c != 0 {
		t.Errorf("coverage of empty set = %v, want 0", c)
	}
}

func tokensText(tokens []token.Token, idx int) string {
	if idx < 0 || idx >= len(tokens) {
		return ""
	}
	return tokens[idx].Text
}
