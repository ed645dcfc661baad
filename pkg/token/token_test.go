package token

import (
	"strings"
	"testing"
)

func countWords(tokens []Token) int {
	n := 0
	for _, t := range tokens {
		if t.IsWord {
			n++
		}
	}
	return n
}

func TestTokenize_ReconstructsOriginalText(t *testing.T) {
	texts := []string{
		"Yesterday I went to the park.",
		"Hello,  world!\nNew line\ttab.",
		"Don't stop — it's a well-known trick.",
		"",
		"   ",
		"no-trailing-punct",
	}
	for _, text := range texts {
		var b strings.Builder
		for _, tok := range Tokenize(text) {
			b.WriteString(tok.Text)
		}
		if b.String() != text {
			t.Errorf("reconstruction mismatch:\n got %q\nwant %q", b.String(), text)
		}
	}
}

func TestTokenize_WordCount(t *testing.T) {
	tokens := Tokenize("Yesterday I went to the park.")
	if got := countWords(tokens); got != 6 {
		t.Errorf("word count = %d, want 6", got)
	}
}

func TestTokenize_PunctuationIsSeparate(t *testing.T) {
	tokens := Tokenize("Hello, world!")
	want := []Token{
		{Text: "Hello", IsWord: true},
		{Text: ", ", IsWord: false},
		{Text: "world", IsWord: true},
		{Text: "!", IsWord: false},
	}
	if len(tokens) != len(want) {
		t.Fatalf("len = %d, want %d (%+v)", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTokenize_ContractionsAndHyphens(t *testing.T) {
	tokens := Tokenize("don't well-known")
	if got := countWords(tokens); got != 2 {
		t.Fatalf("word count = %d, want 2 (%+v)", got, tokens)
	}
	if tokens[0].Text != "don't" {
		t.Errorf("first word = %q, want %q", tokens[0].Text, "don't")
	}
	if tokens[2].Text != "well-known" {
		t.Errorf("third token = %q, want %q", tokens[2].Text, "well-known")
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	text := "The same text, tokenized twice."
	a := Tokenize(text)
	b := Tokenize(text)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("token %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestWords(t *testing.T) {
	tokens := Tokenize("One, two.")
	idx := Words(tokens)
	if len(idx) != 2 {
		t.Fatalf("len = %d, want 2", len(idx))
	}
	if tokens[idx[0]].Text != "One" || tokens[idx[1]].Text != "two" {
		t.Errorf("word indices point at %q and %q", tokens[idx[0]].Text, tokens[idx[1]].Text)
	}
}
