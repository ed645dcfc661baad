// Package token splits narration text into an ordered sequence of display
// tokens. Word tokens are the units the aligner can anchor timings to;
// non-word tokens (whitespace, punctuation) are kept so the renderer can
// reproduce the original text exactly by concatenating all token texts.
//
// Tokenization is a pure function of the input text: the same text always
// yields the same token sequence. The aligner's output is only valid against
// the exact sequence it was built for, so this determinism is load-bearing.
package token

import "unicode"

// Token is one display unit of the narration text.
type Token struct {
	// Text is the exact substring of the source text this token covers.
	Text string

	// IsWord reports whether the token is a word (contains letters or
	// digits) as opposed to whitespace or punctuation.
	IsWord bool
}

// Tokenize splits text on word boundaries. Runs of letters and digits
// (including common intra-word connectors such as apostrophes and hyphens
// when surrounded by letters) become word tokens; everything between them
// survives as non-word tokens so that no character of the input is lost.
func Tokenize(text string) []Token {
	runes := []rune(text)
	var tokens []Token

	i := 0
	for i < len(runes) {
		start := i
		if isWordRune(runes[i]) {
			for i < len(runes) && (isWordRune(runes[i]) || isConnector(runes, i)) {
				i++
			}
			tokens = append(tokens, Token{Text: string(runes[start:i]), IsWord: true})
		} else {
			for i < len(runes) && !isWordRune(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{Text: string(runes[start:i]), IsWord: false})
		}
	}
	return tokens
}

// Words returns the indices of the word tokens in tokens, in order.
func Words(tokens []Token) []int {
	idx := make([]int, 0, len(tokens))
	for i, t := range tokens {
		if t.IsWord {
			idx = append(idx, i)
		}
	}
	return idx
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isConnector reports whether the rune at position i joins two word runes,
// so that contractions ("don't") and hyphenated words ("well-known") stay
// single tokens.
func isConnector(runes []rune, i int) bool {
	if runes[i] != '\'' && runes[i] != '’' && runes[i] != '-' {
		return false
	}
	return i > 0 && i+1 < len(runes) && isWordRune(runes[i-1]) && isWordRune(runes[i+1])
}
