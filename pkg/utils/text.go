// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// NormalizeText lowercases s, strips the punctuation characters . , ! ?,
// collapses runs of whitespace to single spaces, and trims the result.
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '.', ',', '!', '?':
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(SplitWords(b.String()), " ")
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// JoinWords joins words with a space.
func JoinWords(words []string) string {
	return strings.Join(words, " ")
}

// TruncateWords returns up to maxWords words from the slice.
func TruncateWords(words []string, maxWords int) []string {
	if len(words) <= maxWords {
		return words
	}
	return words[:maxWords]
}

// Bigrams returns every adjacent word pair joined with a single space,
// in order. Fewer than two words yields nil.
func Bigrams(words []string) []string {
	if len(words) < 2 {
		return nil
	}
	out := make([]string, 0, len(words)-1)
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}
