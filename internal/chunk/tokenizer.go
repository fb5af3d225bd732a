// Package chunk splits extracted document pages into bounded, overlapping
// chunks ready for embedding.
package chunk

import "strings"

// Tokenize splits text into whitespace-delimited tokens. Punctuation stays
// attached to its word so chunks reassemble into readable text.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// CountTokens returns the token count of text.
func CountTokens(text string) int {
	return len(Tokenize(text))
}

// Join reassembles tokens into chunk text.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}
