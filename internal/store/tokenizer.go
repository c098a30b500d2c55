package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric runs in prose text. Grounded on the
// teacher's tokenizer.go, simplified for document text: no camelCase/
// snake_case splitting since prose has no identifier casing convention.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Tokenize splits text into lowercased tokens of at least minLength runes.
func Tokenize(text string, minLength int) []string {
	words := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= minLength {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}
