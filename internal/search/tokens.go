// Package search derives the precomputed tokens posts are indexed by.
package search

import (
	"strings"
	"unicode"

	"github.com/juju/collections/set"
)

// separators is the punctuation posts are split on, in addition to whitespace.
const separators = ".?!/,':-#@_&*"

var stopWords = set.NewStrings("the", "be", "to", "of", "and", "a", "in")

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(separators, r)
}

// Tokens splits description into lower-cased search tokens, dropping empty
// tokens and stop words. Each token appears once, in first-seen order.
func Tokens(description string) []string {
	fields := strings.FieldsFunc(description, isSeparator)

	seen := set.NewStrings()
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.ToLower(field)
		if token == "" || IsStopWord(token) || seen.Contains(token) {
			continue
		}
		seen.Add(token)
		tokens = append(tokens, token)
	}

	return tokens
}

// NormalizeTerm prepares a user-entered search term for token lookup.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// IsStopWord reports whether token is never indexed.
func IsStopWord(token string) bool {
	return stopWords.Contains(strings.ToLower(token))
}
