package model

import (
	"regexp"
	"strings"
	"unicode"
)

var wordSeparators = regexp.MustCompile(`[_\-\s.]+`)

// acronyms render fully upper-cased in derived labels.
var acronyms = map[string]struct{}{"id": {}, "url": {}, "uid": {}, "api": {}, "json": {}}

// DefaultLabeler turns a record key into a column/field title: separators and
// camelCase boundaries become spaces, the first word is capitalised and known
// acronyms are upper-cased ("userId" → "User ID").
func DefaultLabeler(key string) string {
	var words []string
	for _, chunk := range wordSeparators.Split(key, -1) {
		words = append(words, splitCamel(chunk)...)
	}

	out := make([]string, 0, len(words))
	for i, word := range words {
		lower := strings.ToLower(word)
		switch {
		case isAcronym(lower):
			out = append(out, strings.ToUpper(lower))
		case i == 0:
			out = append(out, capitalise(lower))
		default:
			out = append(out, lower)
		}
	}
	return strings.Join(out, " ")
}

func splitCamel(chunk string) []string {
	var (
		words   []string
		current []rune
	)
	runes := []rune(chunk)
	for i, r := range runes {
		if i > 0 && boundary(runes[i-1], r) {
			words = append(words, string(current))
			current = current[:0]
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		words = append(words, string(current))
	}
	return words
}

func boundary(prev, r rune) bool {
	return (unicode.IsLower(prev) && unicode.IsUpper(r)) ||
		(unicode.IsLetter(prev) && unicode.IsDigit(r)) ||
		(unicode.IsDigit(prev) && unicode.IsLetter(r))
}

func isAcronym(word string) bool {
	_, ok := acronyms[word]
	return ok
}

func capitalise(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(word)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
