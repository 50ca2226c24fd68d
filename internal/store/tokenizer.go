package store

import (
	"regexp"
	"strings"
	"unicode"
)

// termRegex matches runs of letters, digits and underscores.
var termRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// DefaultStopWords are URI scheme and host fragments that appear in nearly
// every namespace and carry no meaning for keyword search.
var DefaultStopWords = []string{"http", "https", "www", "urn"}

// TokenizeTerm splits an RDF keyword or namespace into lowercase search
// tokens. It breaks on punctuation, snake_case and camelCase, so
// "birthPlace" gives [birth place] and "Barack_Obama" gives [barack obama].
func TokenizeTerm(text string) []string {
	var tokens []string
	for _, word := range termRegex.FindAllString(text, -1) {
		for _, part := range SplitTermToken(word) {
			tokens = append(tokens, strings.ToLower(part))
		}
	}
	return tokens
}

// SplitTermToken splits on underscores, then on case changes.
func SplitTermToken(token string) []string {
	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, SplitCamelCase(part)...)
		}
	}
	return result
}

// SplitCamelCase splits camelCase and PascalCase words, keeping acronyms
// together:
//   - "birthPlace" -> ["birth", "Place"]
//   - "ISBNNumber" -> ["ISBN", "Number"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// FilterStopWords removes stop words from tokens.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts stop words to a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
