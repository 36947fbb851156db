// Package lexicon provides a single Aho-Corasick automaton that serves
// both as an exact dictionary lookup and as a full-text scanner, used
// by the Event Extractor's rule fallback to normalize verbs from its
// verb table.
//
// Adapted from the teacher's dual-purpose entity dictionary
// (pkg/implicit-matcher): same canonicalization and offset-mapping
// core, generalized from narrative entity kinds to an arbitrary string
// tag per pattern.
package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isJoiner returns true for punctuation that commonly appears inside
// multi-word surface forms ("Monkey D. Luffy", "O'Brien", "一直以来").
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// CanonicalizeForMatch normalizes text for matching: fold to lowercase,
// preserve letters/digits/joiners, collapse everything else to single
// spaces, and trim. The same function canonicalizes both compiled
// patterns and scanned text, so offsets stay consistent.
func CanonicalizeForMatch(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// Tok is a canonicalized token anchored to its byte span in the
// original (uncanonicalized) string.
type Tok struct {
	Text  string
	Start int
	End   int
}

// TokenizeWithOffsets splits text into canonicalized tokens while
// preserving byte offsets into the original string.
func TokenizeWithOffsets(s string) []Tok {
	out := make([]Tok, 0, 64)
	i := 0
	for i < len(s) {
		for i < len(s) {
			r, w := utf8.DecodeRuneInString(s[i:])
			if !isSeparator(r) {
				break
			}
			i += w
		}
		start := i
		for i < len(s) {
			r, w := utf8.DecodeRuneInString(s[i:])
			if isSeparator(r) {
				break
			}
			i += w
		}
		end := i
		if start < end {
			out = append(out, Tok{Text: CanonicalizeForMatch(s[start:end]), Start: start, End: end})
		}
	}
	return out
}

// StopWords are filtered out of TokenizeNorm's output.
var StopWords = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"the": true, "of": true, "and": true, "a": true, "an": true,
	"to": true, "in": true, "on": true, "for": true, "at": true, "by": true,
	"is": true, "it": true, "as": true, "be": true, "was": true,
	"are": true, "been": true, "with": true, "from": true, "into": true,
	"that": true, "this": true, "has": true, "have": true, "had": true,
	"his": true, "her": true, "its": true, "their": true,
}

// TokenizeNorm canonicalizes, splits on whitespace, and drops stop words.
func TokenizeNorm(text string) []string {
	words := strings.Fields(CanonicalizeForMatch(text))
	result := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" && !StopWords[w] {
			result = append(result, w)
		}
	}
	return result
}

// buildOffsetMap maps canonicalized byte positions back to original
// byte positions so Scan can report spans against the original text.
func buildOffsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)
	lastWasSpace := true
	origPos := 0

	for _, ch := range original {
		runeLen := utf8.RuneLen(ch)
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			canonLen := utf8.RuneLen(c)
			for i := 0; i < canonLen; i++ {
				mapping = append(mapping, origPos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, origPos)
			lastWasSpace = true
		}
		origPos += runeLen
	}
	mapping = append(mapping, origPos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset >= len(mapping) {
		return originalLen
	}
	if canonOffset < 0 {
		return 0
	}
	return mapping[canonOffset]
}
