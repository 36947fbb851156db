package lexicon

import (
	"github.com/coregx/ahocorasick"
)

// Entry is one surface-form-to-tag registration: a verb table row
// ("喝" -> "drink"), a numeral ("两" -> "2"), or an attribute pattern
// word ("甜" -> "taste").
type Entry struct {
	Surface string
	Tag     string
}

// Dictionary is a compiled Aho-Corasick automaton over Entry surface
// forms, usable both for exact lookup and for full-text scanning in a
// single pass.
type Dictionary struct {
	ac           *ahocorasick.Automaton
	patternIndex map[string]int
	patternTags  [][]string
	patterns     []string
}

// Compile builds a Dictionary from entries. Entries sharing a
// canonicalized surface form accumulate tags rather than overwrite.
func Compile(entries []Entry) (*Dictionary, error) {
	d := &Dictionary{
		patternIndex: make(map[string]int),
	}

	for _, e := range entries {
		key := CanonicalizeForMatch(e.Surface)
		if key == "" {
			continue
		}
		idx, ok := d.patternIndex[key]
		if !ok {
			idx = len(d.patterns)
			d.patterns = append(d.patterns, key)
			d.patternIndex[key] = idx
			d.patternTags = append(d.patternTags, nil)
		}
		d.patternTags[idx] = appendUniqueTag(d.patternTags[idx], e.Tag)
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(d.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	d.ac = automaton
	return d, nil
}

// Lookup returns the tags registered for an exact surface form.
func (d *Dictionary) Lookup(surface string) []string {
	key := CanonicalizeForMatch(surface)
	idx, ok := d.patternIndex[key]
	if !ok {
		return nil
	}
	return d.patternTags[idx]
}

// Match is one scan hit, with offsets into the original (uncanonicalized) text.
type Match struct {
	Start, End int
	Text       string
	Tags       []string
}

// Scan finds every dictionary hit in text in O(n) via the shared
// automaton, mapping canonicalized offsets back onto the original
// string so callers can report accurate spans.
func (d *Dictionary) Scan(text string) []Match {
	if d.ac == nil {
		return nil
	}
	canon := CanonicalizeForMatch(text)
	offsetMap := buildOffsetMap(text)

	hits := d.ac.FindAllOverlapping([]byte(canon))
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		start := mapOffset(h.Start, offsetMap, len(text))
		end := mapOffset(h.End, offsetMap, len(text))
		if start >= len(text) || end > len(text) || start >= end {
			continue
		}
		out = append(out, Match{
			Start: start,
			End:   end,
			Text:  text[start:end],
			Tags:  d.patternTags[h.PatternID],
		})
	}
	return out
}

// Contains reports whether text contains any dictionary entry at all.
func (d *Dictionary) Contains(text string) bool {
	return len(d.Scan(text)) > 0
}

func appendUniqueTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
