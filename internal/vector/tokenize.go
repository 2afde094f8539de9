package vector

import "strings"

// stopWords are dropped during tokenization. Short function words add
// noise to both BM25 and the hashed vectors.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"to": true, "of": true, "in": true, "on": true, "at": true,
	"for": true, "with": true, "and": true, "or": true, "but": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "very": true, "as": true, "by": true, "from": true,
}

// Tokenize lowercases text, splits on non-word characters, and drops
// stop words and single-character tokens. Order and duplicates are
// preserved. Empty or stop-word-only input yields an empty slice.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		return true
	case r >= 0x80:
		// Keep non-ASCII letters together; ToLower already folded case.
		return true
	}
	return false
}
