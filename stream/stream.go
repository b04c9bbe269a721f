// Package stream builds the normalized matching substrate from recognized
// tokens. Token text is filtered to letters and digits and concatenated with
// no separator, so a pattern may straddle token boundaries silently (e.g.
// "123-45-6789" recognized as three tokens normalizes to "123456789"). Every
// kept character remembers which token and character it came from, so match
// offsets can be mapped back onto page geometry.
package stream

import (
	"unicode"

	"github.com/wudi/redactkit/ocr"
)

// Origin identifies the source of one normalized character.
type Origin struct {
	// Token is the index into the token slice the stream was built from.
	Token int
	// Char is the rune index of the character within that token's text.
	Char int
}

// Normalized is the concatenated, normalization-filtered text of one
// recognition pass plus the offset map back to source tokens. It is read-only
// after construction.
type Normalized struct {
	runes   []rune
	origins []Origin
}

// Keep reports whether a rune survives normalization.
func Keep(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// NormalizeText filters arbitrary text the same way token text is filtered
// when the stream is built. Useful for turning operator-supplied literals
// into match targets.
func NormalizeText(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if Keep(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

// Build constructs the normalized stream for an ordered token sequence. An
// empty token slice yields an empty stream, not an error; callers detect "no
// text found" separately.
func Build(tokens []ocr.Token) *Normalized {
	n := &Normalized{}
	for ti, tok := range tokens {
		ci := 0
		for _, r := range tok.Text {
			if Keep(r) {
				n.runes = append(n.runes, r)
				n.origins = append(n.origins, Origin{Token: ti, Char: ci})
			}
			ci++
		}
	}
	return n
}

// Len returns the number of normalized characters.
func (n *Normalized) Len() int { return len(n.runes) }

// At returns the normalized character at offset i.
func (n *Normalized) At(i int) rune { return n.runes[i] }

// Runes exposes the normalized characters. Callers must not mutate the
// returned slice.
func (n *Normalized) Runes() []rune { return n.runes }

// Text returns the normalized stream as a string.
func (n *Normalized) Text() string { return string(n.runes) }

// Origin maps a normalized offset back to its source token and character.
func (n *Normalized) Origin(i int) (Origin, bool) {
	if i < 0 || i >= len(n.origins) {
		return Origin{}, false
	}
	return n.origins[i], true
}

// TokenRange resolves the half-open normalized range [start, end) to the
// inclusive range of token indices whose characters it covers. The offset map
// is monotonic, so the range is always contiguous.
func (n *Normalized) TokenRange(start, end int) (first, last int, ok bool) {
	if start < 0 || end > len(n.origins) || start >= end {
		return 0, 0, false
	}
	return n.origins[start].Token, n.origins[end-1].Token, true
}
