package grammar

import "unicode"

// Span is a contiguous normalized-offset range claimed by one pattern.
// Offsets are half-open: [Start, End).
type Span struct {
	Start   int
	End     int
	Pattern int
}

// Match attempts the grammar's entry rule at pos and returns the end offset
// of the consumed input on success. Matching never backtracks across a
// committed repetition.
func (g *Grammar) Match(rs []rune, pos int) (end int, ok bool) {
	return g.eval(g.entry, rs, pos)
}

func (g *Grammar) eval(e Expr, rs []rune, pos int) (int, bool) {
	switch t := e.(type) {
	case *Literal:
		if pos+len(t.Text) > len(rs) {
			return 0, false
		}
		for i, want := range t.Text {
			if !foldEq(rs[pos+i], want, t.Fold) {
				return 0, false
			}
		}
		return pos + len(t.Text), true
	case *Class:
		if pos >= len(rs) {
			return 0, false
		}
		if t.matches(rs[pos]) {
			return pos + 1, true
		}
		return 0, false
	case *Any:
		if pos >= len(rs) {
			return 0, false
		}
		return pos + 1, true
	case *Ref:
		return g.eval(g.rules[t.Name], rs, pos)
	case *Seq:
		cur := pos
		for _, sub := range t.Exprs {
			next, ok := g.eval(sub, rs, cur)
			if !ok {
				return 0, false
			}
			cur = next
		}
		return cur, true
	case *Choice:
		for _, alt := range t.Alts {
			if end, ok := g.eval(alt, rs, pos); ok {
				return end, true
			}
		}
		return 0, false
	case *Repeat:
		cur := pos
		count := 0
		for t.Max < 0 || count < t.Max {
			next, ok := g.eval(t.Expr, rs, cur)
			if !ok || next == cur {
				break
			}
			cur = next
			count++
		}
		if count < t.Min {
			return 0, false
		}
		return cur, true
	}
	return 0, false
}

func (c *Class) matches(r rune) bool {
	in := c.contains(r)
	if !in && c.Fold {
		if lo := unicode.ToLower(r); lo != r {
			in = c.contains(lo)
		}
		if !in {
			if up := unicode.ToUpper(r); up != r {
				in = c.contains(up)
			}
		}
	}
	if c.Neg {
		return !in
	}
	return in
}

func (c *Class) contains(r rune) bool {
	for _, rg := range c.Ranges {
		if r >= rg.Lo && r <= rg.Hi {
			return true
		}
	}
	return false
}

// Set is an ordered collection of compiled patterns. It is immutable and safe
// to share across concurrent documents and passes.
type Set struct {
	grammars []*Grammar
}

// CompileSet compiles every pattern, failing on the first invalid one. An
// empty pattern set is a configuration error, not a silent no-op.
func CompileSet(patterns []string) (*Set, error) {
	if len(patterns) == 0 {
		return nil, &Error{Msg: "empty pattern set"}
	}
	s := &Set{grammars: make([]*Grammar, 0, len(patterns))}
	for _, p := range patterns {
		g, err := Compile(p)
		if err != nil {
			return nil, err
		}
		s.grammars = append(s.grammars, g)
	}
	return s, nil
}

// Len returns the number of compiled patterns.
func (s *Set) Len() int { return len(s.grammars) }

// Scan walks the stream left to right. At each offset every pattern is tried
// in declaration order; the first success becomes a span and scanning resumes
// at its end, so spans never overlap or nest. Empty matches are ignored: a
// zero-width span redacts nothing and would stall the scan.
func (s *Set) Scan(rs []rune) []Span {
	var spans []Span
	pos := 0
	for pos < len(rs) {
		matched := false
		for pi, g := range s.grammars {
			end, ok := g.Match(rs, pos)
			if ok && end > pos {
				spans = append(spans, Span{Start: pos, End: end, Pattern: pi})
				pos = end
				matched = true
				break
			}
		}
		if !matched {
			pos++
		}
	}
	return spans
}
