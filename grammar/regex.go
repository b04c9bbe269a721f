package grammar

import "fmt"

// parseRegexLite compiles the ~"..." terminal sublanguage: literal runs,
// character classes, ., \d and \w escapes, and the quantifiers + * ?.
// Anything beyond that (groups, alternation, anchors, counted repetition) is
// rejected; alternation and grouping belong at the rule-expression level.
func parseRegexLite(text string, fold bool, src string) (Expr, error) {
	rs := []rune(text)
	i := 0
	if len(rs) >= 4 && string(rs[:4]) == "(?i)" {
		fold = true
		i = 4
	}

	var exprs []Expr
	var pending []rune

	flush := func() {
		if len(pending) > 0 {
			exprs = append(exprs, &Literal{Text: append([]rune(nil), pending...), Fold: fold})
			pending = pending[:0]
		}
	}
	errf := func(format string, args ...interface{}) error {
		return &Error{Pattern: truncate(src), Msg: fmt.Sprintf(format, args...)}
	}

	for i < len(rs) {
		r := rs[i]
		switch r {
		case '[':
			flush()
			cls, n, err := parseClass(rs[i:], fold, src)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, cls)
			i += n
		case '.':
			flush()
			exprs = append(exprs, &Any{})
			i++
		case '\\':
			if i+1 >= len(rs) {
				return nil, errf("dangling escape in regex terminal")
			}
			esc := rs[i+1]
			if cls := escapeClass(esc, fold); cls != nil {
				flush()
				exprs = append(exprs, cls)
			} else {
				pending = append(pending, esc)
			}
			i += 2
		case '+', '*', '?':
			last, rest, err := splitQuantified(exprs, pending, fold)
			if err != nil {
				return nil, errf("quantifier %q has nothing to repeat", r)
			}
			exprs, pending = rest, nil
			switch r {
			case '+':
				exprs = append(exprs, &Repeat{Expr: last, Min: 1, Max: -1})
			case '*':
				exprs = append(exprs, &Repeat{Expr: last, Min: 0, Max: -1})
			case '?':
				exprs = append(exprs, &Repeat{Expr: last, Min: 0, Max: 1})
			}
			i++
		case '(', ')', '|', '{', '}', '^', '$':
			return nil, errf("unsupported regex construct %q; use rule-level grouping and choice", r)
		default:
			pending = append(pending, r)
			i++
		}
	}
	flush()

	if len(exprs) == 0 {
		return nil, errf("empty regex terminal")
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &Seq{Exprs: exprs}, nil
}

// splitQuantified peels off the atom a quantifier applies to: the last parsed
// expression, or the final character of a pending literal run.
func splitQuantified(exprs []Expr, pending []rune, fold bool) (last Expr, rest []Expr, err error) {
	if len(pending) > 0 {
		if len(pending) > 1 {
			exprs = append(exprs, &Literal{Text: append([]rune(nil), pending[:len(pending)-1]...), Fold: fold})
		}
		return &Literal{Text: []rune{pending[len(pending)-1]}, Fold: fold}, exprs, nil
	}
	if len(exprs) == 0 {
		return nil, nil, fmt.Errorf("nothing to repeat")
	}
	return exprs[len(exprs)-1], exprs[:len(exprs)-1], nil
}

// escapeClass maps predicate escapes to character classes; returns nil for
// escapes that stand for the literal character.
func escapeClass(r rune, fold bool) *Class {
	switch r {
	case 'd':
		return &Class{Ranges: []ClassRange{{'0', '9'}}, Fold: fold}
	case 'w':
		return &Class{Ranges: []ClassRange{{'a', 'z'}, {'A', 'Z'}, {'0', '9'}, {'_', '_'}}, Fold: fold}
	}
	return nil
}

// parseClass parses a [...] character class starting at rs[0]=='['. Returns
// the class and the number of runes consumed.
func parseClass(rs []rune, fold bool, src string) (*Class, int, error) {
	cls := &Class{Fold: fold}
	i := 1
	if i < len(rs) && rs[i] == '^' {
		cls.Neg = true
		i++
	}
	for i < len(rs) {
		r := rs[i]
		if r == ']' {
			if len(cls.Ranges) == 0 {
				return nil, 0, &Error{Pattern: truncate(src), Msg: "empty character class"}
			}
			return cls, i + 1, nil
		}
		if r == '\\' {
			if i+1 >= len(rs) {
				break
			}
			esc := rs[i+1]
			if sub := escapeClass(esc, fold); sub != nil {
				cls.Ranges = append(cls.Ranges, sub.Ranges...)
				i += 2
				continue
			}
			r = esc
			i += 2
		} else {
			i++
		}
		// Range, e.g. a-z, unless the dash is the closing character.
		if i+1 < len(rs) && rs[i] == '-' && rs[i+1] != ']' {
			hi := rs[i+1]
			n := 2
			if hi == '\\' && i+2 < len(rs) {
				hi = rs[i+2]
				n = 3
			}
			if hi < r {
				return nil, 0, &Error{Pattern: truncate(src), Msg: fmt.Sprintf("inverted class range %c-%c", r, hi)}
			}
			cls.Ranges = append(cls.Ranges, ClassRange{Lo: r, Hi: hi})
			i += n
			continue
		}
		cls.Ranges = append(cls.Ranges, ClassRange{Lo: r, Hi: r})
	}
	return nil, 0, &Error{Pattern: truncate(src), Msg: "unterminated character class"}
}
