// Package grammar compiles the declarative pattern language into executable
// matchers and scans normalized text streams with them.
//
// A pattern is a set of productions, one per line, with a mandatory entry
// rule named "match":
//
//	match = ssn / account
//	ssn   = digit digit digit digit digit digit digit digit digit
//	digit = ~"[0-9]"
//
// Terminals are quoted literals ("abc", with an optional trailing i for
// case-insensitive comparison) and regex-style terminals (~"[A-Z]\d+",
// supporting character classes, ., \d \w escapes, the quantifiers + * ?, and
// a (?i) prefix or trailing i flag). Expressions compose by sequencing
// (whitespace), ordered choice (/), repetition (+ * ?), grouping, and rule
// references. Choice is PEG ordered choice: alternatives are tried in
// declaration order and the first success wins. Repetition is greedy and does
// not backtrack.
package grammar

import (
	"fmt"
	"unicode"
)

// Error reports a pattern that could not be compiled. Compilation errors are
// fatal to the whole run: an unusable pattern set must surface before any
// page is rasterized.
type Error struct {
	Pattern string // the offending pattern text, truncated for display
	Rule    string // rule name, when the error is scoped to one production
	Msg     string
}

func (e *Error) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("grammar: rule %q: %s", e.Rule, e.Msg)
	}
	return fmt.Sprintf("grammar: %s", e.Msg)
}

// EntryRule is the production every pattern must define.
const EntryRule = "match"

// Expr is a node in the compiled expression tree.
type Expr interface {
	// nullable reports whether the expression can succeed without consuming
	// input. Used to reject no-progress cycles at compile time.
	nullable(g *Grammar, seen map[string]bool) bool
}

// Literal matches an exact run of characters.
type Literal struct {
	Text []rune
	Fold bool
}

// ClassRange is an inclusive character range; single characters are
// represented as Lo==Hi.
type ClassRange struct {
	Lo, Hi rune
}

// Class matches a single character against a set of ranges, optionally
// negated.
type Class struct {
	Neg    bool
	Ranges []ClassRange
	Fold   bool
}

// Any matches any single character.
type Any struct{}

// Ref invokes another production by name.
type Ref struct {
	Name string
}

// Seq matches sub-expressions in order with no implicit gap.
type Seq struct {
	Exprs []Expr
}

// Choice tries alternatives in order; the first that succeeds wins.
type Choice struct {
	Alts []Expr
}

// Repeat matches Expr greedily between Min and Max times. Max < 0 means
// unbounded.
type Repeat struct {
	Expr Expr
	Min  int
	Max  int
}

func (l *Literal) nullable(*Grammar, map[string]bool) bool { return len(l.Text) == 0 }
func (*Class) nullable(*Grammar, map[string]bool) bool     { return false }
func (*Any) nullable(*Grammar, map[string]bool) bool       { return false }

func (r *Ref) nullable(g *Grammar, seen map[string]bool) bool {
	if seen[r.Name] {
		// Cycle with no consumed input; treated as nullable so the caller's
		// progress check rejects it.
		return true
	}
	body, ok := g.rules[r.Name]
	if !ok {
		return false
	}
	seen[r.Name] = true
	defer delete(seen, r.Name)
	return body.nullable(g, seen)
}

func (s *Seq) nullable(g *Grammar, seen map[string]bool) bool {
	for _, e := range s.Exprs {
		if !e.nullable(g, seen) {
			return false
		}
	}
	return true
}

func (c *Choice) nullable(g *Grammar, seen map[string]bool) bool {
	for _, a := range c.Alts {
		if a.nullable(g, seen) {
			return true
		}
	}
	return false
}

func (r *Repeat) nullable(g *Grammar, seen map[string]bool) bool {
	return r.Min == 0 || r.Expr.nullable(g, seen)
}

// Grammar is one compiled pattern: a set of named productions with "match" as
// the entry point. Immutable after Compile; safe to share across goroutines.
type Grammar struct {
	source string
	rules  map[string]Expr
	order  []string
	entry  Expr
}

// Source returns the pattern text the grammar was compiled from.
func (g *Grammar) Source() string { return g.source }

// Compile parses and validates a single pattern.
func Compile(pattern string) (*Grammar, error) {
	g, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grammar) validate() error {
	entry, ok := g.rules[EntryRule]
	if !ok {
		return &Error{Pattern: truncate(g.source), Msg: fmt.Sprintf("missing entry rule %q", EntryRule)}
	}
	g.entry = entry
	for _, name := range g.order {
		if err := g.checkRefs(name, g.rules[name]); err != nil {
			return err
		}
	}
	for _, name := range g.order {
		if err := g.checkProgress(name); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grammar) checkRefs(rule string, e Expr) error {
	switch t := e.(type) {
	case *Ref:
		if _, ok := g.rules[t.Name]; !ok {
			return &Error{Pattern: truncate(g.source), Rule: rule, Msg: fmt.Sprintf("undefined rule reference %q", t.Name)}
		}
	case *Seq:
		for _, sub := range t.Exprs {
			if err := g.checkRefs(rule, sub); err != nil {
				return err
			}
		}
	case *Choice:
		for _, sub := range t.Alts {
			if err := g.checkRefs(rule, sub); err != nil {
				return err
			}
		}
	case *Repeat:
		return g.checkRefs(rule, t.Expr)
	}
	return nil
}

// checkProgress rejects rules that can recurse into themselves without
// consuming any input, which would loop forever at match time.
func (g *Grammar) checkProgress(rule string) error {
	if g.leftRecursive(rule, g.rules[rule], map[string]bool{rule: true}) {
		return &Error{Pattern: truncate(g.source), Rule: rule, Msg: "cyclic rule with no progress"}
	}
	return nil
}

// leftRecursive walks the expressions reachable at the current input
// position (i.e. before anything has necessarily been consumed) and reports
// whether any of the rules in active is re-entered.
func (g *Grammar) leftRecursive(rule string, e Expr, active map[string]bool) bool {
	switch t := e.(type) {
	case *Ref:
		if active[t.Name] {
			return true
		}
		active[t.Name] = true
		defer delete(active, t.Name)
		return g.leftRecursive(t.Name, g.rules[t.Name], active)
	case *Seq:
		for _, sub := range t.Exprs {
			if g.leftRecursive(rule, sub, active) {
				return true
			}
			if !sub.nullable(g, map[string]bool{}) {
				return false
			}
		}
	case *Choice:
		for _, sub := range t.Alts {
			if g.leftRecursive(rule, sub, active) {
				return true
			}
		}
	case *Repeat:
		return g.leftRecursive(rule, t.Expr, active)
	}
	return false
}

func truncate(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func foldEq(a, b rune, fold bool) bool {
	if a == b {
		return true
	}
	return fold && unicode.ToLower(a) == unicode.ToLower(b)
}
