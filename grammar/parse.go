package grammar

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokEquals
	tokSlash
	tokLParen
	tokRParen
	tokPlus
	tokStar
	tokQuestion
	tokLiteral // "..." with optional i flag
	tokRegex   // ~"..." with optional i flag
)

type token struct {
	kind tokenKind
	text string
	fold bool
	pos  int
}

type lexer struct {
	src []rune
	pos int
}

func (l *lexer) errf(format string, args ...interface{}) error {
	return &Error{Pattern: truncate(string(l.src)), Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		if r == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if !unicode.IsSpace(r) {
			return
		}
		l.pos++
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	r := l.src[l.pos]
	switch {
	case r == '=':
		l.pos++
		return token{kind: tokEquals, pos: start}, nil
	case r == '/':
		l.pos++
		return token{kind: tokSlash, pos: start}, nil
	case r == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case r == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case r == '+':
		l.pos++
		return token{kind: tokPlus, pos: start}, nil
	case r == '*':
		l.pos++
		return token{kind: tokStar, pos: start}, nil
	case r == '?':
		l.pos++
		return token{kind: tokQuestion, pos: start}, nil
	case r == '"':
		text, err := l.quoted()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokLiteral, text: text, fold: l.flag(), pos: start}, nil
	case r == '~':
		l.pos++
		if l.pos >= len(l.src) || l.src[l.pos] != '"' {
			return token{}, l.errf("expected quoted text after ~ at offset %d", start)
		}
		text, err := l.quoted()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokRegex, text: text, fold: l.flag(), pos: start}, nil
	case isIdentStart(r):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos]), pos: start}, nil
	default:
		return token{}, l.errf("unexpected character %q at offset %d", r, start)
	}
}

// quoted consumes a "..." string starting at the opening quote, resolving
// backslash escapes to the escaped character itself.
func (l *lexer) quoted() (string, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		switch r {
		case '"':
			l.pos++
			return sb.String(), nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return "", l.errf("dangling escape at offset %d", l.pos)
			}
			// Preserve the backslash so the regex-lite parser can tell \d
			// apart from a literal d; plain literals strip it during parse.
			sb.WriteRune('\\')
			sb.WriteRune(l.src[l.pos+1])
			l.pos += 2
		default:
			sb.WriteRune(r)
			l.pos++
		}
	}
	return "", l.errf("unterminated quoted text at offset %d", start)
}

// flag consumes a trailing case-insensitivity marker (i) if present.
func (l *lexer) flag() bool {
	if l.pos < len(l.src) && l.src[l.pos] == 'i' {
		next := l.pos + 1
		if next >= len(l.src) || !isIdentPart(l.src[next]) {
			l.pos++
			return true
		}
	}
	return false
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

type parser struct {
	lex  *lexer
	tok  token
	peek *token
	src  string
}

func parsePattern(pattern string) (*Grammar, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, &Error{Pattern: truncate(pattern), Msg: "empty pattern"}
	}
	p := &parser{lex: &lexer{src: []rune(pattern)}, src: pattern}
	if err := p.advance(); err != nil {
		return nil, err
	}
	g := &Grammar{source: pattern, rules: map[string]Expr{}}
	for p.tok.kind != tokEOF {
		if p.tok.kind != tokIdent {
			return nil, p.errf("expected rule name, got token at offset %d", p.tok.pos)
		}
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokEquals {
			return nil, p.errf("expected '=' after rule name %q", name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err := p.choice()
		if err != nil {
			return nil, err
		}
		if _, dup := g.rules[name]; dup {
			return nil, p.errf("duplicate rule %q", name)
		}
		g.rules[name] = body
		g.order = append(g.order, name)
	}
	return g, nil
}

func (p *parser) errf(format string, args ...interface{}) error {
	return &Error{Pattern: truncate(p.src), Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) peekTok() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

// choice := seq ("/" seq)*
func (p *parser) choice() (Expr, error) {
	first, err := p.sequence()
	if err != nil {
		return nil, err
	}
	alts := []Expr{first}
	for p.tok.kind == tokSlash {
		if err := p.advance(); err != nil {
			return nil, err
		}
		alt, err := p.sequence()
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return &Choice{Alts: alts}, nil
}

// sequence := term+
func (p *parser) sequence() (Expr, error) {
	var exprs []Expr
	for {
		if !p.startsTerm() {
			break
		}
		// An identifier followed by '=' begins the next rule, not a
		// reference inside this one.
		if p.tok.kind == tokIdent {
			nxt, err := p.peekTok()
			if err != nil {
				return nil, err
			}
			if nxt.kind == tokEquals {
				break
			}
		}
		e, err := p.term()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	if len(exprs) == 0 {
		return nil, p.errf("expected expression at offset %d", p.tok.pos)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &Seq{Exprs: exprs}, nil
}

func (p *parser) startsTerm() bool {
	switch p.tok.kind {
	case tokIdent, tokLiteral, tokRegex, tokLParen:
		return true
	}
	return false
}

// term := atom ("+" | "*" | "?")?
func (p *parser) term() (Expr, error) {
	atom, err := p.atom()
	if err != nil {
		return nil, err
	}
	switch p.tok.kind {
	case tokPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Repeat{Expr: atom, Min: 1, Max: -1}, nil
	case tokStar:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Repeat{Expr: atom, Min: 0, Max: -1}, nil
	case tokQuestion:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Repeat{Expr: atom, Min: 0, Max: 1}, nil
	}
	return atom, nil
}

func (p *parser) atom() (Expr, error) {
	switch p.tok.kind {
	case tokIdent:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Ref{Name: name}, nil
	case tokLiteral:
		text := unescapeLiteral(p.tok.text)
		fold := p.tok.fold
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Text: []rune(text), Fold: fold}, nil
	case tokRegex:
		e, err := parseRegexLite(p.tok.text, p.tok.fold, p.src)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return e, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.choice()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.errf("missing closing parenthesis at offset %d", p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, p.errf("unexpected token at offset %d", p.tok.pos)
}

// unescapeLiteral resolves the backslash escapes the lexer preserved.
func unescapeLiteral(s string) string {
	var sb strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] == '\\' && i+1 < len(rs) {
			i++
		}
		sb.WriteRune(rs[i])
	}
	return sb.String()
}
