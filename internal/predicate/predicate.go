// Package predicate implements the restricted boolean expression language
// used to select repositories and actions from the project index.
//
// The grammar is deliberately closed: identifiers, string and integer
// literals, ==, !=, <, <=, >, >=, in, not in, and, or, not, and parentheses.
// Identifiers resolve against a caller-supplied binding table of string
// values; an unbound identifier yields the empty string. Field values are
// never spliced into source text, so quote characters inside values cannot
// change how an expression parses.
package predicate

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenOp     // == != < <= > >=
	tokenLParen
	tokenRParen
	tokenAnd
	tokenOr
	tokenNot
	tokenIn
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.input) && unicode.IsSpace(rune(lx.input[lx.pos])) {
		lx.pos++
	}
	if lx.pos >= len(lx.input) {
		return token{kind: tokenEOF, pos: lx.pos}, nil
	}
	start := lx.pos
	c := lx.input[lx.pos]

	switch {
	case c == '(':
		lx.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case c == ')':
		lx.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case c == '\'' || c == '"':
		quote := c
		lx.pos++
		var b strings.Builder
		for lx.pos < len(lx.input) && lx.input[lx.pos] != quote {
			b.WriteByte(lx.input[lx.pos])
			lx.pos++
		}
		if lx.pos >= len(lx.input) {
			return token{}, fmt.Errorf("unterminated string literal at position %d", start)
		}
		lx.pos++ // closing quote
		return token{kind: tokenString, text: b.String(), pos: start}, nil
	case c == '=' || c == '!' || c == '<' || c == '>':
		op := string(c)
		lx.pos++
		if lx.pos < len(lx.input) && lx.input[lx.pos] == '=' {
			op += "="
			lx.pos++
		}
		if op == "=" || op == "!" {
			return token{}, fmt.Errorf("invalid operator %q at position %d", op, start)
		}
		return token{kind: tokenOp, text: op, pos: start}, nil
	case unicode.IsDigit(rune(c)):
		for lx.pos < len(lx.input) && unicode.IsDigit(rune(lx.input[lx.pos])) {
			lx.pos++
		}
		return token{kind: tokenNumber, text: lx.input[start:lx.pos], pos: start}, nil
	case c == '_' || unicode.IsLetter(rune(c)):
		for lx.pos < len(lx.input) &&
			(lx.input[lx.pos] == '_' || unicode.IsLetter(rune(lx.input[lx.pos])) ||
				unicode.IsDigit(rune(lx.input[lx.pos]))) {
			lx.pos++
		}
		word := lx.input[start:lx.pos]
		switch word {
		case "and":
			return token{kind: tokenAnd, text: word, pos: start}, nil
		case "or":
			return token{kind: tokenOr, text: word, pos: start}, nil
		case "not":
			return token{kind: tokenNot, text: word, pos: start}, nil
		case "in":
			return token{kind: tokenIn, text: word, pos: start}, nil
		}
		return token{kind: tokenIdent, text: word, pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", c, start)
}

// expr is a parsed expression node evaluated against a binding table.
type expr interface {
	eval(bindings map[string]string) bool
}

type orExpr struct{ left, right expr }

func (e orExpr) eval(b map[string]string) bool { return e.left.eval(b) || e.right.eval(b) }

type andExpr struct{ left, right expr }

func (e andExpr) eval(b map[string]string) bool { return e.left.eval(b) && e.right.eval(b) }

type notExpr struct{ inner expr }

func (e notExpr) eval(b map[string]string) bool { return !e.inner.eval(b) }

// operand yields a string value: either a literal or a field lookup.
type operand struct {
	literal bool
	text    string
}

func (o operand) value(b map[string]string) string {
	if o.literal {
		return o.text
	}
	return b[o.text]
}

// cmpExpr compares two operands. With an empty op it is a bare operand
// used in boolean position: truthy when the value is non-empty.
type cmpExpr struct {
	left  operand
	op    string
	right operand
}

func (e cmpExpr) eval(b map[string]string) bool {
	lv := e.left.value(b)
	switch e.op {
	case "":
		return lv != ""
	case "==":
		return lv == e.right.value(b)
	case "!=":
		return lv != e.right.value(b)
	case "<":
		return lv < e.right.value(b)
	case "<=":
		return lv <= e.right.value(b)
	case ">":
		return lv > e.right.value(b)
	case ">=":
		return lv >= e.right.value(b)
	case "in":
		return strings.Contains(e.right.value(b), lv)
	case "not in":
		return !strings.Contains(e.right.value(b), lv)
	}
	return false
}

// Predicate is a compiled expression.
type Predicate struct {
	source string
	root   expr
}

// Source returns the original expression text.
func (p *Predicate) Source() string { return p.source }

// Eval evaluates the predicate against the given field bindings.
func (p *Predicate) Eval(bindings map[string]string) bool {
	return p.root.eval(bindings)
}

type parser struct {
	lx   *lexer
	tok  token
	err  error
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.tok, p.err = p.lx.next()
}

// Parse compiles an expression string into a Predicate.
func Parse(input string) (*Predicate, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty predicate expression")
	}
	p := &parser{lx: &lexer{input: input}}
	p.advance()
	root := p.parseOr()
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
	return &Predicate{source: input, root: root}, nil
}

func (p *parser) parseOr() expr {
	left := p.parseAnd()
	for p.err == nil && p.tok.kind == tokenOr {
		p.advance()
		left = orExpr{left: left, right: p.parseAnd()}
	}
	return left
}

func (p *parser) parseAnd() expr {
	left := p.parseUnary()
	for p.err == nil && p.tok.kind == tokenAnd {
		p.advance()
		left = andExpr{left: left, right: p.parseUnary()}
	}
	return left
}

func (p *parser) parseUnary() expr {
	if p.err != nil {
		return cmpExpr{}
	}
	if p.tok.kind == tokenNot {
		notPos := p.tok.pos
		p.advance()
		// "not in" is handled at the comparison level; "not" followed by
		// "in" without a left operand is malformed.
		if p.tok.kind == tokenIn {
			p.err = fmt.Errorf("misplaced 'not in' at position %d", notPos)
			return cmpExpr{}
		}
		return notExpr{inner: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() expr {
	if p.err != nil {
		return cmpExpr{}
	}
	if p.tok.kind == tokenLParen {
		p.advance()
		inner := p.parseOr()
		if p.err != nil {
			return cmpExpr{}
		}
		if p.tok.kind != tokenRParen {
			p.err = fmt.Errorf("missing ')' at position %d", p.tok.pos)
			return cmpExpr{}
		}
		p.advance()
		return inner
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() expr {
	left, ok := p.parseOperand()
	if !ok {
		return cmpExpr{}
	}
	switch p.tok.kind {
	case tokenOp:
		op := p.tok.text
		p.advance()
		right, ok := p.parseOperand()
		if !ok {
			return cmpExpr{}
		}
		return cmpExpr{left: left, op: op, right: right}
	case tokenIn:
		p.advance()
		right, ok := p.parseOperand()
		if !ok {
			return cmpExpr{}
		}
		return cmpExpr{left: left, op: "in", right: right}
	case tokenNot:
		notPos := p.tok.pos
		p.advance()
		if p.tok.kind != tokenIn {
			p.err = fmt.Errorf("expected 'in' after 'not' at position %d", notPos)
			return cmpExpr{}
		}
		p.advance()
		right, ok := p.parseOperand()
		if !ok {
			return cmpExpr{}
		}
		return cmpExpr{left: left, op: "not in", right: right}
	}
	// Bare operand in boolean position.
	return cmpExpr{left: left}
}

func (p *parser) parseOperand() (operand, bool) {
	if p.err != nil {
		return operand{}, false
	}
	switch p.tok.kind {
	case tokenIdent:
		o := operand{literal: false, text: p.tok.text}
		p.advance()
		return o, true
	case tokenString, tokenNumber:
		o := operand{literal: true, text: p.tok.text}
		p.advance()
		return o, true
	}
	p.err = fmt.Errorf("expected identifier or literal at position %d, got %q", p.tok.pos, p.tok.text)
	return operand{}, false
}
