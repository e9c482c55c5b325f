package evaluator

import (
	"fmt"
	"io/fs"
	"strings"
)

// EvalCondition evaluates a Condition attribute against the given property
// environment. The supported grammar is the comparison subset build files
// rely on:
//
//	expr   := and { "Or" and }
//	and    := unary { "And" unary }
//	unary  := "!" unary | primary
//	primary:= "(" expr ")" | "Exists" "(" term ")" | term [ ("=="|"!=") term ]
//	term   := 'single-quoted string' | bareword
//
// Terms expand $() references before use; string comparison ignores case.
// A nil fsys makes every Exists check false.
func EvalCondition(cond string, env *Env, fsys fs.FS) (bool, error) {
	p := &condParser{lexer: condLexer{input: cond}, env: env, fsys: fsys}
	p.next()
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.tok.kind != tokEOF {
		return false, fmt.Errorf("unexpected %q at offset %d in condition %q", p.tok.text, p.tok.pos, cond)
	}
	return result, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokBang
	tokEq
	tokNeq
	tokString
	tokIdent
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type condLexer struct {
	input string
	pos   int
}

func (l *condLexer) lex() (token, error) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t' || l.input[l.pos] == '\n' || l.input[l.pos] == '\r') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	switch c := l.input[l.pos]; c {
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case '\'':
		l.pos++
		end := strings.IndexByte(l.input[l.pos:], '\'')
		if end < 0 {
			return token{}, fmt.Errorf("unterminated string at offset %d", start)
		}
		text := l.input[l.pos : l.pos+end]
		l.pos += end + 1
		return token{kind: tokString, text: text, pos: start}, nil
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokNeq, text: "!=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokBang, text: "!", pos: start}, nil
	case '=':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokEq, text: "==", pos: start}, nil
		}
		return token{}, fmt.Errorf("single '=' at offset %d; use '=='", start)
	}

	for l.pos < len(l.input) && !strings.ContainsRune(" \t\n\r()'!=", rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos == start {
		return token{}, fmt.Errorf("unexpected character %q at offset %d", l.input[start], start)
	}
	return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil
}

type condParser struct {
	lexer condLexer
	tok   token
	err   error
	env   *Env
	fsys  fs.FS
}

func (p *condParser) next() {
	if p.err != nil {
		return
	}
	p.tok, p.err = p.lexer.lex()
}

func (p *condParser) parseOr() (bool, error) {
	result, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, "Or") {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		result = result || rhs
	}
	return result, p.err
}

func (p *condParser) parseAnd() (bool, error) {
	result, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, "And") {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		result = result && rhs
	}
	return result, p.err
}

func (p *condParser) parseUnary() (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if p.tok.kind == tokBang {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		return !inner, nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (bool, error) {
	if p.err != nil {
		return false, p.err
	}

	switch p.tok.kind {
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.tok.kind != tokRParen {
			return false, fmt.Errorf("missing ')' at offset %d", p.tok.pos)
		}
		p.next()
		return inner, nil

	case tokIdent:
		if strings.EqualFold(p.tok.text, "Exists") {
			p.next()
			if p.tok.kind != tokLParen {
				return false, fmt.Errorf("Exists requires '(' at offset %d", p.tok.pos)
			}
			p.next()
			arg, err := p.parseTerm()
			if err != nil {
				return false, err
			}
			if p.tok.kind != tokRParen {
				return false, fmt.Errorf("missing ')' after Exists argument at offset %d", p.tok.pos)
			}
			p.next()
			return p.exists(arg), nil
		}
		fallthrough

	case tokString:
		lhs, err := p.parseTerm()
		if err != nil {
			return false, err
		}
		switch p.tok.kind {
		case tokEq, tokNeq:
			negate := p.tok.kind == tokNeq
			p.next()
			rhs, err := p.parseTerm()
			if err != nil {
				return false, err
			}
			// Build-engine string comparison ignores case.
			equal := strings.EqualFold(lhs, rhs)
			return equal != negate, nil
		}
		return boolTerm(lhs, p.tok.pos)

	default:
		return false, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
	}
}

// parseTerm consumes one string or bareword term and returns its expanded
// value.
func (p *condParser) parseTerm() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	switch p.tok.kind {
	case tokString, tokIdent:
		text := p.env.Expand(p.tok.text)
		p.next()
		return text, p.err
	default:
		return "", fmt.Errorf("expected a value at offset %d, got %q", p.tok.pos, p.tok.text)
	}
}

func boolTerm(text string, pos int) (bool, error) {
	switch {
	case strings.EqualFold(text, "true"):
		return true, nil
	case strings.EqualFold(text, "false"), text == "":
		return false, nil
	}
	return false, fmt.Errorf("term %q at offset %d is not a boolean", text, pos)
}

func (p *condParser) exists(path string) bool {
	if p.fsys == nil || path == "" {
		return false
	}
	path = strings.ReplaceAll(path, `\`, "/")
	_, err := fs.Stat(p.fsys, path)
	return err == nil
}
