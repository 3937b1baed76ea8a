// Package expr evaluates the restricted boolean expressions used by
// condition actions. The grammar is deliberately small: literals,
// identifiers resolved against the execution context, comparison operators,
// boolean connectives, and parentheses. There is no function call syntax and
// no way to reach host capabilities from an expression.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// EvalError reports a lexing, parsing, or evaluation failure.
type EvalError struct {
	Expr string
	Msg  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Expr, e.Msg)
}

// Eval evaluates src against vars and returns the boolean result. Unknown
// identifiers, type mismatches, and non-boolean results are errors.
func Eval(src string, vars map[string]any) (bool, error) {
	toks, err := lex(src)
	if err != nil {
		return false, &EvalError{Expr: src, Msg: err.Error()}
	}
	p := &parser{src: src, toks: toks, vars: vars}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.atEnd() {
		return false, p.errorf("unexpected %q", p.peek().text)
	}
	b, ok := v.(bool)
	if !ok {
		return false, p.errorf("expression result is %T, not a boolean", v)
	}
	return b, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j]})
			i = j
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j]})
			i = j
		case c == '\'' || c == '"':
			quote := c
			var sb strings.Builder
			j := i + 1
			for j < len(src) && src[j] != quote {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j + 1
		default:
			op, ok := lexOp(src[i:])
			if !ok {
				return nil, fmt.Errorf("unexpected character %q", string(c))
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += len(op)
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

// Two-character operators must be tried before their one-character prefixes.
var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!", "(", ")"}

func lexOp(s string) (string, bool) {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	return "", false
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

type parser struct {
	src  string
	toks []token
	pos  int
	vars map[string]any
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) errorf(format string, args ...any) *EvalError {
	return &EvalError{Expr: p.src, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lb, rb, err := p.boolPair(left, right, "||")
		if err != nil {
			return nil, err
		}
		left = lb || rb
	}
	return left, nil
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("&&") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lb, rb, err := p.boolPair(left, right, "&&")
		if err != nil {
			return nil, err
		}
		left = lb && rb
	}
	return left, nil
}

func (p *parser) parseNot() (any, error) {
	if p.acceptOp("!") {
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, p.errorf("operand of ! is %T, not a boolean", v)
		}
		return !b, nil
	}
	return p.parseComparison()
}

var comparisonOps = []string{"==", "!=", "<=", ">=", "<", ">"}

func (p *parser) parseComparison() (any, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for _, op := range comparisonOps {
		if !p.acceptOp(op) {
			continue
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return compare(p, left, right, op)
	}
	return left, nil
}

func (p *parser) parseTerm() (any, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", t.text)
		}
		return f, nil
	case tokString:
		return t.text, nil
	case tokIdent:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		v, ok := p.vars[t.text]
		if !ok {
			return nil, p.errorf("unknown variable %q", t.text)
		}
		return v, nil
	case tokOp:
		if t.text == "(" {
			v, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.acceptOp(")") {
				return nil, p.errorf("missing closing parenthesis")
			}
			return v, nil
		}
	}
	return nil, p.errorf("unexpected %q", t.text)
}

func (p *parser) boolPair(left, right any, op string) (bool, bool, error) {
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if !lok || !rok {
		return false, false, p.errorf("operands of %s must be booleans", op)
	}
	return lb, rb, nil
}

// compare applies a comparison operator. Numbers of any Go numeric type are
// coerced to float64 so that JSON-decoded values compare naturally; ordering
// is defined for numbers and strings only.
func compare(p *parser, left, right any, op string) (any, error) {
	if lf, lok := toFloat(left); lok {
		rf, rok := toFloat(right)
		if !rok {
			return nil, p.errorf("cannot compare number with %T", right)
		}
		return compareOrdered(lf, rf, op), nil
	}
	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return nil, p.errorf("cannot compare string with %T", right)
		}
		return compareOrdered(ls, rs, op), nil
	}
	if lb, lok := left.(bool); lok {
		rb, rok := right.(bool)
		if !rok {
			return nil, p.errorf("cannot compare boolean with %T", right)
		}
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		}
		return nil, p.errorf("booleans do not support %s", op)
	}
	return nil, p.errorf("cannot compare %T values", left)
}

func compareOrdered[T float64 | string](l, r T, op string) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	}
	return l >= r
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
