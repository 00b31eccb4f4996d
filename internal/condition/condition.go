// Package condition compiles flat lists of condition clauses into boolean
// expression trees. A tree can be evaluated against an in-memory record or
// rendered into a SQL fragment.
//
// Clauses combine strictly left to right: AND and OR have equal precedence
// and only brackets change grouping. "a OR b AND c" means "(a OR b) AND c".
package condition

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"reader-backend/internal/metadata"
)

// ErrInvalid marks a malformed condition list: an unknown operator or
// connective, a bad field name, unbalanced brackets, or an operand that
// cannot be compiled.
var ErrInvalid = errors.New("invalid condition")

const (
	OpEqual        = "equal"
	OpUnequal      = "unequal"
	OpLower        = "lower"
	OpLowerEqual   = "lowerequal"
	OpGreater      = "greater"
	OpGreaterEqual = "greaterequal"
	OpLike         = "like"
	OpUnlike       = "unlike"
	OpIn           = "in"
	OpNotIn        = "notin"
	OpIsNull       = "isnull"
	OpIsNotNull    = "isnotnull"
	OpIsEmpty      = "isempty"
	OpIsNotEmpty   = "isnotempty"
	OpRegexp       = "regexp"
	OpNotRegexp    = "notregexp"
	OpExpression   = "expression"
)

var operatorAliases = map[string]string{
	"eq":  OpEqual,
	"=":   OpEqual,
	"==":  OpEqual,
	"neq": OpUnequal,
	"!=":  OpUnequal,
	"<>":  OpUnequal,
	"lt":  OpLower,
	"<":   OpLower,
	"lte": OpLowerEqual,
	"<=":  OpLowerEqual,
	"gt":  OpGreater,
	">":   OpGreater,
	"gte": OpGreaterEqual,
	">=":  OpGreaterEqual,

	"not_in": OpNotIn,
}

var knownOperators = map[string]bool{
	OpEqual: true, OpUnequal: true, OpLower: true, OpLowerEqual: true,
	OpGreater: true, OpGreaterEqual: true, OpLike: true, OpUnlike: true,
	OpIn: true, OpNotIn: true, OpIsNull: true, OpIsNotNull: true,
	OpIsEmpty: true, OpIsNotEmpty: true, OpRegexp: true, OpNotRegexp: true,
	OpExpression: true,
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidField reports whether name is a plain or table-qualified column name.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// NormalizeOperator maps an operator or one of its aliases to its canonical
// name. Unknown operators return "".
func NormalizeOperator(op string) string {
	op = strings.ToLower(strings.TrimSpace(op))
	if alias, ok := operatorAliases[op]; ok {
		return alias
	}
	if knownOperators[op] {
		return op
	}
	return ""
}

// Expr is a compiled condition.
type Expr interface {
	// Eval evaluates the condition against a record. A clause whose field is
	// missing from the record is false.
	Eval(record map[string]any) bool
	// SQL renders the condition as a fully parenthesised WHERE fragment.
	SQL(b Builder) (string, error)
}

type connective int

const (
	connAnd connective = iota
	connOr
)

func (c connective) String() string {
	if c == connOr {
		return "OR"
	}
	return "AND"
}

// Always is the condition of an empty clause list.
var Always Expr = always{}

type always struct{}

func (always) Eval(map[string]any) bool { return true }
func (always) SQL(Builder) (string, error) { return "1=1", nil }

type binary struct {
	conn        connective
	left, right Expr
}

func (b *binary) Eval(record map[string]any) bool {
	if b.conn == connOr {
		return b.left.Eval(record) || b.right.Eval(record)
	}
	return b.left.Eval(record) && b.right.Eval(record)
}

func (b *binary) SQL(bl Builder) (string, error) {
	l, err := b.left.SQL(bl)
	if err != nil {
		return "", err
	}
	r, err := b.right.SQL(bl)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + b.conn.String() + " " + r + ")", nil
}

// And joins expressions with AND, left to right. Nil and Always operands are
// dropped; with no operands left the result is Always.
func And(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil || e == Always {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = &binary{conn: connAnd, left: out, right: e}
	}
	if out == nil {
		return Always
	}
	return out
}

// Compile parses an ordered clause list into an expression tree.
func Compile(clauses []metadata.ConditionClause) (Expr, error) {
	if len(clauses) == 0 {
		return Always, nil
	}

	toks, err := tokenize(clauses)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("%w: unbalanced brackets (unexpected closing bracket)", ErrInvalid)
	}
	return e, nil
}

// MustCompile is like Compile but panics on error. Intended for fixed
// clause lists built in code.
func MustCompile(clauses []metadata.ConditionClause) Expr {
	e, err := Compile(clauses)
	if err != nil {
		panic(err)
	}
	return e
}

type tokenKind int

const (
	tokOpen tokenKind = iota
	tokClose
	tokConn
	tokLeaf
)

type token struct {
	kind tokenKind
	conn connective
	leaf *leaf
}

func tokenize(clauses []metadata.ConditionClause) ([]token, error) {
	var toks []token
	depth := 0
	for i, c := range clauses {
		if i > 0 {
			conn, err := parseConnective(c.Connective)
			if err != nil {
				return nil, fmt.Errorf("clause %d: %w", i+1, err)
			}
			toks = append(toks, token{kind: tokConn, conn: conn})
		}
		if !bracketsInRange(c.BracketLeft) || !bracketsInRange(c.BracketRight) {
			return nil, fmt.Errorf("%w: clause %d: bracket count out of range", ErrInvalid, i+1)
		}
		for j := 0; j < int(c.BracketLeft); j++ {
			toks = append(toks, token{kind: tokOpen})
		}
		depth += int(c.BracketLeft)

		l, err := newLeaf(c)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i+1, err)
		}
		toks = append(toks, token{kind: tokLeaf, leaf: l})

		for j := 0; j < int(c.BracketRight); j++ {
			toks = append(toks, token{kind: tokClose})
		}
		depth -= int(c.BracketRight)
		if depth < 0 {
			return nil, fmt.Errorf("%w: unbalanced brackets at clause %d", ErrInvalid, i+1)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets (%d left open)", ErrInvalid, depth)
	}
	return toks, nil
}

func bracketsInRange(b metadata.Brackets) bool {
	return b >= 0 && b <= metadata.MaxBrackets
}

func parseConnective(s string) (connective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and", "&&":
		return connAnd, nil
	case "or", "||":
		return connOr, nil
	default:
		return connAnd, fmt.Errorf("%w: unknown connective %q", ErrInvalid, s)
	}
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.toks) && p.toks[p.pos].kind == tokConn {
		conn := p.toks[p.pos].conn
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binary{conn: conn, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected end of condition", ErrInvalid)
	}
	t := p.toks[p.pos]
	switch t.kind {
	case tokLeaf:
		p.pos++
		return t.leaf, nil
	case tokOpen:
		p.pos++
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokClose {
			return nil, fmt.Errorf("%w: unbalanced brackets", ErrInvalid)
		}
		p.pos++
		return e, nil
	default:
		return nil, fmt.Errorf("%w: misplaced bracket", ErrInvalid)
	}
}

// leaf is a single compiled clause.
type leaf struct {
	field string
	op    string
	value any
	re    *regexp.Regexp
	prog  *vm.Program
}

func newLeaf(c metadata.ConditionClause) (*leaf, error) {
	op := NormalizeOperator(c.Operator)
	if op == "" {
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalid, c.Operator)
	}
	field := strings.TrimSpace(c.Field)
	if field != "" || op != OpExpression {
		if !ValidField(field) {
			return nil, fmt.Errorf("%w: invalid field name %q", ErrInvalid, c.Field)
		}
	}

	l := &leaf{field: field, op: op, value: c.Value}

	switch op {
	case OpLike, OpUnlike:
		l.value = likePattern(stringify(c.Value))
		re, err := regexp.Compile(likeToRegexp(l.value.(string)))
		if err != nil {
			return nil, fmt.Errorf("%w: like pattern: %v", ErrInvalid, err)
		}
		l.re = re
	case OpRegexp, OpNotRegexp:
		re, err := regexp.Compile(stringify(c.Value))
		if err != nil {
			return nil, fmt.Errorf("%w: regexp: %v", ErrInvalid, err)
		}
		l.re = re
	case OpIn, OpNotIn:
		l.value = valueList(c.Value)
	case OpExpression:
		src, ok := c.Value.(string)
		if !ok || strings.TrimSpace(src) == "" {
			return nil, fmt.Errorf("%w: expression operator needs a string value", ErrInvalid)
		}
		prog, err := expr.Compile(src, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: compile expression: %v", ErrInvalid, err)
		}
		l.prog = prog
	}
	return l, nil
}

// likePattern wraps a value without wildcards in %...% so that "like"
// behaves as a substring match.
func likePattern(s string) string {
	if strings.Contains(s, "%") {
		return s
	}
	return "%" + s + "%"
}

func likeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString(`(?is)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// valueList normalises an "in" operand: arrays are used as is, strings are
// split on commas.
func valueList(v any) []any {
	switch vals := v.(type) {
	case nil:
		return nil
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	case string:
		if strings.TrimSpace(vals) == "" {
			return nil
		}
		parts := strings.Split(vals, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	default:
		return []any{vals}
	}
}
