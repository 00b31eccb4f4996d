package condition

import (
	"fmt"
	"strings"
)

// Builder supplies the dialect-specific parts of SQL rendering.
type Builder interface {
	// Bind adds a query parameter and returns its placeholder.
	Bind(v any) string
	// Column returns the SQL expression selecting a field.
	Column(field string) (string, error)
	// RegexpExpr returns a regular expression match of column against the
	// placeholder. ok is false when the database cannot match regexps.
	RegexpExpr(column, placeholder string, negate bool) (expr string, ok bool)
	// LikeExpr returns a case-insensitive LIKE match of column against the
	// placeholder.
	LikeExpr(column, placeholder string, negate bool) string
}

func (l *leaf) SQL(b Builder) (string, error) {
	if l.op == OpExpression {
		return "", fmt.Errorf("%w: operator %q cannot be used in a query", ErrInvalid, l.op)
	}

	col, err := b.Column(l.field)
	if err != nil {
		return "", err
	}

	switch l.op {
	case OpEqual:
		return fmt.Sprintf("%s = %s", col, b.Bind(l.value)), nil
	case OpUnequal:
		return fmt.Sprintf("%s <> %s", col, b.Bind(l.value)), nil
	case OpLower:
		return fmt.Sprintf("%s < %s", col, b.Bind(l.value)), nil
	case OpLowerEqual:
		return fmt.Sprintf("%s <= %s", col, b.Bind(l.value)), nil
	case OpGreater:
		return fmt.Sprintf("%s > %s", col, b.Bind(l.value)), nil
	case OpGreaterEqual:
		return fmt.Sprintf("%s >= %s", col, b.Bind(l.value)), nil
	case OpLike:
		return b.LikeExpr(col, b.Bind(l.value), false), nil
	case OpUnlike:
		return b.LikeExpr(col, b.Bind(l.value), true), nil
	case OpIn:
		return inSQL(b, col, l.value.([]any), false), nil
	case OpNotIn:
		return inSQL(b, col, l.value.([]any), true), nil
	case OpIsNull:
		return col + " IS NULL", nil
	case OpIsNotNull:
		return col + " IS NOT NULL", nil
	case OpIsEmpty:
		return fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '') = ''", col), nil
	case OpIsNotEmpty:
		return fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '') <> ''", col), nil
	case OpRegexp, OpNotRegexp:
		ph := b.Bind(l.re.String())
		s, ok := b.RegexpExpr(col, ph, l.op == OpNotRegexp)
		if !ok {
			return "", fmt.Errorf("%w: operator %q is not supported by this database", ErrInvalid, l.op)
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalid, l.op)
}

func inSQL(b Builder, col string, values []any, negate bool) string {
	if len(values) == 0 {
		if negate {
			return col + " IS NOT NULL"
		}
		return "1=0"
	}
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = b.Bind(v)
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(phs, ", "))
}
