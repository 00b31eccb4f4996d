package condition

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/metadata"
)

type testBuilder struct {
	params  []any
	noRegex bool
}

func (b *testBuilder) Bind(v any) string {
	b.params = append(b.params, v)
	return fmt.Sprintf("$%d", len(b.params))
}

func (b *testBuilder) Column(field string) (string, error) {
	if strings.Contains(field, ".") {
		return field, nil
	}
	return "t." + field, nil
}

func (b *testBuilder) RegexpExpr(col, ph string, negate bool) (string, bool) {
	if b.noRegex {
		return "", false
	}
	if negate {
		return col + " !~ " + ph, true
	}
	return col + " ~ " + ph, true
}

func (b *testBuilder) LikeExpr(col, ph string, negate bool) string {
	if negate {
		return col + " NOT LIKE " + ph
	}
	return col + " LIKE " + ph
}

func clause(conn string, left int, field, op string, value any, right int) metadata.ConditionClause {
	return metadata.ConditionClause{
		Connective:   conn,
		BracketLeft:  metadata.Brackets(left),
		Field:        field,
		Operator:     op,
		Value:        value,
		BracketRight: metadata.Brackets(right),
	}
}

func TestEmptyClauseListIsAlwaysTrue(t *testing.T) {
	e, err := Compile(nil)
	require.NoError(t, err)
	assert.True(t, e.Eval(map[string]any{}))

	sql, err := e.SQL(&testBuilder{})
	require.NoError(t, err)
	assert.Equal(t, "1=1", sql)
}

func TestShowConditionFirstname(t *testing.T) {
	e, err := Compile([]metadata.ConditionClause{clause("", 0, "firstname", "equal", "John", 0)})
	require.NoError(t, err)

	assert.True(t, e.Eval(map[string]any{"firstname": "John"}))
	assert.False(t, e.Eval(map[string]any{"firstname": "Jane"}))
}

func TestMissingFieldIsFalse(t *testing.T) {
	e, err := Compile([]metadata.ConditionClause{clause("", 0, "nope", "isnull", nil, 0)})
	require.NoError(t, err)
	assert.False(t, e.Eval(map[string]any{"other": nil}))

	e, err = Compile([]metadata.ConditionClause{clause("", 0, "nope", "unequal", "x", 0)})
	require.NoError(t, err)
	assert.False(t, e.Eval(map[string]any{}))
}

func TestLeftToRightWithoutPrecedence(t *testing.T) {
	// a OR b AND c  ==  (a OR b) AND c
	clauses := []metadata.ConditionClause{
		clause("", 0, "a", "equal", "1", 0),
		clause("or", 0, "b", "equal", "1", 0),
		clause("and", 0, "c", "equal", "1", 0),
	}
	e, err := Compile(clauses)
	require.NoError(t, err)

	// With conventional precedence this record would match (a is true).
	assert.False(t, e.Eval(map[string]any{"a": "1", "b": "0", "c": "0"}))
	assert.True(t, e.Eval(map[string]any{"a": "0", "b": "1", "c": "1"}))

	b := &testBuilder{}
	sql, err := e.SQL(b)
	require.NoError(t, err)
	assert.Equal(t, "((t.a = $1 OR t.b = $2) AND t.c = $3)", sql)
	assert.Equal(t, []any{"1", "1", "1"}, b.params)
}

func TestBracketsRegroup(t *testing.T) {
	// a OR (b AND c)
	clauses := []metadata.ConditionClause{
		clause("", 0, "a", "equal", "1", 0),
		clause("or", 1, "b", "equal", "1", 0),
		clause("and", 0, "c", "equal", "1", 1),
	}
	e, err := Compile(clauses)
	require.NoError(t, err)
	assert.True(t, e.Eval(map[string]any{"a": "1", "b": "0", "c": "0"}))
	assert.False(t, e.Eval(map[string]any{"a": "0", "b": "1", "c": "0"}))

	sql, err := e.SQL(&testBuilder{})
	require.NoError(t, err)
	assert.Equal(t, "(t.a = $1 OR (t.b = $2 AND t.c = $3))", sql)
}

func TestEvalMatchesBruteForce(t *testing.T) {
	// ((a AND b) OR c) AND (d OR a)
	clauses := []metadata.ConditionClause{
		clause("", 2, "a", "equal", "1", 0),
		clause("and", 0, "b", "equal", "1", 1),
		clause("or", 0, "c", "equal", "1", 1),
		clause("and", 1, "d", "equal", "1", 0),
		clause("or", 0, "a", "equal", "1", 1),
	}
	e, err := Compile(clauses)
	require.NoError(t, err)

	bit := func(n, i int) string {
		if n&(1<<i) != 0 {
			return "1"
		}
		return "0"
	}
	for n := 0; n < 16; n++ {
		rec := map[string]any{"a": bit(n, 0), "b": bit(n, 1), "c": bit(n, 2), "d": bit(n, 3)}
		a, b, c, d := n&1 != 0, n&2 != 0, n&4 != 0, n&8 != 0
		want := ((a && b) || c) && (d || a)
		assert.Equal(t, want, e.Eval(rec), "record %v", rec)
	}
}

func TestUnbalancedBracketsAreInvalid(t *testing.T) {
	cases := [][]metadata.ConditionClause{
		{clause("", 1, "a", "equal", "1", 0)},
		{clause("", 0, "a", "equal", "1", 1)},
		{clause("", 1, "a", "equal", "1", 0), clause("and", 0, "b", "equal", "1", 2)},
		{clause("", 0, "a", "equal", "1", 1), clause("or", 1, "b", "equal", "1", 0)},
	}
	for i, c := range cases {
		_, err := Compile(c)
		assert.ErrorIs(t, err, ErrInvalid, "case %d", i)
	}
}

func TestBracketCountOutOfRange(t *testing.T) {
	_, err := Compile([]metadata.ConditionClause{
		clause("", 1_000_000_000, "a", "equal", "1", 1_000_000_000),
	})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Compile([]metadata.ConditionClause{clause("", -1, "a", "equal", "1", 0)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUnknownOperatorAndConnective(t *testing.T) {
	_, err := Compile([]metadata.ConditionClause{clause("", 0, "a", "approximately", "1", 0)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Compile([]metadata.ConditionClause{
		clause("", 0, "a", "equal", "1", 0),
		clause("xor", 0, "b", "equal", "1", 0),
	})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Compile([]metadata.ConditionClause{clause("", 0, "a; DROP TABLE x", "equal", "1", 0)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOperatorsInMemory(t *testing.T) {
	rec := map[string]any{
		"age":       int64(42),
		"name":      "Johnson",
		"city":      "Berlin",
		"nothing":   nil,
		"empty":     "",
		"published": true,
		"score":     "9",
	}
	cases := []struct {
		op    string
		field string
		value any
		want  bool
	}{
		{"greater", "age", "40", true},
		{"lowerequal", "age", 42, true},
		{"lower", "score", "10", true}, // numeric, not "9" > "10"
		{"greater", "name", "Jane", true},
		{"like", "name", "john", true},
		{"like", "name", "J%son", true},
		{"unlike", "name", "xyz", true},
		{"in", "city", []any{"Paris", "Berlin"}, true},
		{"in", "city", "Paris, Rome", false},
		{"notin", "city", []any{"Paris"}, true},
		{"isnull", "nothing", nil, true},
		{"isnotnull", "city", nil, true},
		{"isempty", "empty", nil, true},
		{"isempty", "nothing", nil, true},
		{"isnotempty", "city", nil, true},
		{"unequal", "nothing", "Paris", false},
		{"notin", "nothing", []any{"Paris"}, false},
		{"notin", "nothing", nil, false},
		{"unlike", "nothing", "x", false},
		{"equal", "nothing", "", false},
		{"equal", "published", "1", true},
		{"regexp", "city", "^Ber", true},
		{"notregexp", "city", "^Par", true},
		{"eq", "city", "Berlin", true},
		{">=", "age", "42", true},
	}
	for _, tc := range cases {
		e, err := Compile([]metadata.ConditionClause{clause("", 0, tc.field, tc.op, tc.value, 0)})
		require.NoError(t, err, "%s %s", tc.field, tc.op)
		assert.Equal(t, tc.want, e.Eval(rec), "%s %s %v", tc.field, tc.op, tc.value)
	}
}

func TestQualifiedFieldFallsBackToColumn(t *testing.T) {
	e, err := Compile([]metadata.ConditionClause{clause("", 0, "tl_member.city", "equal", "Berlin", 0)})
	require.NoError(t, err)
	assert.True(t, e.Eval(map[string]any{"city": "Berlin"}))
}

func TestExpressionOperator(t *testing.T) {
	e, err := Compile([]metadata.ConditionClause{
		clause("", 0, "age", "expression", "value >= 18 && record.city == 'Berlin'", 0),
	})
	require.NoError(t, err)
	assert.True(t, e.Eval(map[string]any{"age": 20, "city": "Berlin"}))
	assert.False(t, e.Eval(map[string]any{"age": 12, "city": "Berlin"}))

	_, err = e.SQL(&testBuilder{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Compile([]metadata.ConditionClause{clause("", 0, "", "expression", "record.(", 0)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSQLOperators(t *testing.T) {
	cases := []struct {
		op    string
		value any
		want  string
		args  []any
	}{
		{"like", "ohn", "t.f LIKE $1", []any{"%ohn%"}},
		{"unlike", "J%", "t.f NOT LIKE $1", []any{"J%"}},
		{"in", []any{"a", "b"}, "t.f IN ($1, $2)", []any{"a", "b"}},
		{"in", []any{}, "1=0", nil},
		{"notin", nil, "t.f IS NOT NULL", nil},
		{"isnull", nil, "t.f IS NULL", nil},
		{"isempty", nil, "COALESCE(CAST(t.f AS TEXT), '') = ''", nil},
		{"isnotempty", nil, "COALESCE(CAST(t.f AS TEXT), '') <> ''", nil},
		{"regexp", "^a", "t.f ~ $1", []any{"^a"}},
		{"notregexp", "^a", "t.f !~ $1", []any{"^a"}},
		{"greaterequal", 3, "t.f >= $1", []any{3}},
	}
	for _, tc := range cases {
		e, err := Compile([]metadata.ConditionClause{clause("", 0, "f", tc.op, tc.value, 0)})
		require.NoError(t, err, tc.op)
		b := &testBuilder{}
		sql, err := e.SQL(b)
		require.NoError(t, err, tc.op)
		assert.Equal(t, tc.want, sql, tc.op)
		assert.Equal(t, tc.args, b.params, tc.op)
	}
}

func TestRegexpUnsupportedByDatabase(t *testing.T) {
	e, err := Compile([]metadata.ConditionClause{clause("", 0, "f", "regexp", "x", 0)})
	require.NoError(t, err)
	_, err = e.SQL(&testBuilder{noRegex: true})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAndCombinator(t *testing.T) {
	assert.Equal(t, Always, And())
	assert.Equal(t, Always, And(nil, Always))

	a := MustCompile([]metadata.ConditionClause{
		clause("", 0, "a", "equal", "1", 0),
		clause("or", 0, "b", "equal", "1", 0),
	})
	c := MustCompile([]metadata.ConditionClause{clause("", 0, "c", "equal", "1", 0)})
	e := And(a, Always, c)

	sql, err := e.SQL(&testBuilder{})
	require.NoError(t, err)
	assert.Equal(t, "((t.a = $1 OR t.b = $2) AND t.c = $3)", sql)
	assert.False(t, e.Eval(map[string]any{"a": "1", "b": "1", "c": "0"}))
}
