package engine

import (
	"fmt"
	"strings"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
	"reader-backend/internal/store"
)

// QueryPlan describes a select against a container, optionally joined with
// its translation table for one language.
type QueryPlan struct {
	Entity       *metadata.Entity
	Fields       []FieldRef
	Where        condition.Expr
	Sorts        []OrderClause
	Limit        int
	Multilingual bool
	Language     string
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

type QueryResult struct {
	SQL    string
	Params []any
}

// sqlBuilder renders conditions for a plan. It qualifies columns with the
// container table and reads translated fields from the translation join.
type sqlBuilder struct {
	plan    *QueryPlan
	dialect store.Dialect
	pb      store.ParamBuilder
	join    bool
}

func (b *sqlBuilder) Bind(v any) string { return b.pb.Add(v) }

func (b *sqlBuilder) RegexpExpr(column, placeholder string, negate bool) (string, bool) {
	return b.dialect.RegexpExpr(column, placeholder, negate)
}

func (b *sqlBuilder) LikeExpr(column, placeholder string, negate bool) string {
	return b.dialect.LikeExpr(column, placeholder, negate)
}

func (b *sqlBuilder) Column(field string) (string, error) {
	e := b.plan.Entity
	if table, col, ok := strings.Cut(field, "."); ok {
		if !b.known(col) {
			return "", fmt.Errorf("%w: unknown field %q", condition.ErrInvalid, field)
		}
		switch table {
		case e.Table:
			return field, nil
		case e.TranslationAlias():
			if e.Translation == nil {
				return "", fmt.Errorf("%w: %s has no translation table", condition.ErrInvalid, e.Name)
			}
			b.join = true
			return field, nil
		}
		return "", fmt.Errorf("%w: unknown table in %q", condition.ErrInvalid, field)
	}

	if !b.known(field) {
		return "", fmt.Errorf("%w: unknown field %q", condition.ErrInvalid, field)
	}
	if b.translated(field) {
		b.join = true
		return fmt.Sprintf("COALESCE(%s.%s, %s.%s)", e.TranslationAlias(), field, e.Table, field), nil
	}
	return e.Table + "." + field, nil
}

func (b *sqlBuilder) known(field string) bool {
	return field == b.plan.Entity.PrimaryKey.Field || b.plan.Entity.HasField(field)
}

func (b *sqlBuilder) translated(field string) bool {
	e := b.plan.Entity
	if !b.plan.Multilingual || field == e.PrimaryKey.Field {
		return false
	}
	f := e.GetField(field)
	return f != nil && e.IsTranslated(*f, b.plan.Language)
}

// BuildSelectSQL renders the plan. Translated columns fall back to the base
// table value when no translation row exists.
func BuildSelectSQL(plan *QueryPlan, dialect store.Dialect) (QueryResult, error) {
	e := plan.Entity
	b := &sqlBuilder{plan: plan, dialect: dialect, pb: dialect.NewParamBuilder()}

	cols := make([]string, 0, len(plan.Fields))
	for _, f := range plan.Fields {
		if f.Translated {
			b.join = true
			cols = append(cols, fmt.Sprintf("COALESCE(%s, %s.%s) AS %s", f.Qualified(), e.Table, f.Name, f.Name))
			continue
		}
		cols = append(cols, f.Qualified())
	}
	if len(cols) == 0 {
		cols = append(cols, e.Table+".*")
	}

	var where string
	if plan.Where != nil && plan.Where != condition.Always {
		w, err := plan.Where.SQL(b)
		if err != nil {
			return QueryResult{}, err
		}
		where = w
	}

	var orders []string
	for _, s := range plan.Sorts {
		col, err := b.Column(s.Field)
		if err != nil {
			return QueryResult{}, err
		}
		dir := "ASC"
		if strings.EqualFold(s.Dir, "desc") {
			dir = "DESC"
		}
		orders = append(orders, col+" "+dir)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(e.Table)
	if b.join {
		tr := e.Translation
		if tr == nil {
			return QueryResult{}, fmt.Errorf("%w: %s has no translation table", condition.ErrInvalid, e.Name)
		}
		alias := e.TranslationAlias()
		fmt.Fprintf(&sb, " LEFT JOIN %s AS %s ON %s.%s = %s.%s AND %s.%s = %s",
			tr.Table, alias, alias, tr.ParentField, e.Table, e.PrimaryKey.Field,
			alias, tr.LanguageField, b.Bind(plan.Language))
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if len(orders) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}
	if plan.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", plan.Limit)
	}

	return QueryResult{SQL: sb.String(), Params: b.pb.Params()}, nil
}
