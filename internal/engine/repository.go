package engine

import (
	"context"
	"fmt"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
	"reader-backend/internal/store"
)

// FindOptions shapes the rows a Repository returns.
type FindOptions struct {
	Fields       []FieldRef
	Multilingual bool
	Language     string
	Sorts        []OrderClause
	Limit        int
}

// Repository reads container rows. A lookup that matches nothing returns a
// nil record and no error.
type Repository interface {
	FindByPrimaryKey(ctx context.Context, entity *metadata.Entity, id any, opts FindOptions) (map[string]any, error)
	FindOneWhere(ctx context.Context, entity *metadata.Entity, where condition.Expr, opts FindOptions) (map[string]any, error)
	FindManyWhere(ctx context.Context, entity *metadata.Entity, where condition.Expr, opts FindOptions) ([]map[string]any, error)
}

// SQLRepository is a Repository over the store's database.
type SQLRepository struct {
	store *store.Store
}

func NewSQLRepository(s *store.Store) *SQLRepository {
	return &SQLRepository{store: s}
}

func (r *SQLRepository) FindByPrimaryKey(ctx context.Context, entity *metadata.Entity, id any, opts FindOptions) (map[string]any, error) {
	where, err := condition.Compile([]metadata.ConditionClause{
		{Field: entity.PrimaryKey.Field, Operator: condition.OpEqual, Value: id},
	})
	if err != nil {
		return nil, err
	}
	return r.FindOneWhere(ctx, entity, where, opts)
}

func (r *SQLRepository) FindOneWhere(ctx context.Context, entity *metadata.Entity, where condition.Expr, opts FindOptions) (map[string]any, error) {
	opts.Limit = 1
	rows, err := r.FindManyWhere(ctx, entity, where, opts)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *SQLRepository) FindManyWhere(ctx context.Context, entity *metadata.Entity, where condition.Expr, opts FindOptions) ([]map[string]any, error) {
	plan := &QueryPlan{
		Entity:       entity,
		Fields:       opts.Fields,
		Where:        where,
		Sorts:        opts.Sorts,
		Limit:        opts.Limit,
		Multilingual: opts.Multilingual,
		Language:     opts.Language,
	}
	qr, err := BuildSelectSQL(plan, r.store.Dialect)
	if err != nil {
		return nil, err
	}
	rows, err := store.QueryRows(ctx, r.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity.Name, err)
	}
	if r.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, booleanFields(entity))
	}
	return rows, nil
}

func booleanFields(entity *metadata.Entity) []string {
	var names []string
	for _, f := range entity.Fields {
		if f.Type == "boolean" {
			names = append(names, f.Name)
		}
	}
	return names
}
