package engine

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
)

// retriever locates the single item a reader configuration shows.
type retriever struct {
	repo Repository
}

// Retrieve returns the raw record for cfg, or nil when there is none.
// Malformed configuration is reported as *ConfigurationError.
func (r *retriever) Retrieve(ctx context.Context, snap *metadata.Snapshot, ref configRef, cfg *metadata.ReaderConfig, req Request) (map[string]any, error) {
	entity := snap.Entity(cfg.Container)
	if entity == nil {
		return nil, configError(ref, nil, "unknown container %q", cfg.Container)
	}

	published, err := publishedCondition(cfg, entity)
	if err != nil {
		return nil, configError(ref, err, "published filter")
	}

	opts := FindOptions{
		Fields:       ResolveFieldSources(cfg, entity, req.Language),
		Multilingual: cfg.Multilingual,
		Language:     req.Language,
	}

	var rec map[string]any
	switch cfg.Mode {
	case metadata.RetrievalFieldConditions:
		rec, err = r.byFieldConditions(ctx, snap, ref, cfg, entity, published, opts)
	case metadata.RetrievalAutoItem, "":
		rec, err = r.byAutoItem(ctx, cfg, entity, req, opts)
		if rec != nil && published != nil && !published.Eval(rec) {
			rec = nil
		}
	default:
		return nil, configError(ref, nil, "unknown retrieval mode %q", cfg.Mode)
	}
	if errors.Is(err, condition.ErrInvalid) {
		return nil, configError(ref, err, "retrieval")
	}
	return rec, err
}

func (r *retriever) byAutoItem(ctx context.Context, cfg *metadata.ReaderConfig, entity *metadata.Entity, req Request, opts FindOptions) (map[string]any, error) {
	value := req.param(cfg.AutoItemParamName())
	if value == "" {
		return nil, nil
	}

	if cfg.AutoItemField != "" && entity.HasField(cfg.AutoItemField) {
		where, err := condition.Compile([]metadata.ConditionClause{
			{Field: cfg.AutoItemField, Operator: condition.OpEqual, Value: value},
		})
		if err != nil {
			return nil, err
		}
		rec, err := r.repo.FindOneWhere(ctx, entity, where, opts)
		if err != nil || rec != nil {
			return rec, err
		}
	}

	id, ok := primaryKeyValue(entity, value)
	if !ok {
		return nil, nil
	}
	return r.repo.FindByPrimaryKey(ctx, entity, id, opts)
}

func (r *retriever) byFieldConditions(ctx context.Context, snap *metadata.Snapshot, ref configRef, cfg *metadata.ReaderConfig,
	entity *metadata.Entity, published condition.Expr, opts FindOptions) (map[string]any, error) {
	where, err := condition.Compile(cfg.FieldConditions)
	if err != nil {
		return nil, configError(ref, err, "field conditions")
	}

	var filter condition.Expr
	if cfg.Filter != 0 {
		fe := NewFilterEngine(snap)
		def, ok := fe.GetFilterDefinition(cfg.Filter)
		if !ok {
			return nil, configError(ref, nil, "unknown filter %d", cfg.Filter)
		}
		filter, err = fe.ComputeCondition(def, nil)
		if err != nil {
			return nil, configError(ref, err, "filter")
		}
	}

	return r.repo.FindOneWhere(ctx, entity, condition.And(where, filter, published), opts)
}

// publishedCondition returns the condition an item must satisfy to count as
// published, or nil when unpublished items are not hidden. A truthy value
// is neither empty nor "0"; the inverted form accepts exactly the others.
func publishedCondition(cfg *metadata.ReaderConfig, entity *metadata.Entity) (condition.Expr, error) {
	if !cfg.HideUnpublished {
		return nil, nil
	}
	field := cfg.PublishedFieldName()
	if !entity.HasField(field) {
		return nil, errors.New("container has no field " + strconv.Quote(field))
	}
	if cfg.InvertPublished {
		return condition.Compile([]metadata.ConditionClause{
			{Field: field, Operator: condition.OpIsEmpty},
			{Connective: "or", Field: field, Operator: condition.OpEqual, Value: "0"},
		})
	}
	return condition.Compile([]metadata.ConditionClause{
		{Field: field, Operator: condition.OpIsNotEmpty},
		{Connective: "and", Field: field, Operator: condition.OpUnequal, Value: "0"},
	})
}

// primaryKeyValue converts a request value to the primary key's type. Values
// that cannot be keys of an integer or uuid column are rejected.
func primaryKeyValue(entity *metadata.Entity, value string) (any, bool) {
	typ := entity.PrimaryKey.Type
	if f := entity.GetField(entity.PrimaryKey.Field); f != nil {
		typ = f.Type
	}
	switch typ {
	case "", "int", "integer", "bigint":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case "uuid":
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, false
		}
		return id.String(), true
	}
	return value, true
}
