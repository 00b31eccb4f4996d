package engine

import (
	"fmt"
	"sort"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
)

// FilterEngine turns stored filter definitions into conditions.
type FilterEngine struct {
	snap *metadata.Snapshot
}

func NewFilterEngine(snap *metadata.Snapshot) *FilterEngine {
	return &FilterEngine{snap: snap}
}

// GetFilterDefinition returns the filter with the given id.
func (f *FilterEngine) GetFilterDefinition(id int64) (*metadata.Filter, bool) {
	def := f.snap.Filter(id)
	return def, def != nil
}

// ComputeCondition combines the filter's own clauses with one clause per
// bound element. Bindings name filter elements and carry the value to
// compare against. Binding an element the filter does not define is an
// error.
func (f *FilterEngine) ComputeCondition(def *metadata.Filter, bindings map[string]any) (condition.Expr, error) {
	base, err := condition.Compile(def.Clauses)
	if err != nil {
		return nil, fmt.Errorf("filter %d: %w", def.ID, err)
	}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	exprs := []condition.Expr{base}
	for _, name := range names {
		el := def.GetElement(name)
		if el == nil {
			return nil, fmt.Errorf("%w: filter %d has no element %q", condition.ErrInvalid, def.ID, name)
		}
		op := el.Operator
		if op == "" {
			op = condition.OpEqual
		}
		e, err := condition.Compile([]metadata.ConditionClause{
			{Field: el.Field, Operator: op, Value: bindings[name]},
		})
		if err != nil {
			return nil, fmt.Errorf("filter %d element %s: %w", def.ID, name, err)
		}
		exprs = append(exprs, e)
	}
	return condition.And(exprs...), nil
}
