package engine

import (
	"context"
	"errors"
	"log"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
)

// Renderer resolves and executes templates by name.
type Renderer interface {
	ResolveTemplateByName(name string) (string, bool)
	Render(name string, data map[string]any) (string, error)
}

// listElement renders a list module filtered by a value of the item, for
// example the articles of the author being read. The output is stored under
// formatted["list"][name].
type listElement struct {
	el        metadata.ConfigElement
	repo      Repository
	renderer  Renderer
	assembler *Assembler
}

func newListElement(el metadata.ConfigElement, repo Repository, r Renderer, a *Assembler) (Element, error) {
	return &listElement{el: el, repo: repo, renderer: r, assembler: a}, nil
}

func (e *listElement) Contribute(ctx context.Context, scope *Scope, item *Item) error {
	skip := func(format string, args ...any) error {
		args = append([]any{scope.Config.ID, e.el.ListModule}, args...)
		log.Printf("WARN: reader config %d: list element for module %d skipped: "+format, args...)
		return nil
	}

	module := scope.Snapshot.Module(e.el.ListModule)
	if module == nil || !module.IsList() {
		return skip("not a list module")
	}
	if len(e.el.InitialFilter) == 0 || e.el.InitialFilter[0].FilterElement == "" || e.el.InitialFilter[0].Selector == "" {
		return skip("no filter binding")
	}
	binding := e.el.InitialFilter[0]
	settings := module.List

	entity := scope.Snapshot.Entity(settings.Container)
	if entity == nil {
		return skip("unknown container %q", settings.Container)
	}

	bound, err := e.bindingCondition(scope.Snapshot, settings, entity, binding, item.Raw[binding.Selector])
	if err != nil {
		return skip("%v", err)
	}
	where, err := condition.Compile(settings.Where)
	if err != nil {
		return skip("where: %v", err)
	}

	opts := FindOptions{
		Fields:       resolveFields(entity, settings.Fields, map[string]bool{entity.PrimaryKey.Field: true}, scope.Config.Multilingual, scope.Request.Language),
		Multilingual: scope.Config.Multilingual,
		Language:     scope.Request.Language,
		Limit:        settings.Limit,
	}
	if settings.Sort != "" {
		opts.Sorts = []OrderClause{{Field: settings.Sort, Dir: settings.Order}}
	}

	rows, err := e.repo.FindManyWhere(ctx, entity, condition.And(bound, where), opts)
	if errors.Is(err, condition.ErrInvalid) {
		return skip("%v", err)
	}
	if err != nil {
		return err
	}

	if _, ok := e.renderer.ResolveTemplateByName(settings.Template); !ok {
		return skip("unable to find template %q", settings.Template)
	}
	items := make([]map[string]any, len(rows))
	for i, row := range rows {
		items[i] = e.assembler.Build(row, entity).Formatted
	}
	out, err := e.renderer.Render(settings.Template, map[string]any{
		"items":  trusted(items),
		"module": module,
		"parent": trusted(item.Formatted),
	})
	if err != nil {
		return err
	}

	name := e.el.ListName
	if name == "" {
		name = module.Name
	}
	item.MergeFormatted("list", name, out)
	return nil
}

// bindingCondition restricts the list to rows matching value. With a filter
// the binding names one of its elements; without one it names a field of
// the listed container.
func (e *listElement) bindingCondition(snap *metadata.Snapshot, settings *metadata.ListSettings, entity *metadata.Entity,
	binding metadata.FilterBinding, value any) (condition.Expr, error) {
	if settings.Filter == 0 {
		if !entity.HasField(binding.FilterElement) && binding.FilterElement != entity.PrimaryKey.Field {
			return nil, errors.New("unknown field " + binding.FilterElement)
		}
		return condition.Compile([]metadata.ConditionClause{
			{Field: binding.FilterElement, Operator: condition.OpEqual, Value: value},
		})
	}

	fe := NewFilterEngine(snap)
	def, ok := fe.GetFilterDefinition(settings.Filter)
	if !ok {
		return nil, errors.New("unknown filter")
	}
	return fe.ComputeCondition(def, map[string]any{binding.FilterElement: value})
}
