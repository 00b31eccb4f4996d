package engine

import (
	"html/template"
	"log"

	"reader-backend/internal/metadata"
)

// ContainerKey holds the item's container in both the raw and the formatted
// map.
const ContainerKey = "_container"

// Item is an assembled detail item. Raw and Formatted always have the same
// keys, except for groups added by config elements to Formatted.
type Item struct {
	Raw       map[string]any
	Formatted map[string]any
	Entity    *metadata.Entity
}

// MergeFormatted sets Formatted[group][name], creating the group map on
// first use. Existing entries of the group are kept.
func (it *Item) MergeFormatted(group, name string, value any) {
	m, ok := it.Formatted[group].(map[string]any)
	if !ok {
		if _, taken := it.Formatted[group]; taken {
			log.Printf("WARN: item field %q is not a group, cannot add %q", group, name)
			return
		}
		m = make(map[string]any)
		it.Formatted[group] = m
	}
	m[name] = value
}

// TemplateData is what item templates are executed with.
func (it *Item) TemplateData(cfg *metadata.ReaderConfig) map[string]any {
	return map[string]any{
		"raw":       it.Raw,
		"formatted": trusted(it.Formatted),
		"config":    cfg,
		"container": it.Entity,
	}
}

// Assembler builds items from raw records.
type Assembler struct {
	formatter *Formatter
}

func NewAssembler(f *Formatter) *Assembler {
	return &Assembler{formatter: f}
}

func (a *Assembler) Build(raw map[string]any, entity *metadata.Entity) *Item {
	it := &Item{
		Raw:       make(map[string]any, len(raw)+1),
		Formatted: make(map[string]any, len(raw)+1),
		Entity:    entity,
	}
	for k, v := range raw {
		it.Raw[k] = v
		it.Formatted[k] = a.formatter.Format(entity.GetField(k), v)
	}
	it.Raw[ContainerKey] = entity
	it.Formatted[ContainerKey] = entity
	return it
}

// trusted marks the strings of a formatted map as safe HTML. They were
// escaped when the item was assembled. Other values are left to the
// template's own escaping.
func trusted(v any) any {
	switch v := v.(type) {
	case string:
		return template.HTML(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = trusted(x)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, m := range v {
			out[i] = trusted(m).(map[string]any)
		}
		return out
	}
	return v
}
