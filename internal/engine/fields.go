package engine

import (
	"strings"

	"reader-backend/internal/metadata"
)

// FieldRef is one selected column and the table it is read from.
type FieldRef struct {
	Name       string
	Table      string
	Translated bool
}

// Qualified returns "table.column".
func (f FieldRef) Qualified() string {
	return f.Table + "." + f.Name
}

// ResolveFieldSources decides, for every field the reader selects, whether
// its value comes from the base table or the translation table. Fields keep
// schema order. The primary key, and the published field when unpublished
// items are hidden, are selected even if the allow-list leaves them out.
func ResolveFieldSources(cfg *metadata.ReaderConfig, entity *metadata.Entity, lang string) []FieldRef {
	required := map[string]bool{entity.PrimaryKey.Field: true}
	if cfg.HideUnpublished {
		required[cfg.PublishedFieldName()] = true
	}
	return resolveFields(entity, cfg.Fields, required, cfg.Multilingual, lang)
}

func resolveFields(entity *metadata.Entity, allow []string, required map[string]bool, multilingual bool, lang string) []FieldRef {
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowed[name] = true
	}

	refs := make([]FieldRef, 0, len(entity.Fields))
	for _, f := range entity.Fields {
		if len(allowed) > 0 && !allowed[f.Name] && !required[f.Name] {
			continue
		}
		ref := FieldRef{Name: f.Name, Table: entity.Table}
		if multilingual && f.Name != entity.PrimaryKey.Field && entity.IsTranslated(f, lang) {
			ref.Table = entity.TranslationAlias()
			ref.Translated = true
		}
		refs = append(refs, ref)
	}
	return refs
}

// QualifiedList joins the qualified names of refs with ", ".
func QualifiedList(refs []FieldRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.Qualified()
	}
	return strings.Join(parts, ", ")
}
