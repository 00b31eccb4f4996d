package metadata

import "strings"

// Entity describes a content container: a table, its primary key and fields.
type Entity struct {
	Name        string       `json:"name"`
	Table       string       `json:"table"`
	PrimaryKey  PrimaryKey   `json:"primary_key"`
	Fields      []Field      `json:"fields"`
	Translation *Translation `json:"translation,omitempty"`
	OnLoad      []Callback   `json:"on_load,omitempty"`
}

type PrimaryKey struct {
	Field string `json:"field"`
	Type  string `json:"type"` // int, bigint, string, uuid
}

// Translation links a container to its companion table holding per-language
// values for translatable fields.
type Translation struct {
	Table            string `json:"table"`
	ParentField      string `json:"parent_field"`
	LanguageField    string `json:"language_field"`
	FallbackLanguage string `json:"fallback_language"`
}

// Callback references a named on-load callback. A fatal callback aborts the
// request when it fails.
type Callback struct {
	Name  string `json:"name"`
	Fatal bool   `json:"fatal,omitempty"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names in declaration order.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// TranslationAlias is the table alias used when joining the translation table.
func (e *Entity) TranslationAlias() string {
	return e.Table + "_i18n"
}

// IsTranslated reports whether the field's value for lang lives in the
// translation table. The fallback language always reads the base table.
func (e *Entity) IsTranslated(f Field, lang string) bool {
	if e.Translation == nil || lang == "" || lang == e.Translation.FallbackLanguage {
		return false
	}
	return f.TranslatedFor(lang)
}

// TranslatedFor reports whether the field's translation scope covers lang.
// Scope "*" covers every language; otherwise it is a comma separated list.
func (f Field) TranslatedFor(lang string) bool {
	scope := strings.TrimSpace(f.TranslatableFor)
	if scope == "" {
		return false
	}
	if scope == "*" {
		return true
	}
	for _, s := range strings.Split(scope, ",") {
		if strings.EqualFold(strings.TrimSpace(s), lang) {
			return true
		}
	}
	return false
}
