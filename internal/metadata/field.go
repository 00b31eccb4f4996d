package metadata

import "fmt"

type Field struct {
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Nullable        bool              `json:"nullable,omitempty"`
	Precision       int               `json:"precision,omitempty"`
	Format          string            `json:"format,omitempty"`  // date, datetime, time, boolean, options, html, json
	Options         map[string]string `json:"options,omitempty"` // raw value -> label for format "options"
	TranslatableFor string            `json:"translatable_for,omitempty"`
	LoadCallbacks   []string          `json:"load_callbacks,omitempty"`
}

// PostgresType returns the Postgres DDL type for this field.
func (f Field) PostgresType() string {
	switch f.Type {
	case "string", "text":
		return "TEXT"
	case "int":
		return "INTEGER"
	case "bigint":
		return "BIGINT"
	case "decimal":
		if f.Precision > 0 {
			return fmt.Sprintf("NUMERIC(18,%d)", f.Precision)
		}
		return "NUMERIC"
	case "boolean":
		return "BOOLEAN"
	case "uuid":
		return "UUID"
	case "timestamp":
		return "TIMESTAMPTZ"
	case "date":
		return "DATE"
	case "json", "file":
		return "JSONB"
	default:
		return "TEXT"
	}
}

// FormatKind returns the formatting rule for the field: the explicit format
// if set, otherwise one derived from the field type.
func (f Field) FormatKind() string {
	if f.Format != "" {
		return f.Format
	}
	switch f.Type {
	case "boolean":
		return "boolean"
	case "timestamp":
		return "datetime"
	case "date":
		return "date"
	case "json":
		return "json"
	}
	return ""
}
