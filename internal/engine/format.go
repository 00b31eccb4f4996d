package engine

import (
	"encoding/json"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	"reader-backend/internal/condition"
	"reader-backend/internal/config"
	"reader-backend/internal/metadata"
)

// Formatter renders raw field values for display. Output is HTML-escaped
// unless the field is formatted as html.
type Formatter struct {
	dateLayout     string
	dateTimeLayout string
	timeLayout     string
	loc            *time.Location
	yes, no        string
	callbacks      *Callbacks
}

func NewFormatter(cfg config.FormatsConfig, cb *Callbacks) *Formatter {
	f := &Formatter{
		dateLayout:     orDefault(cfg.Date, "02.01.2006"),
		dateTimeLayout: orDefault(cfg.DateTime, "02.01.2006 15:04"),
		timeLayout:     orDefault(cfg.Time, "15:04"),
		loc:            time.UTC,
		yes:            orDefault(cfg.Yes, "yes"),
		no:             orDefault(cfg.No, "no"),
		callbacks:      cb,
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Printf("WARN: unknown timezone %q, using UTC", cfg.Timezone)
		} else {
			f.loc = loc
		}
	}
	if f.callbacks == nil {
		f.callbacks = NewCallbacks()
	}
	return f
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Format returns the display value of v. field may be nil for columns the
// container does not describe.
func (f *Formatter) Format(field *metadata.Field, v any) any {
	if field == nil {
		return html.EscapeString(condition.Stringify(v))
	}
	if len(field.LoadCallbacks) > 0 {
		v = f.callbacks.ApplyValue(field.LoadCallbacks, v)
	}

	switch field.FormatKind() {
	case "date":
		return f.formatTime(v, f.dateLayout)
	case "datetime":
		return f.formatTime(v, f.dateTimeLayout)
	case "time":
		return f.formatTime(v, f.timeLayout)
	case "boolean":
		if v == nil {
			return ""
		}
		if truthy(v) {
			return html.EscapeString(f.yes)
		}
		return html.EscapeString(f.no)
	case "options":
		s := condition.Stringify(v)
		if label, ok := field.Options[s]; ok {
			return html.EscapeString(label)
		}
		return html.EscapeString(s)
	case "html":
		return condition.Stringify(v)
	case "json":
		if s, ok := v.(string); ok {
			return html.EscapeString(s)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return html.EscapeString(string(b))
	}
	return html.EscapeString(condition.Stringify(v))
}

// formatTime accepts unix timestamps, time.Time values and ISO dates. Zero
// and empty values render as "".
func (f *Formatter) formatTime(v any, layout string) string {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		t = val
	case int64:
		t = time.Unix(val, 0)
	case int:
		t = time.Unix(int64(val), 0)
	case float64:
		t = time.Unix(int64(val), 0)
	default:
		s := strings.TrimSpace(condition.Stringify(v))
		if s == "" {
			return ""
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			t = time.Unix(n, 0)
			break
		}
		parsed, ok := parseTime(s)
		if !ok {
			return html.EscapeString(s)
		}
		t = parsed
	}
	if t.IsZero() || t.Unix() == 0 {
		return ""
	}
	return t.In(f.loc).Format(layout)
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02", "15:04:05"}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truthy is the published-flag notion of true: non-empty and not "0".
func truthy(v any) bool {
	s := condition.Stringify(v)
	return s != "" && s != "0" && !strings.EqualFold(s, "false")
}
