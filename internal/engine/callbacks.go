package engine

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
)

// OnLoadFunc runs after an item is assembled and before access checks.
type OnLoadFunc func(ctx context.Context, cfg *metadata.ReaderConfig, item *Item) error

// ValueFunc transforms a raw field value before it is formatted.
type ValueFunc func(v any) any

// Callbacks holds named on-load and field load callbacks. Register before
// the manager starts serving; lookups are not synchronised with writes.
type Callbacks struct {
	onLoad map[string]OnLoadFunc
	values map[string]ValueFunc
}

func NewCallbacks() *Callbacks {
	cb := &Callbacks{
		onLoad: make(map[string]OnLoadFunc),
		values: make(map[string]ValueFunc),
	}
	cb.RegisterValue("trim", stringValue(strings.TrimSpace))
	cb.RegisterValue("upper", stringValue(strings.ToUpper))
	cb.RegisterValue("lower", stringValue(strings.ToLower))
	cb.RegisterValue("strip_tags", stringValue(stripTags))
	return cb
}

func (c *Callbacks) RegisterOnLoad(name string, fn OnLoadFunc) { c.onLoad[name] = fn }
func (c *Callbacks) RegisterValue(name string, fn ValueFunc)   { c.values[name] = fn }

// RunOnLoad invokes the referenced callbacks in order. A failing fatal
// callback aborts with its error; other failures and unknown names are
// logged and skipped.
func (c *Callbacks) RunOnLoad(ctx context.Context, refs []metadata.Callback, cfg *metadata.ReaderConfig, item *Item) error {
	for _, ref := range refs {
		fn, ok := c.onLoad[ref.Name]
		if !ok {
			log.Printf("WARN: reader config %d: unknown on-load callback %q", cfg.ID, ref.Name)
			continue
		}
		if err := fn(ctx, cfg, item); err != nil {
			if ref.Fatal {
				return fmt.Errorf("on-load callback %s: %w", ref.Name, err)
			}
			log.Printf("WARN: reader config %d: on-load callback %s: %v", cfg.ID, ref.Name, err)
		}
	}
	return nil
}

// ApplyValue runs the named field callbacks over v in order.
func (c *Callbacks) ApplyValue(names []string, v any) any {
	for _, name := range names {
		fn, ok := c.values[name]
		if !ok {
			log.Printf("WARN: unknown field load callback %q", name)
			continue
		}
		v = fn(v)
	}
	return v
}

func stringValue(fn func(string) string) ValueFunc {
	return func(v any) any {
		if v == nil {
			return nil
		}
		return fn(condition.Stringify(v))
	}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}
