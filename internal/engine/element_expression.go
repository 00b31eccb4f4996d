package engine

import (
	"context"
	"fmt"
	"html"
	"log"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"reader-backend/internal/metadata"
)

// programCache holds compiled expr-lang programs keyed by source.
type programCache struct {
	mu    sync.RWMutex
	progs map[string]*vm.Program
}

func newProgramCache() *programCache {
	return &programCache{progs: make(map[string]*vm.Program)}
}

func (c *programCache) compile(src string) (*vm.Program, error) {
	c.mu.RLock()
	prog, ok := c.progs[src]
	c.mu.RUnlock()
	if ok {
		return prog, nil
	}
	prog, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.progs[src] = prog
	c.mu.Unlock()
	return prog, nil
}

// expressionElement stores the result of an expression under
// formatted["computed"][name]. The expression sees raw, formatted and the
// request language. String results are escaped like any formatted value.
type expressionElement struct {
	name string
	prog *vm.Program
}

func newExpressionElement(el metadata.ConfigElement, cache *programCache) (Element, error) {
	if el.Name == "" || el.Expression == "" {
		return nil, fmt.Errorf("expression element needs a name and an expression")
	}
	prog, err := cache.compile(el.Expression)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", el.Name, err)
	}
	return &expressionElement{name: el.Name, prog: prog}, nil
}

func (e *expressionElement) Contribute(_ context.Context, scope *Scope, item *Item) error {
	env := map[string]any{
		"raw":       item.Raw,
		"formatted": item.Formatted,
		"language":  scope.Request.Language,
	}
	out, err := expr.Run(e.prog, env)
	if err != nil {
		log.Printf("WARN: reader config %d: expression %s: %v", scope.Config.ID, e.name, err)
		return nil
	}
	if s, ok := out.(string); ok {
		out = html.EscapeString(s)
	}
	item.MergeFormatted("computed", e.name, out)
	return nil
}
