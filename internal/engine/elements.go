package engine

import (
	"context"
	"fmt"

	"reader-backend/internal/metadata"
)

// Scope is the request state config elements run in.
type Scope struct {
	Snapshot *metadata.Snapshot
	Config   *metadata.ReaderConfig
	Request  Request
}

// Element augments an item with derived data.
type Element interface {
	Contribute(ctx context.Context, scope *Scope, item *Item) error
}

// ElementFactory builds an element from its configuration.
type ElementFactory func(el metadata.ConfigElement) (Element, error)

// ElementRegistry maps element types to factories.
type ElementRegistry struct {
	factories map[string]ElementFactory
}

func NewElementRegistry() *ElementRegistry {
	return &ElementRegistry{factories: make(map[string]ElementFactory)}
}

func (r *ElementRegistry) Register(typ string, f ElementFactory) {
	r.factories[typ] = f
}

// Has reports whether typ has a factory.
func (r *ElementRegistry) Has(typ string) bool {
	_, ok := r.factories[typ]
	return ok
}

// Pipeline is an ordered list of elements.
type Pipeline []Element

// Build constructs the pipeline for elements, which must already be in
// position order. An unknown type fails the whole pipeline.
func (r *ElementRegistry) Build(elements []metadata.ConfigElement) (Pipeline, error) {
	p := make(Pipeline, 0, len(elements))
	for _, el := range elements {
		f, ok := r.factories[el.Type]
		if !ok {
			return nil, fmt.Errorf("unknown element type %q", el.Type)
		}
		e, err := f(el)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", el.Type, err)
		}
		p = append(p, e)
	}
	return p, nil
}

// Apply runs every element in order against item.
func (p Pipeline) Apply(ctx context.Context, scope *Scope, item *Item) error {
	for _, e := range p {
		if err := e.Contribute(ctx, scope, item); err != nil {
			return err
		}
	}
	return nil
}
