package engine

import (
	"context"
	"fmt"
	"strconv"

	"reader-backend/internal/config"
	"reader-backend/internal/instrument"
	"reader-backend/internal/metadata"
)

// Stage is how far a request got through the reader lifecycle.
type Stage int

const (
	StageIdle Stage = iota
	StageConfigLoaded
	StageItemRetrieved
	StagePermissionChecked
	StageRedirectEvaluated
	StageRendered
)

func (s Stage) String() string {
	switch s {
	case StageConfigLoaded:
		return "config_loaded"
	case StageItemRetrieved:
		return "item_retrieved"
	case StagePermissionChecked:
		return "permission_checked"
	case StageRedirectEvaluated:
		return "redirect_evaluated"
	case StageRendered:
		return "rendered"
	}
	return "idle"
}

type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusForbidden
	StatusRedirect
)

// Outcome is the result of a reader request. Body is set for StatusOK and
// RedirectURL for StatusRedirect.
type Outcome struct {
	Stage       Stage
	Status      Status
	Body        string
	RedirectURL string
	Item        *Item
}

// DefaultTemplate is used when a reader config names none.
const DefaultTemplate = "reader_default"

// Deps are the collaborators of a Manager.
type Deps struct {
	Registry        *metadata.Registry
	Repository      Repository
	Files           FileResolver
	URLs            URLResolver
	Renderer        Renderer
	Formatter       *Formatter
	Callbacks       *Callbacks
	DefaultLanguage string
}

// Manager runs the reader lifecycle: load config, retrieve, assemble, check
// access, redirect, augment and render.
type Manager struct {
	registry   *metadata.Registry
	retriever  *retriever
	urls       URLResolver
	renderer   Renderer
	assembler  *Assembler
	callbacks  *Callbacks
	elements   *ElementRegistry
	defaultLng string
}

func NewManager(d Deps) *Manager {
	if d.Callbacks == nil {
		d.Callbacks = NewCallbacks()
	}
	if d.Formatter == nil {
		d.Formatter = NewFormatter(config.FormatsConfig{}, d.Callbacks)
	}
	assembler := NewAssembler(d.Formatter)
	m := &Manager{
		registry:   d.Registry,
		retriever:  &retriever{repo: d.Repository},
		urls:       d.URLs,
		renderer:   d.Renderer,
		assembler:  assembler,
		callbacks:  d.Callbacks,
		elements:   NewElementRegistry(),
		defaultLng: d.DefaultLanguage,
	}

	progs := newProgramCache()
	m.elements.Register("image", func(el metadata.ConfigElement) (Element, error) {
		return newImageElement(el, d.Files)
	})
	m.elements.Register("list", func(el metadata.ConfigElement) (Element, error) {
		return newListElement(el, d.Repository, d.Renderer, assembler)
	})
	m.elements.Register("expression", func(el metadata.ConfigElement) (Element, error) {
		return newExpressionElement(el, progs)
	})
	return m
}

// Elements exposes the element registry so custom element types can be
// added before serving.
func (m *Manager) Elements() *ElementRegistry { return m.elements }

// Callbacks exposes the callback registry.
func (m *Manager) Callbacks() *Callbacks { return m.callbacks }

// Handle serves one reader request for the module.
func (m *Manager) Handle(ctx context.Context, moduleID int64, req Request) (*Outcome, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "reader", "reader.handle")
	defer span.End()
	span.SetMetadata("module", moduleID)

	out, err := m.handle(ctx, moduleID, req)
	if err != nil {
		span.SetStatus("error")
		span.SetMetadata("error", err.Error())
		return nil, err
	}
	span.SetStatus("ok")
	span.SetMetadata("stage", out.Stage.String())
	return out, nil
}

func (m *Manager) handle(ctx context.Context, moduleID int64, req Request) (*Outcome, error) {
	snap := m.registry.Snapshot()
	module := snap.Module(moduleID)
	if module == nil || module.Type != metadata.ModuleTypeReader {
		return nil, UnknownModuleError(moduleID)
	}
	cfg := snap.ReaderConfig(module.ReaderConfig)
	if cfg == nil {
		return nil, missingConfigError(moduleID)
	}
	ref := configRef{moduleID: moduleID, configID: cfg.ID}
	if req.Language == "" {
		req.Language = m.defaultLng
	}

	pipeline, err := m.elements.Build(cfg.Elements)
	if err != nil {
		return nil, configError(ref, err, "elements")
	}
	out := &Outcome{Stage: StageConfigLoaded}

	rctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "reader", "reader.retrieve")
	span.SetEntity(cfg.Container, "")
	raw, err := m.retriever.Retrieve(rctx, snap, ref, cfg, req)
	span.SetMetadata("found", raw != nil)
	span.End()
	if err != nil {
		return nil, err
	}
	out.Stage = StageItemRetrieved
	if raw == nil {
		out.Status = StatusNotFound
		return out, nil
	}

	entity := snap.Entity(cfg.Container)
	item := m.assembler.Build(raw, entity)
	out.Item = item
	if id, ok := raw[entity.PrimaryKey.Field]; ok {
		instrument.GetInstrumenter(ctx).EmitBusinessEvent(ctx, "reader.item", entity.Name, fmt.Sprint(id),
			map[string]any{"config": cfg.ID})
	}

	if err := m.callbacks.RunOnLoad(ctx, entity.OnLoad, cfg, item); err != nil {
		return nil, err
	}

	allowed, err := CheckPermission(ref, cfg, item)
	if err != nil {
		return nil, err
	}
	out.Stage = StagePermissionChecked
	if !allowed {
		out.Status = StatusForbidden
		return out, nil
	}

	url, redirect, err := ComputeRedirect(ctx, ref, cfg, item, m.urls)
	if err != nil {
		return nil, err
	}
	out.Stage = StageRedirectEvaluated
	if redirect {
		out.Status = StatusRedirect
		out.RedirectURL = url
		return out, nil
	}

	scope := &Scope{Snapshot: snap, Config: cfg, Request: req}
	pctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "reader", "reader.elements")
	span.SetMetadata("count", len(pipeline))
	err = pipeline.Apply(pctx, scope, item)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("reader config %d: %w", cfg.ID, err)
	}

	name := cfg.Template
	if name == "" {
		name = DefaultTemplate
	}
	if _, ok := m.renderer.ResolveTemplateByName(name); !ok {
		return nil, &TemplateNotFoundError{Template: name}
	}
	_, span = instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "reader", "reader.render")
	span.SetMetadata("template", name)
	body, err := m.renderer.Render(name, item.TemplateData(cfg))
	span.End()
	if err != nil {
		return nil, err
	}
	out.Stage = StageRendered
	out.Status = StatusOK
	out.Body = body
	return out, nil
}

// ParseModuleID parses a module id path parameter.
func ParseModuleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewAppError("INVALID_MODULE", 400, fmt.Sprintf("Invalid module id: %s", s))
	}
	return id, nil
}
