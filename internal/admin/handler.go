package admin

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"reader-backend/internal/condition"
	"reader-backend/internal/engine"
	"reader-backend/internal/metadata"
	"reader-backend/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	elements *engine.ElementRegistry
	onReload []func()
}

func NewHandler(s *store.Store, reg *metadata.Registry, elements *engine.ElementRegistry) *Handler {
	return &Handler{store: s, registry: reg, elements: elements}
}

// OnReload registers fn to run after every successful reload, e.g. to drop
// cached templates.
func (h *Handler) OnReload(fn func()) {
	h.onReload = append(h.onReload, fn)
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/_admin", middleware...)

	admin.Post("/reload", h.Reload)
	admin.Get("/reader-configs", h.ListReaderConfigs)
	admin.Get("/reader-configs/:id", h.GetReaderConfig)
	admin.Put("/reader-configs/:id", h.PutReaderConfig)
}

func (h *Handler) Reload(c *fiber.Ctx) error {
	if err := h.reload(c); err != nil {
		return err
	}
	containers, configs, modules, filters, pages := h.registry.Snapshot().Counts()
	return c.JSON(fiber.Map{"data": fiber.Map{
		"containers":     containers,
		"reader_configs": configs,
		"modules":        modules,
		"filters":        filters,
		"pages":          pages,
	}})
}

func (h *Handler) reload(c *fiber.Ctx) error {
	if err := metadata.Reload(c.UserContext(), h.store.DB, h.registry); err != nil {
		return fmt.Errorf("reload metadata: %w", err)
	}
	for _, fn := range h.onReload {
		fn()
	}
	return nil
}

func (h *Handler) ListReaderConfigs(c *fiber.Ctx) error {
	configs := h.registry.Snapshot().ReaderConfigs()
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return c.JSON(fiber.Map{"data": configs})
}

func (h *Handler) GetReaderConfig(c *fiber.Ctx) error {
	id, err := configID(c)
	if err != nil {
		return err
	}
	rc := h.registry.Snapshot().ReaderConfig(id)
	if rc == nil {
		return engine.NotFoundError("Reader config", c.Params("id"))
	}
	return c.JSON(fiber.Map{"data": rc})
}

// PutReaderConfig creates or replaces a reader config and reloads the
// registry.
func (h *Handler) PutReaderConfig(c *fiber.Ctx) error {
	id, err := configID(c)
	if err != nil {
		return err
	}
	var rc metadata.ReaderConfig
	if err := c.BodyParser(&rc); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	rc.ID = id
	for i := range rc.Elements {
		rc.Elements[i].ConfigID = id
	}
	rc.SortElements()

	if details := h.validate(&rc); len(details) > 0 {
		return engine.ValidationError(details)
	}
	if err := h.store.SaveReaderConfig(c.UserContext(), &rc); err != nil {
		return err
	}
	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.registry.Snapshot().ReaderConfig(id)})
}

func configID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, engine.NewAppError("INVALID_ID", 400, "Invalid reader config id: "+c.Params("id"))
	}
	return id, nil
}

func (h *Handler) validate(rc *metadata.ReaderConfig) []engine.ErrorDetail {
	var details []engine.ErrorDetail
	add := func(field, rule, msg string) {
		details = append(details, engine.ErrorDetail{Field: field, Rule: rule, Message: msg})
	}

	snap := h.registry.Snapshot()
	if rc.Container == "" {
		add("container", "required", "container is required")
	} else if snap.Entity(rc.Container) == nil {
		add("container", "exists", fmt.Sprintf("unknown container %q", rc.Container))
	}

	switch rc.Mode {
	case "", metadata.RetrievalAutoItem, metadata.RetrievalFieldConditions:
	default:
		add("mode", "enum", fmt.Sprintf("unknown retrieval mode %q", rc.Mode))
	}
	if rc.Filter != 0 && snap.Filter(rc.Filter) == nil {
		add("filter", "exists", fmt.Sprintf("unknown filter %d", rc.Filter))
	}

	lists := map[string][]metadata.ConditionClause{
		"field_conditions": rc.FieldConditions,
		"show_conditions":  rc.ShowConditions,
	}
	if rc.Redirect != nil {
		lists["redirect.conditions"] = rc.Redirect.Conditions
	}
	for _, field := range []string{"field_conditions", "show_conditions", "redirect.conditions"} {
		if _, err := condition.Compile(lists[field]); err != nil {
			add(field, "condition", conditionMessage(err))
		}
	}

	for i, el := range rc.Elements {
		if !h.elements.Has(el.Type) {
			add(fmt.Sprintf("elements[%d].type", i), "enum", fmt.Sprintf("unknown element type %q", el.Type))
		}
	}
	return details
}

func conditionMessage(err error) string {
	if errors.Is(err, condition.ErrInvalid) {
		return err.Error()
	}
	return "invalid condition list: " + err.Error()
}
