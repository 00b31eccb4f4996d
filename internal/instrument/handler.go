package instrument

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"reader-backend/internal/store"
)

const eventSelect = "SELECT id, trace_id, span_id, parent_span_id, event_type, source, component, action, " +
	"entity, record_id, user_id, duration_ms, status, metadata, created_at FROM _events"

// filterParams are the query parameters List filters on, each matched by
// equality against the column of the same name.
var filterParams = []string{"source", "component", "action", "entity", "record_id", "event_type", "trace_id", "user_id", "status"}

// EventHandler serves recorded events to administrators.
type EventHandler struct {
	store *store.Store
}

func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

func RegisterRoutes(app *fiber.App, h *EventHandler, middleware ...fiber.Handler) {
	g := app.Group("/_admin/events", middleware...)
	g.Get("/", h.List)
	g.Get("/trace/:traceId", h.GetTrace)
}

// List handles GET /_admin/events with equality filters, a from/to range
// on created_at and page/per_page pagination, newest first.
func (h *EventHandler) List(c *fiber.Ctx) error {
	pb := h.store.Dialect.NewParamBuilder()
	var conds []string
	for _, name := range filterParams {
		if v := c.Query(name); v != "" {
			conds = append(conds, fmt.Sprintf("%s = %s", name, pb.Add(v)))
		}
	}
	if v := c.Query("from"); v != "" {
		conds = append(conds, "created_at >= "+pb.Add(v))
	}
	if v := c.Query("to"); v != "" {
		conds = append(conds, "created_at <= "+pb.Add(v))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := clamp(c.Query("page"), 1, 1, 1<<20)
	perPage := clamp(c.Query("per_page"), 50, 1, 100)

	countRow, err := store.QueryRow(c.UserContext(), h.store.DB, "SELECT COUNT(*) AS count FROM _events"+where, pb.Params()...)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}

	order := "DESC"
	if c.Query("sort") == "created_at" {
		order = "ASC"
	}
	q := fmt.Sprintf("%s%s ORDER BY created_at %s LIMIT %s OFFSET %s",
		eventSelect, where, order, pb.Add(perPage), pb.Add((page-1)*perPage))
	rows, err := store.QueryRows(c.UserContext(), h.store.DB, q, pb.Params()...)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{
		"data": rows,
		"pagination": fiber.Map{
			"page":     page,
			"per_page": perPage,
			"total":    toInt(countRow["count"]),
		},
	})
}

// GetTrace handles GET /_admin/events/trace/:traceId and returns the spans of
// one trace as a tree.
func (h *EventHandler) GetTrace(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	pb := h.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(c.UserContext(), h.store.DB,
		eventSelect+" WHERE trace_id = "+pb.Add(traceID)+" ORDER BY created_at ASC", pb.Params()...)
	if err != nil {
		return fmt.Errorf("get trace: %w", err)
	}
	if len(rows) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": "Trace not found: " + traceID}})
	}

	root := BuildTraceTree(rows)
	var total any
	if root != nil {
		total = root["duration_ms"]
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"trace_id":          traceID,
		"root_span":         root,
		"spans":             rows,
		"total_duration_ms": total,
	}})
}

// BuildTraceTree attaches every span to its parent under "children" and
// returns the root: the span without a parent, else the first one.
func BuildTraceTree(rows []map[string]any) map[string]any {
	byID := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		row["children"] = []map[string]any{}
		byID[fmt.Sprint(row["span_id"])] = row
	}

	var root map[string]any
	for _, row := range rows {
		parent, _ := row["parent_span_id"].(string)
		if parent == "" {
			if root == nil {
				root = row
			}
			continue
		}
		if p, ok := byID[parent]; ok {
			p["children"] = append(p["children"].([]map[string]any), row)
		}
	}
	if root == nil && len(rows) > 0 {
		root = rows[0]
	}
	return root
}

func clamp(s string, def, lo, hi int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
