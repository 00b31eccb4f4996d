package engine

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"reader-backend/internal/metadata"
)

type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// Read handles GET /reader/:module and GET /reader/:module/:item.
func (h *Handler) Read(c *fiber.Ctx) error {
	moduleID, err := ParseModuleID(c.Params("module"))
	if err != nil {
		return err
	}

	req := Request{
		Params:   fiberParams{c: c, item: c.Params("item")},
		Language: requestLanguage(c),
	}
	out, err := h.manager.Handle(c.UserContext(), moduleID, req)
	if err != nil {
		return err
	}

	switch out.Status {
	case StatusNotFound:
		return NotFoundError("Item", strings.TrimSpace(req.Params.Get(metadata.DefaultAutoItemParam)))
	case StatusForbidden:
		return ForbiddenError("You are not allowed to view this item")
	case StatusRedirect:
		return c.Redirect(out.RedirectURL, fiber.StatusSeeOther)
	}
	c.Type("html", "utf-8")
	return c.SendString(out.Body)
}

// fiberParams reads query parameters. The optional path segment is the
// auto item.
type fiberParams struct {
	c    *fiber.Ctx
	item string
}

func (p fiberParams) Get(name string) string {
	if name == metadata.DefaultAutoItemParam && p.item != "" {
		return p.item
	}
	return p.c.Query(name)
}

// requestLanguage prefers ?lang= over the first Accept-Language tag.
func requestLanguage(c *fiber.Ctx) string {
	if lang := c.Query("lang"); lang != "" {
		return strings.ToLower(lang)
	}
	header := c.Get(fiber.HeaderAcceptLanguage)
	if header == "" {
		return ""
	}
	tag, _, _ := strings.Cut(header, ",")
	tag, _, _ = strings.Cut(tag, ";")
	tag, _, _ = strings.Cut(strings.TrimSpace(tag), "-")
	if tag == "*" {
		return ""
	}
	return strings.ToLower(tag)
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// ErrorHandler is the fiber error handler. Configuration problems and
// missing templates are server errors whose message is shown to the
// operator.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		log.Printf("ERROR: %v", err)
		return respondError(c, NewAppError("CONFIGURATION_ERROR", 500, cfgErr.Error()))
	}

	var tplErr *TemplateNotFoundError
	if errors.As(err, &tplErr) {
		log.Printf("ERROR: %v", err)
		return respondError(c, NewAppError("TEMPLATE_NOT_FOUND", 500, tplErr.Error()))
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		if code < 500 {
			return respondError(c, NewAppError("HTTP_ERROR", code, fiberErr.Message))
		}
	}

	log.Printf("ERROR: %v", err)
	return respondError(c, NewAppError("INTERNAL_ERROR", code, "Internal server error"))
}
