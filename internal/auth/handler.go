package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"reader-backend/internal/condition"
	"reader-backend/internal/engine"
	"reader-backend/internal/store"
)

type Handler struct {
	store  *store.Store
	secret string
	now    func() time.Time
}

func NewHandler(s *store.Store, secret string) *Handler {
	return &Handler{store: s, secret: secret, now: time.Now}
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Post("/_auth/login", h.Login)
}

// Login handles POST /_auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	user, err := h.findUser(c.UserContext(), body.Email)
	if errors.Is(err, store.ErrNotFound) {
		return engine.UnauthorizedError("Invalid email or password")
	}
	if err != nil {
		return err
	}
	hash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, hash) {
		return engine.UnauthorizedError("Invalid email or password")
	}
	if s := condition.Stringify(user["active"]); s == "0" || s == "false" {
		return engine.UnauthorizedError("Account is disabled")
	}

	roles, err := h.store.Dialect.ScanArray(user["roles"])
	if err != nil {
		return fmt.Errorf("scan roles: %w", err)
	}
	id := condition.Stringify(user["id"])
	token, err := IssueToken(id, body.Email, roles, h.secret, h.now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(TokenTTL.Seconds()),
	}})
}

func (h *Handler) findUser(ctx context.Context, email string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("SELECT id, email, password_hash, roles, active FROM _users WHERE email = %s", pb.Add(email))
	return store.QueryRow(ctx, h.store.DB, q, pb.Params()...)
}
