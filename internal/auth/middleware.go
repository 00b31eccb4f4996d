package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"reader-backend/internal/engine"
	"reader-backend/internal/metadata"
)

// Middleware checks the bearer token and stores the user in c.Locals("user").
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return engine.UnauthorizedError("Missing auth token")
		}
		claims, err := ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}
		c.Locals("user", &metadata.UserContext{ID: claims.Subject, Email: claims.Email, Roles: claims.Roles})
		return c.Next()
	}
}

func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, _ := c.Locals("user").(*metadata.UserContext)
		if user == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !user.CanManage() {
			return engine.ForbiddenError("Admin access required")
		}
		return c.Next()
	}
}
