package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluation-api/internal/middleware"
)

func userIDFromContext(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return role
	}
	return ""
}

// actingAs reports whether the caller may act for raterID. Anonymous requests are
// allowed because authentication is optional; admins may act for anyone.
func actingAs(c *fiber.Ctx, raterID string) bool {
	userID := userIDFromContext(c)
	if userID == "" || userRoleFromContext(c) == middleware.RoleAdmin {
		return true
	}
	return userID == raterID
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}
