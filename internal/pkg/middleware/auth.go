package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawMart/internal/pkg/usercontext"
)

// RequireAuth rejects requests without an authenticated user.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return unauthorized(c, "login required")
	}
	return c.Next()
}

// RequireAdmin ensures an authenticated admin.
func RequireAdmin(c *fiber.Ctx) error {
	u := usercontext.GetUserContext(c)
	if !u.IsLoggedIn {
		return unauthorized(c, "login required")
	}
	if !u.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"status": "error", "message": "admin access required"})
	}
	return c.Next()
}
