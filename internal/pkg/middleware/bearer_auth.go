package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/usercontext"
)

// BearerAuthMiddleware authenticates requests carrying a signed bearer token
// and loads the user it was issued for. The lookup is bound to the request
// context.
func BearerAuthMiddleware(secret string, repos *repository.Factory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return unauthorized(c, "Missing bearer token")
		}

		userID, err := ParseToken(secret, token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		user, err := repos.WithContext(c.UserContext()).User.GetByID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return unauthorized(c, "Unknown user")
			}
			log.Errorf("[Auth] user lookup for %d failed: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Authentication failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"status": "error", "message": "User inactive"})
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
		})
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": "error", "message": msg})
}
