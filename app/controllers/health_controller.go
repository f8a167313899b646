package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Pinger is anything whose availability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HandleHealth reports ok once the database answers. The cache is optional:
// when it is down the service still answers, uncached.
func HandleHealth(db, cache Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Warnf("[Health] database ping failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "error", "message": "database unavailable"})
		}

		body := fiber.Map{"status": "ok"}
		if cache != nil {
			body["cache"] = "ok"
			if err := cache.Ping(ctx); err != nil {
				log.Warnf("[Health] cache ping failed: %v", err)
				body["cache"] = "unavailable"
			}
		}
		return c.JSON(body)
	}
}
