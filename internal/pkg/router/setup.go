package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawMart/app/controllers"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps bundles what the routes are wired to.
type Deps struct {
	Payments *payment.Service
	Repos    *repository.Factory
	Health   controllers.Pinger
	// Cache is reported by /health when set; it never fails the check.
	Cache     controllers.Pinger
	JWTSecret string
	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
