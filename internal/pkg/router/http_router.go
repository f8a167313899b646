package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawMart/app/controllers"
	"github.com/ManuelReschke/PawMart/internal/pkg/metrics"
)

// HttpRouter serves the operational endpoints outside /api.
type HttpRouter struct {
	deps Deps
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth(h.deps.Health, h.deps.Cache))
	app.Get("/metrics", metrics.Handler())
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}
