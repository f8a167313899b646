package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PawMart/app/controllers"
	"github.com/ManuelReschke/PawMart/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    h.deps.LimiterStorage,
		// gateway deliveries are authenticated by signature and must not be throttled
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/webhooks/")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": "error", "message": "too many requests"})
		},
	}))

	webhooks := controllers.NewWebhookController(h.deps.Payments)
	api.Post("/webhooks/gateway", webhooks.HandleGatewayWebhook)

	auth := middleware.BearerAuthMiddleware(h.deps.JWTSecret, h.deps.Repos)

	payments := controllers.NewPaymentController(h.deps.Payments)
	p := api.Group("/payments", auth, middleware.RequireAuth)
	p.Post("/create-payment-intent", payments.HandleCreateIntent)
	p.Post("/confirm-payment", payments.HandleConfirmPayment)
	p.Get("/payment-status/:intent_id", payments.HandlePaymentStatus)
	p.Get("/transactions/:order_id", payments.HandleListTransactions)
	p.Get("/history/:transaction_id", payments.HandleTransactionHistory)
	p.Get("/:order_id/payment-state", payments.HandleOrderPaymentState)

	orders := controllers.NewOrderController(h.deps.Payments)
	o := api.Group("/orders", auth, middleware.RequireAuth)
	o.Get("/", orders.HandleListOrders)
	o.Post("/:order_id/cancel", orders.HandleCancelOrder)

	admin := api.Group("/admin", auth, middleware.RequireAdmin)
	admin.Put("/orders/:order_id/state", orders.HandleAdminOrderState)
	admin.Get("/webhooks", orders.HandleAdminWebhooks)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
