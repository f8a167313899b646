package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
)

const webhookTimeout = 15 * time.Second

// WebhookController ingests gateway webhooks.
type WebhookController struct {
	svc *payment.Service
}

func NewWebhookController(svc *payment.Service) *WebhookController {
	return &WebhookController{svc: svc}
}

// HandleGatewayWebhook verifies and reconciles a delivery. Everything but a
// bad signature or payload is acknowledged with 200 so the gateway stops
// redelivering; failures are recorded on the stored event.
func (wc *WebhookController) HandleGatewayWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer after the handler returns
	payload := append([]byte(nil), c.Body()...)
	signature := c.Get("Stripe-Signature")
	if len(signature) > 20 {
		log.Infof("[Webhook] delivery with signature %s...", signature[:20])
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	res, err := wc.svc.HandleWebhook(ctx, payload, signature)
	if err != nil {
		return respondError(c, err)
	}
	body := fiber.Map{"status": res.Status}
	if res.EventID != "" {
		body["event_id"] = res.EventID
	}
	return c.JSON(body)
}
