package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
	"github.com/ManuelReschke/PawMart/internal/pkg/usercontext"
)

// OrderController serves order endpoints for customers and admins.
type OrderController struct {
	svc *payment.Service
}

func NewOrderController(svc *payment.Service) *OrderController {
	return &OrderController{svc: svc}
}

type orderStateRequest struct {
	State  string `json:"state" validate:"required,oneof=Pending Paid Shipped Delivered Canceled"`
	Reason string `json:"reason" validate:"max=300"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=300"`
}

// HandleListOrders returns the caller's orders, newest first.
func (oc *OrderController) HandleListOrders(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	orders, err := oc.svc.ListOrders(c.UserContext(), usercontext.GetUserID(c), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "orders": orders})
}

// HandleCancelOrder lets the owner cancel an unpaid order.
func (oc *OrderController) HandleCancelOrder(c *fiber.Ctx) error {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	var req cancelOrderRequest
	if len(c.Body()) > 0 {
		if !bindBody(c, &req) {
			return nil
		}
	}
	order, err := oc.svc.CancelOrder(c.UserContext(), usercontext.GetUserID(c), orderID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "order": order})
}

// HandleAdminOrderState moves an order along the state graph.
func (oc *OrderController) HandleAdminOrderState(c *fiber.Ctx) error {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	var req orderStateRequest
	if !bindBody(c, &req) {
		return nil
	}
	order, err := oc.svc.TransitionOrderState(c.UserContext(), orderID, req.State, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "order": order})
}

// HandleAdminWebhooks lists recorded webhook deliveries.
func (oc *OrderController) HandleAdminWebhooks(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	events, total, err := oc.svc.ListWebhookEvents(c.UserContext(), offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "events": events, "total": total})
}
