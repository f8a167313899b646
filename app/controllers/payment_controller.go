package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
	"github.com/ManuelReschke/PawMart/internal/pkg/usercontext"
)

// PaymentController serves the customer payment endpoints.
type PaymentController struct {
	svc *payment.Service
}

func NewPaymentController(svc *payment.Service) *PaymentController {
	return &PaymentController{svc: svc}
}

type createIntentRequest struct {
	OrderID  uint   `json:"order_id" validate:"required"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency" validate:"omitempty,alpha,len=3"`
}

type confirmPaymentRequest struct {
	OrderID         uint   `json:"order_id" validate:"required"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=100"`
}

// HandleCreateIntent starts a payment for an order. An Idempotency-Key
// header is forwarded to the gateway so client retries get the same intent.
func (pc *PaymentController) HandleCreateIntent(c *fiber.Ctx) error {
	var req createIntentRequest
	if !bindBody(c, &req) {
		return nil
	}
	user := usercontext.GetUserContext(c)

	res, err := pc.svc.CreateIntent(c.UserContext(), payment.CreateIntentInput{
		UserID:         user.UserID,
		Email:          user.Email,
		OrderID:        req.OrderID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                 res.IntentID,
		"client_secret":      res.ClientSecret,
		"amount":             res.Amount,
		"currency":           res.Currency,
		"status":             res.Status,
		"gateway_public_key": res.PublishableKey,
		"transaction_id":     res.TransactionID,
	})
}

// HandleConfirmPayment confirms a payment the client completed.
func (pc *PaymentController) HandleConfirmPayment(c *fiber.Ctx) error {
	var req confirmPaymentRequest
	if !bindBody(c, &req) {
		return nil
	}

	res, err := pc.svc.Confirm(c.UserContext(), payment.ConfirmInput{
		UserID:   usercontext.GetUserID(c),
		OrderID:  req.OrderID,
		IntentID: req.PaymentIntentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	message := "Payment confirmed, order is being processed"
	if res.AlreadyConfirmed {
		message = "Payment was already confirmed"
	}
	return c.JSON(fiber.Map{
		"status":                "success",
		"message":               message,
		"order_id":              res.OrderID,
		"transaction_id":        res.TransactionID,
		"payment_intent_id":     res.IntentID,
		"purchase_order_number": res.PurchaseOrderNumber,
		"confirmed_at":          res.ConfirmedAt.UTC().Format(time.RFC3339),
	})
}

// HandlePaymentStatus returns the state of one payment. ?live=true merges
// the gateway's current view.
func (pc *PaymentController) HandlePaymentStatus(c *fiber.Ctx) error {
	status, err := pc.svc.QueryStatus(c.UserContext(), caller(c), c.Params("intent_id"), c.QueryBool("live", false))
	if err != nil {
		return respondError(c, err)
	}

	tx := status.Transaction
	body := fiber.Map{
		"status":            "success",
		"payment_intent_id": tx.GatewayIntentID,
		"transaction_id":    tx.ID,
		"order_id":          tx.OrderID,
		"state":             tx.State,
		"amount":            tx.Amount,
		"currency":          tx.Currency,
		"method":            tx.Method,
		"error_details":     tx.ErrorDetails,
		"created_at":        tx.CreatedAt,
		"confirmed_at":      tx.ConfirmedAt,
		"live":              status.Live,
	}
	if status.Live {
		body["gateway_status"] = status.GatewayStatus
	}
	return c.JSON(body)
}

// HandleListTransactions lists all payment attempts of an order.
func (pc *PaymentController) HandleListTransactions(c *fiber.Ctx) error {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	txs, err := pc.svc.ListTransactions(c.UserContext(), caller(c), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":       "success",
		"order_id":     orderID,
		"transactions": txs,
		"total":        len(txs),
	})
}

// HandleTransactionHistory returns the state history of one transaction.
func (pc *PaymentController) HandleTransactionHistory(c *fiber.Ctx) error {
	txID, ok := uintParam(c, "transaction_id")
	if !ok {
		return badRequest(c, "invalid transaction id")
	}
	rows, err := pc.svc.TransactionHistory(c.UserContext(), caller(c), txID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"transaction_id": txID,
		"history":        rows,
	})
}

// HandleOrderPaymentState returns the aggregate payment view of an order.
func (pc *PaymentController) HandleOrderPaymentState(c *fiber.Ctx) error {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	state, err := pc.svc.OrderPaymentState(c.UserContext(), caller(c), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"order_id":       state.OrderID,
		"order_state":    state.State,
		"payment_state":  state.PaymentState,
		"message":        state.Message,
		"paid_at":        state.PaidAt,
		"transactions":   state.Transactions,
		"total_attempts": state.TotalAttempts,
	})
}
