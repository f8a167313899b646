package payment

import "github.com/ManuelReschke/PawMart/app/models"

// orderTransitions is the business state graph of an order.
var orderTransitions = map[string][]string{
	models.OrderStatePending: {models.OrderStatePaid, models.OrderStateCanceled},
	models.OrderStatePaid:    {models.OrderStateShipped, models.OrderStateCanceled},
	models.OrderStateShipped: {models.OrderStateDelivered, models.OrderStateCanceled},
}

// transactionTransitions allows pending to move to any terminal state only.
var transactionTransitions = map[string][]string{
	models.TransactionStatePending: {
		models.TransactionStateSucceeded,
		models.TransactionStateFailed,
		models.TransactionStateCanceled,
	},
}

// CanTransitionOrder reports whether an order may move from one business state to another.
func CanTransitionOrder(from, to string) bool {
	return contains(orderTransitions[from], to)
}

// CanTransitionTransaction reports whether a transaction may move between states.
func CanTransitionTransaction(from, to string) bool {
	return contains(transactionTransitions[from], to)
}

// IsKnownOrderState reports whether s is one of the order business states.
func IsKnownOrderState(s string) bool {
	switch s {
	case models.OrderStatePending, models.OrderStatePaid, models.OrderStateShipped,
		models.OrderStateDelivered, models.OrderStateCanceled:
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var paymentStateMessages = map[string]string{
	models.PaymentStatePending:  "Payment pending. Complete the payment to process your order.",
	models.PaymentStatePaid:     "Payment completed. Your order is being processed.",
	models.PaymentStateCanceled: "Payment canceled. The order will not be processed.",
}

// PaymentStateMessage returns a customer facing description of an order payment state.
func PaymentStateMessage(paymentState string) string {
	if msg, ok := paymentStateMessages[paymentState]; ok {
		return msg
	}
	return "Unknown payment state."
}
