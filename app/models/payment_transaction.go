package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction states.
const (
	TransactionStatePending   = "pending"
	TransactionStateSucceeded = "succeeded"
	TransactionStateFailed    = "failed"
	TransactionStateCanceled  = "canceled"
)

// PaymentTransaction is a single attempt to pay an order through the gateway.
type PaymentTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"order_id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	GatewayIntentID string          `gorm:"type:varchar(100);not null;uniqueIndex:ux_payment_transactions_intent" json:"gateway_intent_id"`
	State           string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"state"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Method          *string         `gorm:"type:varchar(50);default:null" json:"method,omitempty"`
	ErrorDetails    *string         `gorm:"type:varchar(500);default:null" json:"error_details,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	ConfirmedAt     *time.Time      `gorm:"type:timestamp;default:null" json:"confirmed_at,omitempty"`
}

// IsTerminal reports whether no further state change is allowed.
func (t *PaymentTransaction) IsTerminal() bool {
	switch t.State {
	case TransactionStateSucceeded, TransactionStateFailed, TransactionStateCanceled:
		return true
	default:
		return false
	}
}

// PaymentStateHistory is the append-only audit log of transaction state
// changes. Rows are never updated.
type PaymentStateHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID uint      `gorm:"not null;index" json:"transaction_id"`
	PreviousState *string   `gorm:"type:varchar(20);default:null" json:"previous_state,omitempty"`
	NewState      string    `gorm:"type:varchar(20);not null" json:"new_state"`
	Reason        *string   `gorm:"type:varchar(300);default:null" json:"reason,omitempty"`
	At            time.Time `gorm:"autoCreateTime;index" json:"at"`
}

// TableName keeps the history table name singular like the other audit tables.
func (PaymentStateHistory) TableName() string {
	return "payment_state_history"
}
