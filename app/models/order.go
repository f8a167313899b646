package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order business states.
const (
	OrderStatePending   = "Pending"
	OrderStatePaid      = "Paid"
	OrderStateShipped   = "Shipped"
	OrderStateDelivered = "Delivered"
	OrderStateCanceled  = "Canceled"
)

// Order payment states.
const (
	PaymentStatePending  = "PendingPayment"
	PaymentStatePaid     = "Paid"
	PaymentStateCanceled = "Canceled"
)

// Order is a customer's commitment to buy a set of items at captured prices.
// Orders are created by the checkout flow; the payment core only moves their
// state fields.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	State           string          `gorm:"type:varchar(32);not null;default:'Pending';index" json:"state"`
	PaymentState    string          `gorm:"type:varchar(32);not null;default:'PendingPayment';index" json:"payment_state"`
	Total           decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	ShippingAddress string          `gorm:"type:varchar(500);not null" json:"shipping_address"`
	ContactPhone    string          `gorm:"type:varchar(20);not null" json:"contact_phone"`
	PaidAt          *time.Time      `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// IsAwaitingPayment reports whether the order can still be paid.
func (o *Order) IsAwaitingPayment() bool {
	return o.PaymentState == PaymentStatePending && o.State == OrderStatePending
}

// OrderItem snapshots the unit price of a product at order time.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

// Subtotal returns quantity * unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
