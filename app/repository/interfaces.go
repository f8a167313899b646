package repository

import (
	"time"

	"github.com/ManuelReschke/PawMart/app/models"
)

// UserRepository defines the user lookups consumed by the payment core
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// ProductRepository is the inventory primitive. Stock is only ever changed
// through single conditional statements.
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	CheckAvailability(orderID uint) error
	DeductForOrder(orderID uint) error
	RestoreForOrder(orderID uint) error
}

// OrderRepository owns the persistent order row
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetItems(orderID uint) ([]models.OrderItem, error)
	SetStates(orderID uint, from, to OrderStates, paidAt *time.Time) error
	ListForUser(userID uint, offset, limit int) ([]models.Order, error)
}

// PaymentRepository handles payment transactions and their state history.
type PaymentRepository interface {
	Create(tx *models.PaymentTransaction, reason string) (*models.PaymentTransaction, error)
	GetByID(id uint) (*models.PaymentTransaction, error)
	UpdateState(id uint, from string, change StateChange) (*models.PaymentTransaction, error)
	FindByIntent(intentID string) (*models.PaymentTransaction, error)
	FindSucceededForOrder(orderID uint) (*models.PaymentTransaction, error)
	ListForOrder(orderID uint) ([]models.PaymentTransaction, error)
	History(transactionID uint) ([]models.PaymentStateHistory, error)
}

// WebhookEventRepository is the webhook delivery log
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkProcessed(id uint, outcome WebhookOutcome) error
	List(offset, limit int) ([]models.PaymentWebhookEvent, error)
	Count() (int64, error)
}

// OrderStates is the pair of state fields guarded by SetStates.
type OrderStates struct {
	State        string
	PaymentState string
}

// StateChange describes a transaction state update. Nil pointers leave the
// column untouched.
type StateChange struct {
	To           string
	Reason       string
	Method       *string
	ErrorDetails *string
	ConfirmedAt  *time.Time
}

// WebhookOutcome is what gets recorded on a webhook event after processing.
type WebhookOutcome struct {
	Processed     bool
	TransactionID *uint
	Result        string
}

// Repositories struct holds all repository instances bound to one db handle
type Repositories struct {
	User    UserRepository
	Product ProductRepository
	Order   OrderRepository
	Payment PaymentRepository
	Webhook WebhookEventRepository
}
