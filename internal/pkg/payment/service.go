// Package payment is the payment orchestrator. It binds the gateway adapter
// to the order, product and transaction repositories and owns the payment
// and order state machines.
//
// Every multi-row change runs in one database transaction. Concurrent
// writers are serialized with guarded updates: a transaction only leaves
// pending through "UPDATE ... WHERE state = 'pending'" and an order only
// changes through "UPDATE ... WHERE state = ? AND payment_state = ?". The
// losing side sees zero affected rows, rolls back and re-reads.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
)

// Config holds the payment settings read from the environment.
type Config struct {
	SupportedCurrencies []string
	DefaultCurrency     string
	WebhookSecret       string
	// AllowUnsignedWebhooks accepts webhooks without verification when
	// WebhookSecret is empty. Meant for local development only.
	AllowUnsignedWebhooks bool
	// StatusCacheTTL bounds how long a live gateway status is reused.
	StatusCacheTTL time.Duration
}

// IntentCache caches the gateway view of an intent for status queries.
type IntentCache interface {
	GetIntent(ctx context.Context, intentID string) (*gateway.Intent, bool)
	SetIntent(ctx context.Context, intent *gateway.Intent, ttl time.Duration)
	DeleteIntent(ctx context.Context, intentID string)
}

// Service is the payment orchestrator.
type Service struct {
	repos    *repository.Factory
	gateway  gateway.Gateway
	notifier Notifier
	intents  IntentCache
	cfg      Config
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier publishes post-commit events to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithIntentCache enables caching of live gateway status.
func WithIntentCache(c IntentCache) Option {
	return func(s *Service) { s.intents = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the payment orchestrator.
func NewService(repos *repository.Factory, gw gateway.Gateway, cfg Config, opts ...Option) *Service {
	if len(cfg.SupportedCurrencies) == 0 {
		cfg.SupportedCurrencies = []string{"usd"}
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = cfg.SupportedCurrencies[0]
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 30 * time.Second
	}

	s := &Service{
		repos:    repos,
		gateway:  gw,
		notifier: noopNotifier{},
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeCurrency lower-cases c and checks it against the supported set.
// An empty currency resolves to the default one.
func (s *Service) normalizeCurrency(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		c = strings.ToLower(s.cfg.DefaultCurrency)
	}
	for _, supported := range s.cfg.SupportedCurrencies {
		if strings.ToLower(supported) == c {
			return c, true
		}
	}
	return c, false
}

// loadOrder reads an order and checks the caller may see it.
func (s *Service) loadOrder(repos *repository.Repositories, orderID, userID uint, isAdmin bool) (*models.Order, error) {
	order, err := repos.Order.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "order not found")
		}
		return nil, wrapInternal("loading order failed", err)
	}
	if order.UserID != userID && !isAdmin {
		log.Warnf("[Payment] user %d denied access to order %d", userID, orderID)
		return nil, newError(KindForbidden, "access to this order is denied")
	}
	return order, nil
}

func (s *Service) userEmail(ctx context.Context, userID uint) string {
	user, err := s.repos.WithContext(ctx).User.GetByID(userID)
	if err != nil {
		log.Warnf("[Payment] could not load user %d for notification: %v", userID, err)
		return ""
	}
	return user.Email
}
