package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// NewRepositories creates all repositories bound to the given db handle.
// Pass a transaction handle to get repositories scoped to that transaction.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Product: NewProductRepository(db),
		Order:   NewOrderRepository(db),
		Payment: NewPaymentRepository(db),
		Webhook: NewWebhookEventRepository(db),
	}
}

// Factory manages repository instances and opens transactional scopes
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// WithContext returns repositories whose queries are bound to ctx.
func (f *Factory) WithContext(ctx context.Context) *Repositories {
	return NewRepositories(f.db.WithContext(ctx))
}

// Transaction runs fn inside one database transaction. Any error returned by
// fn rolls back every write made through the given repositories.
func (f *Factory) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Ping checks that the underlying database answers.
func (f *Factory) Ping(ctx context.Context) error {
	sqlDB, err := f.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}
