package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIntent is returned when a transaction with the same gateway intent id exists.
	ErrDuplicateIntent = errors.New("duplicate gateway intent")
	// ErrStaleState is returned when a guarded update found the row in another state.
	ErrStaleState = errors.New("stale state")
	// ErrInsufficientStock is wrapped by StockError.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError reports the first product that could not cover an order.
type StockError struct {
	ProductID uint
	Needed    int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: needed %d, available %d", e.ProductID, e.Needed, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
