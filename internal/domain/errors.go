package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateOrderID    = errors.New("order with this order id already exists")
	ErrAlreadyCancelled    = errors.New("order is already cancelled")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrPaymentNotConfirmed = errors.New("payment not successful or session not found")
)

// InsufficientStockError names the product and the quantity still available so
// the caller can show a useful message.
type InsufficientStockError struct {
	ProductID int
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product '%s' (requested: %d, available: %d)",
		e.Name, e.Requested, e.Available)
}
