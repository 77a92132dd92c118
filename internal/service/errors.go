package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sakashimaa/go-marketplace/internal/repository"
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
)

// MissingProductsError reports which requested product ids do not resolve.
// It unwraps to repository.ErrProductNotFound so callers can branch with
// errors.Is and still read the ids.
type MissingProductsError struct {
	ProductIDs []string
}

func (e *MissingProductsError) Error() string {
	return fmt.Sprintf("products not found: %s", strings.Join(e.ProductIDs, ", "))
}

func (e *MissingProductsError) Unwrap() error {
	return repository.ErrProductNotFound
}

// StockShortage describes one product whose requested quantity exceeds the
// stock observed under the transaction's lock.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// InsufficientStockError unwraps to repository.ErrInsufficientStock and
// carries the per-product shortage detail.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		ids = append(ids, s.ProductID)
	}
	return fmt.Sprintf("insufficient stock for products: %s", strings.Join(ids, ", "))
}

func (e *InsufficientStockError) Unwrap() error {
	return repository.ErrInsufficientStock
}
