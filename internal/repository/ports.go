package repository

import (
	"context"

	"github.com/sakashimaa/go-marketplace/internal/domain"
)

// CustomerStore holds customers keyed by id.
type CustomerStore interface {
	Create(ctx context.Context, customer *domain.Customer) error
	FindByID(ctx context.Context, id string) (*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

// QuantityUpdate sets a product's stock to an absolute value.
type QuantityUpdate struct {
	ProductID   string
	NewQuantity int64
}

// ProductStore holds products keyed by id.
//
// FindAllByIDs collapses duplicate ids and returns only the products that
// exist. FindAllByIDsForUpdate additionally locks the returned rows until
// the surrounding transaction ends; it must be called inside one.
// UpdateQuantities applies the whole batch atomically: either every listed
// update lands or none of them do.
type ProductStore interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByName(ctx context.Context, name string) (*domain.Product, error)
	FindAllByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	FindAllByIDsForUpdate(ctx context.Context, ids []string) ([]domain.Product, error)
	UpdateQuantities(ctx context.Context, updates []QuantityUpdate) ([]domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error)
}

// OrderStore persists orders. Create assigns ids and stores the order with
// all of its items as one durable unit.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}
