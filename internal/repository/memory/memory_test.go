package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/internal/repository"
)

func TestTransactorRollsBackEnrolledStores(t *testing.T) {
	products := NewProductStore()
	orders := NewOrderStore()
	tx := NewTransactor(products, orders)

	product := domain.Product{Name: "Keyboard", Price: 4500, StockQuantity: 5}
	require.NoError(t, products.Create(context.Background(), &product))

	errBoom := errors.New("storage fault")

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		if err := orders.Create(ctx, &domain.Order{CustomerID: "c1"}); err != nil {
			return err
		}
		if _, err := products.UpdateQuantities(ctx, []repository.QuantityUpdate{
			{ProductID: product.ID, NewQuantity: 0},
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	// Writes that landed before the failure are undone.
	assert.Equal(t, 0, orders.Len())
	found, err := products.FindAllByIDs(context.Background(), []string{product.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(5), found[0].StockQuantity)
}

func TestTransactorCommitsOnSuccess(t *testing.T) {
	orders := NewOrderStore()
	tx := NewTransactor(orders)

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return orders.Create(ctx, &domain.Order{CustomerID: "c1"})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, orders.Len())
}
