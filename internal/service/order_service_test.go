package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/internal/repository"
	"github.com/sakashimaa/go-marketplace/internal/repository/memory"
	"github.com/sakashimaa/go-marketplace/internal/service"
	outboxDomain "github.com/sakashimaa/go-marketplace/pkg/outbox/domain"
)

type fakeOutboxStore struct {
	mu     sync.Mutex
	events []*outboxDomain.OutboxEvent
}

func (s *fakeOutboxStore) SaveOutboxEvent(_ context.Context, event *outboxDomain.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, event)
	return nil
}

func (s *fakeOutboxStore) GetUnpublishedEvents(_ context.Context, _ int) ([]*outboxDomain.OutboxEvent, error) {
	return nil, nil
}

func (s *fakeOutboxStore) MarkEventPublished(_ context.Context, _ int64) error {
	return nil
}

func (s *fakeOutboxStore) MarkEventFailed(_ context.Context, _ int64, _ string) error {
	return nil
}

func (s *fakeOutboxStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

type orderFixture struct {
	customers *memory.CustomerStore
	products  *memory.ProductStore
	orders    *memory.OrderStore
	outbox    *fakeOutboxStore
	service   service.OrderService

	customer domain.Customer
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	f := &orderFixture{
		customers: memory.NewCustomerStore(),
		products:  memory.NewProductStore(),
		orders:    memory.NewOrderStore(),
		outbox:    &fakeOutboxStore{},
	}

	f.service = service.NewOrderService(
		memory.NewTransactor(f.customers, f.products, f.orders),
		f.customers,
		f.products,
		f.orders,
		f.outbox,
		"order_events",
		zap.NewNop(),
	)

	f.customer = domain.Customer{Name: "Ayrton Senna", Email: "ayrton@example.com"}
	require.NoError(t, f.customers.Create(context.Background(), &f.customer))

	return f
}

func (f *orderFixture) seedProduct(t *testing.T, name string, price, stock int64) domain.Product {
	t.Helper()

	p := domain.Product{Name: name, Price: price, StockQuantity: stock}
	require.NoError(t, f.products.Create(context.Background(), &p))
	return p
}

func (f *orderFixture) stockOf(t *testing.T, id string) int64 {
	t.Helper()

	products, err := f.products.FindAllByIDs(context.Background(), []string{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].StockQuantity
}

func TestCreateOrder_Success(t *testing.T) {
	f := newOrderFixture(t)
	keyboard := f.seedProduct(t, "Keyboard", 4500, 5)
	mouse := f.seedProduct(t, "Mouse", 2000, 10)

	order, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: keyboard.ID, Quantity: 5},
		{ProductID: mouse.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, f.customer.ID, order.CustomerID)
	assert.Equal(t, int64(5*4500+2*2000), order.TotalPrice)

	require.Len(t, order.Items, 2)
	assert.Equal(t, keyboard.ID, order.Items[0].ProductID)
	assert.Equal(t, int64(4500), order.Items[0].Price)
	assert.Equal(t, int64(5), order.Items[0].Quantity)
	assert.Equal(t, mouse.ID, order.Items[1].ProductID)
	assert.Equal(t, int64(2000), order.Items[1].Price)

	assert.Equal(t, int64(0), f.stockOf(t, keyboard.ID))
	assert.Equal(t, int64(8), f.stockOf(t, mouse.ID))

	assert.Equal(t, 1, f.outbox.Len())
}

func TestCreateOrder_PriceSnapshot(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 10)

	order, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	// Mutating the returned order must not leak into the stored one: the
	// line item carries a copied price, not a reference.
	order.Items[0].Price = 9900

	stored, err := f.service.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, int64(4500), stored.Items[0].Price)
}

func TestCreateOrder_EmptyOrder(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, nil)
	require.ErrorIs(t, err, service.ErrEmptyOrder)
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 0},
	})
	require.ErrorIs(t, err, service.ErrInvalidQuantity)

	_, err = f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: -3},
	})
	require.ErrorIs(t, err, service.ErrInvalidQuantity)

	assert.Equal(t, int64(5), f.stockOf(t, product.ID))
}

func TestCreateOrder_CustomerNotFound(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	_, err := f.service.CreateOrder(context.Background(), "02e94b1f-88f4-43b2-9a52-9bfd4a1c7d9f", []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.ErrorIs(t, err, repository.ErrCustomerNotFound)

	assert.Equal(t, int64(5), f.stockOf(t, product.ID))
	assert.Equal(t, 0, f.orders.Len())
}

func TestCreateOrder_NoProductsFound(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: "9f1c7a44-0b6f-4f09-bd54-56c1f4a0f6c1", Quantity: 1},
	})
	require.ErrorIs(t, err, repository.ErrNoProductsFound)
}

func TestCreateOrder_MissingProductsNamed(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)
	ghost := "9f1c7a44-0b6f-4f09-bd54-56c1f4a0f6c1"

	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
		{ProductID: ghost, Quantity: 1},
		{ProductID: ghost, Quantity: 2},
	})
	require.ErrorIs(t, err, repository.ErrProductNotFound)

	var missing *service.MissingProductsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{ghost}, missing.ProductIDs)

	assert.Equal(t, int64(5), f.stockOf(t, product.ID))
	assert.Equal(t, 0, f.orders.Len())
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 6},
	})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)

	var insufficient *service.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Len(t, insufficient.Shortages, 1)
	assert.Equal(t, product.ID, insufficient.Shortages[0].ProductID)
	assert.Equal(t, int64(6), insufficient.Shortages[0].Requested)
	assert.Equal(t, int64(5), insufficient.Shortages[0].Available)

	assert.Equal(t, int64(5), f.stockOf(t, product.ID))
	assert.Equal(t, 0, f.orders.Len())
	assert.Equal(t, 0, f.outbox.Len())
}

func TestCreateOrder_DuplicateLinesAggregated(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	// 3+3 of the same product must be checked as 6, not as two separate 3s.
	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 3},
		{ProductID: product.ID, Quantity: 3},
	})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Equal(t, int64(5), f.stockOf(t, product.ID))

	order, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 2},
		{ProductID: product.ID, Quantity: 2},
	})
	require.NoError(t, err)

	// Both lines survive as written, the aggregation is only for checking.
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(2*4500+2*4500), order.TotalPrice)
	assert.Equal(t, int64(1), f.stockOf(t, product.ID))
}

func TestCreateOrder_ConcurrentOrdersDoNotOversell(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
				{ProductID: product.ID, Quantity: 3},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, repository.ErrInsufficientStock)
			failed++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, int64(2), f.stockOf(t, product.ID))
	assert.Equal(t, 1, f.orders.Len())
}

func TestCreateOrder_DoubleSubmitIsNotDeduplicated(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 10)

	items := []service.OrderItemInput{{ProductID: product.ID, Quantity: 3}}

	first, err := f.service.CreateOrder(context.Background(), f.customer.ID, items)
	require.NoError(t, err)
	second, err := f.service.CreateOrder(context.Background(), f.customer.ID, items)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.orders.Len())
	assert.Equal(t, int64(4), f.stockOf(t, product.ID))
}

func TestCreateOrder_StockUpdateFault(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	f.products.UpdateQuantitiesErr = errors.New("connection reset")

	_, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.ErrorIs(t, err, repository.ErrStockUpdateFailed)

	// The insert preceding the fault must not survive: order and stock
	// decrement commit or roll back together.
	assert.Equal(t, 0, f.orders.Len())
	assert.Equal(t, int64(5), f.stockOf(t, product.ID))
	assert.Equal(t, 0, f.outbox.Len())
}

func TestGetOrder(t *testing.T) {
	f := newOrderFixture(t)
	product := f.seedProduct(t, "Keyboard", 4500, 5)

	created, err := f.service.CreateOrder(context.Background(), f.customer.ID, []service.OrderItemInput{
		{ProductID: product.ID, Quantity: 2},
	})
	require.NoError(t, err)

	found, err := f.service.GetOrder(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.TotalPrice, found.TotalPrice)
	require.Len(t, found.Items, 1)
	assert.Equal(t, product.ID, found.Items[0].ProductID)

	_, err = f.service.GetOrder(context.Background(), "52d5cf7c-3f3e-4f24-9d29-bf7ab02f38d5")
	require.ErrorIs(t, err, repository.ErrOrderNotFound)
}
