// Package memory provides in-memory store implementations. They back the
// unit tests and mirror the semantics of the pgx stores: the Transactor
// serializes whole workflows, so a transaction observes no concurrent
// writes, the way row locks behave in Postgres, and restores the enrolled
// stores when the workflow fails, the way a rollback does.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/internal/repository"
)

// snapshotter captures a store's state and hands back a restore func.
type snapshotter interface {
	snapshot() (restore func())
}

// Transactor serializes transactions with a single mutex, so validation and
// writes inside one WithinTransaction call see a consistent snapshot,
// matching the locking behavior of the Postgres stores. The enrolled stores
// are snapshotted before fn runs and restored when fn fails: writes that
// landed before the failure do not survive, matching a rollback.
type Transactor struct {
	mu     sync.Mutex
	stores []snapshotter
}

func NewTransactor(stores ...snapshotter) *Transactor {
	return &Transactor{stores: stores}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	restores := make([]func(), 0, len(t.stores))
	for _, s := range t.stores {
		restores = append(restores, s.snapshot())
	}

	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}

	return nil
}

type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[string]domain.Customer)}
}

func (s *CustomerStore) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[string]domain.Customer, len(s.customers))
	for id, c := range s.customers {
		saved[id] = c
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.customers = saved
	}
}

func (s *CustomerStore) Create(_ context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers {
		if c.Email == customer.Email {
			return repository.ErrCustomerExists
		}
	}

	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	s.customers[customer.ID] = *customer

	return nil
}

func (s *CustomerStore) FindByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}

	return &c, nil
}

func (s *CustomerStore) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.Email == email {
			return &c, nil
		}
	}

	return nil, repository.ErrCustomerNotFound
}

type ProductStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product

	// UpdateQuantitiesErr, when set, is returned by UpdateQuantities before
	// any write. Tests use it to simulate a storage fault in the stock
	// update step.
	UpdateQuantitiesErr error
}

func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[string]domain.Product)}
}

func (s *ProductStore) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[string]domain.Product, len(s.products))
	for id, p := range s.products {
		saved[id] = p
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.products = saved
	}
}

func (s *ProductStore) Create(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Name == product.Name {
			return repository.ErrProductExists
		}
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	s.products[product.ID] = *product

	return nil
}

func (s *ProductStore) FindByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			return &p, nil
		}
	}

	return nil, repository.ErrProductNotFound
}

func (s *ProductStore) FindAllByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	var out []domain.Product
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}

	return out, nil
}

func (s *ProductStore) FindAllByIDsForUpdate(ctx context.Context, ids []string) ([]domain.Product, error) {
	// The Transactor's mutex already excludes concurrent writers.
	return s.FindAllByIDs(ctx, ids)
}

func (s *ProductStore) UpdateQuantities(_ context.Context, updates []repository.QuantityUpdate) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateQuantitiesErr != nil {
		return nil, s.UpdateQuantitiesErr
	}

	// All-or-none: verify every target first.
	for _, update := range updates {
		if _, ok := s.products[update.ProductID]; !ok {
			return nil, repository.ErrProductNotFound
		}
	}

	out := make([]domain.Product, 0, len(updates))
	for _, update := range updates {
		p := s.products[update.ProductID]
		p.StockQuantity = update.NewQuantity
		s.products[update.ProductID] = p
		out = append(out, p)
	}

	return out, nil
}

func (s *ProductStore) List(_ context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Product
	for _, p := range s.products {
		if search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := int64(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}

type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]domain.Order)}
}

func (s *OrderStore) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[string]domain.Order, len(s.orders))
	for id, o := range s.orders {
		saved[id] = o
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.orders = saved
	}
}

func (s *OrderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = order.ID
	}

	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	s.orders[order.ID] = stored

	return nil
}

func (s *OrderStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}

	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

// Len reports how many orders are stored.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.orders)
}
