package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/internal/repository"
	"github.com/sakashimaa/go-marketplace/pkg/db"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/go-marketplace/pkg/outbox/domain"
	"github.com/sakashimaa/go-marketplace/pkg/outbox/worker"
)

// OrderItemInput is one requested (product, quantity) pair.
type OrderItemInput struct {
	ProductID string
	Quantity  int64
}

type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, items []OrderItemInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type orderService struct {
	transactor db.Transactor
	customers  repository.CustomerStore
	products   repository.ProductStore
	orders     repository.OrderStore
	outbox     worker.OutboxStore
	topic      string
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewOrderService(
	transactor db.Transactor,
	customers repository.CustomerStore,
	products repository.ProductStore,
	orders repository.OrderStore,
	outbox worker.OutboxStore,
	topic string,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		transactor: transactor,
		customers:  customers,
		products:   products,
		orders:     orders,
		outbox:     outbox,
		topic:      topic,
		logger:     logger,
		tracer:     otel.Tracer("service/order"),
	}
}

// CreateOrder validates the customer and the requested products, snapshots
// each product's current price into the line items, persists the order and
// decrements stock by the ordered quantities.
//
// The whole workflow runs inside one transaction: the product rows are
// locked while stock is checked, so two concurrent orders for the same
// product cannot both pass validation against the same stock. Either the
// order and its stock decrement both commit, or neither does.
//
// CreateOrder is deliberately not idempotent: submitting the same request
// twice creates two orders and decrements stock twice.
func (s *orderService) CreateOrder(ctx context.Context, customerID string, items []OrderItemInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("items_count", len(items)),
	)

	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
	}

	var order *domain.Order

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.FindByID(ctx, customerID)
		if err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				mylogger.Warn(
					ctx,
					s.logger,
					"Order for unknown customer",
					zap.String("customer_id", customerID),
				)
				return err
			}

			return fmt.Errorf("failed to look up customer: %w", err)
		}

		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}

		// Locks every touched product row until commit or rollback.
		existing, err := s.products.FindAllByIDsForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to look up products: %w", err)
		}
		if len(existing) == 0 {
			return repository.ErrNoProductsFound
		}

		byID := make(map[string]domain.Product, len(existing))
		for _, p := range existing {
			byID[p.ID] = p
		}

		var missing []string
		seenMissing := make(map[string]struct{})
		for _, item := range items {
			if _, ok := byID[item.ProductID]; !ok {
				if _, dup := seenMissing[item.ProductID]; !dup {
					seenMissing[item.ProductID] = struct{}{}
					missing = append(missing, item.ProductID)
				}
			}
		}
		if len(missing) > 0 {
			mylogger.Warn(
				ctx,
				s.logger,
				"Order references unknown products",
				zap.Strings("product_ids", missing),
			)
			return &MissingProductsError{ProductIDs: missing}
		}

		// Quantities are aggregated per product, so an order listing the
		// same product twice is checked against the combined amount.
		requested := make(map[string]int64, len(items))
		for _, item := range items {
			requested[item.ProductID] += item.Quantity
		}

		var shortages []StockShortage
		for _, p := range existing {
			if want := requested[p.ID]; want > p.StockQuantity {
				shortages = append(shortages, StockShortage{
					ProductID: p.ID,
					Requested: want,
					Available: p.StockQuantity,
				})
			}
		}
		if len(shortages) > 0 {
			mylogger.Warn(
				ctx,
				s.logger,
				"Order rejected for insufficient stock",
				zap.Int("shortages", len(shortages)),
			)
			return &InsufficientStockError{Shortages: shortages}
		}

		lineItems := make([]domain.OrderItem, 0, len(items))
		for _, item := range items {
			lineItems = append(lineItems, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     byID[item.ProductID].Price, // snapshot, not a reference
			})
		}

		order = &domain.Order{
			CustomerID: customer.ID,
			Customer:   customer,
			Items:      lineItems,
		}
		order.CalculateTotal()

		if err := s.orders.Create(ctx, order); err != nil {
			mylogger.Error(
				ctx,
				s.logger,
				"Failed to create order",
				zap.String("customer_id", customerID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to create order: %w", err)
		}

		// New targets derive from the stock observed under the lock, not
		// from a re-read.
		updates := make([]repository.QuantityUpdate, 0, len(requested))
		for _, p := range existing {
			updates = append(updates, repository.QuantityUpdate{
				ProductID:   p.ID,
				NewQuantity: p.StockQuantity - requested[p.ID],
			})
		}

		if _, err := s.products.UpdateQuantities(ctx, updates); err != nil {
			mylogger.Error(
				ctx,
				s.logger,
				"Stock update failed, rolling back order",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)

			if errors.Is(err, repository.ErrProductNotFound) {
				return err
			}
			return fmt.Errorf("%w: %w", repository.ErrStockUpdateFailed, err)
		}

		return s.emitOrderCreated(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.Int64("total_price", order.TotalPrice),
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			mylogger.Warn(ctx, s.logger, "Order not found", zap.String("id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "Error getting order", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("error getting order: %w", err)
	}

	return order, nil
}

func (s *orderService) emitOrderCreated(ctx context.Context, order *domain.Order) error {
	eventItems := make([]domain.OrderCreatedEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		eventItems = append(eventItems, domain.OrderCreatedEventItem{
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	envelope := map[string]any{
		"event": "OrderCreated",
		"payload": domain.OrderCreatedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Items:      eventItems,
			TotalPrice: order.TotalPrice,
			CreatedAt:  order.CreatedAt,
		},
	}

	payloadBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	outboxEvent := &outboxDomain.OutboxEvent{
		AggregateType: "Order",
		AggregateID:   order.ID,
		EventType:     "OrderCreated",
		Payload:       payloadBytes,
		Topic:         s.topic,
	}

	if err := s.outbox.SaveOutboxEvent(ctx, outboxEvent); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to save outbox event",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}
