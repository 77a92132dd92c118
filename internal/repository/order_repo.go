package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/pkg/db"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
)

type orderRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOrderStore(pool *pgxpool.Pool, logger *zap.Logger) OrderStore {
	return &orderRepo{
		pool:   pool,
		tracer: otel.Tracer("store/order"),
		logger: logger,
	}
}

func (r *orderRepo) db(ctx context.Context) db.Querier {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Create persists the order and all of its items. When no transaction is
// active in ctx it opens one, so an order is never partially persisted.
func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderStore.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", order.CustomerID),
		attribute.Int("items_count", len(order.Items)),
	)

	if _, ok := db.TxFromContext(ctx); ok {
		return r.create(ctx, order)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to begin transaction", zap.Error(err))
		return err
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, r.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := r.create(db.InjectTx(ctx, tx), order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, r.logger, "Failed to commit transaction", zap.Error(err))
		return err
	}

	return nil
}

func (r *orderRepo) create(ctx context.Context, order *domain.Order) error {
	q := r.db(ctx)

	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	queryOrder := `
		INSERT INTO orders (id, customer_id, total_price)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at;
	`

	if err := q.QueryRow(
		ctx,
		queryOrder,
		order.ID,
		order.CustomerID,
		order.TotalPrice,
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.String("customer_id", order.CustomerID),
			zap.Error(err),
		)

		return fmt.Errorf("error inserting order: %w", err)
	}

	// position preserves the request order of the line items.
	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, price, quantity, position)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = order.ID

		if _, err := q.Exec(
			ctx,
			queryItem,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Price,
			item.Quantity,
			i,
		); err != nil {
			mylogger.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)

			return fmt.Errorf("error inserting order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderStore.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	queryOrder := `
		SELECT o.id, o.customer_id, o.total_price, o.created_at, o.updated_at,
			c.id, c.name, c.email, c.created_at, c.updated_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1;
	`

	var (
		order    domain.Order
		customer domain.Customer
	)
	if err := r.db(ctx).QueryRow(ctx, queryOrder, id).Scan(
		&order.ID, &order.CustomerID, &order.TotalPrice, &order.CreatedAt, &order.UpdatedAt,
		&customer.ID, &customer.Name, &customer.Email, &customer.CreatedAt, &customer.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error finding order",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding order: %w", err)
	}
	order.Customer = &customer

	queryItems := `
		SELECT id, order_id, product_id, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC;
	`

	rows, err := r.db(ctx).Query(ctx, queryItems, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Price, &item.Quantity); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error reading order items: %w", err)
	}

	return &order, nil
}
