package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/pkg/db"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
)

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductStore(pool *pgxpool.Pool, logger *zap.Logger) ProductStore {
	return &productRepo{
		pool:   pool,
		tracer: otel.Tracer("store/product"),
		logger: logger,
	}
}

func (r *productRepo) db(ctx context.Context) db.Querier {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductStore.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", product.Name),
	)

	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	query := `
		INSERT INTO products (id, name, price, stock_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at;
	`

	err := r.db(ctx).QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.StockQuantity,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrProductExists
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating product",
			zap.String("name", product.Name),
			zap.Error(err),
		)

		return fmt.Errorf("error creating product: %w", err)
	}

	return nil
}

func (r *productRepo) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductStore.FindByName")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", name),
	)

	query := `
		SELECT id, name, price, stock_quantity, created_at, updated_at
		FROM products
		WHERE name = $1;
	`

	var res domain.Product
	if err := r.db(ctx).QueryRow(ctx, query, name).
		Scan(&res.ID, &res.Name, &res.Price, &res.StockQuantity, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error finding product by name",
			zap.String("name", name),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding product: %w", err)
	}

	return &res, nil
}

func (r *productRepo) FindAllByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductStore.FindAllByIDs")
	defer span.End()

	return r.findAllByIDs(ctx, span, ids, false)
}

// FindAllByIDsForUpdate locks the matching rows until the surrounding
// transaction commits or rolls back. Callers must be inside one, otherwise
// the lock is released as soon as the statement finishes.
func (r *productRepo) FindAllByIDsForUpdate(ctx context.Context, ids []string) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductStore.FindAllByIDsForUpdate")
	defer span.End()

	return r.findAllByIDs(ctx, span, ids, true)
}

func (r *productRepo) findAllByIDs(ctx context.Context, span trace.Span, ids []string, forUpdate bool) ([]domain.Product, error) {
	span.SetAttributes(
		attribute.Int("ids_count", len(ids)),
	)

	query := `
		SELECT id, name, price, stock_quantity, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id`
	if forUpdate {
		// Deterministic lock order avoids deadlocks between concurrent
		// orders touching overlapping product sets.
		query += `
		FOR UPDATE`
	}
	query += `;`

	rows, err := r.db(ctx).Query(ctx, query, dedupIDs(ids))
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error querying products by ids",
			zap.Int("ids_count", len(ids)),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error reading products: %w", err)
	}

	return products, nil
}

// UpdateQuantities sets absolute stock values for the whole batch in one
// transaction. A missing target aborts the batch with ErrProductNotFound.
// The stock_quantity >= 0 check constraint rejects any update that would
// drive stock negative.
func (r *productRepo) UpdateQuantities(ctx context.Context, updates []QuantityUpdate) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductStore.UpdateQuantities")
	defer span.End()

	span.SetAttributes(
		attribute.Int("updates_count", len(updates)),
	)

	if tx, ok := db.TxFromContext(ctx); ok {
		return r.updateQuantities(ctx, tx, updates)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to begin transaction", zap.Error(err))
		return nil, err
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, r.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	products, err := r.updateQuantities(ctx, tx, updates)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, r.logger, "Failed to commit transaction", zap.Error(err))
		return nil, err
	}

	return products, nil
}

func (r *productRepo) updateQuantities(ctx context.Context, tx pgx.Tx, updates []QuantityUpdate) ([]domain.Product, error) {
	query := `
		UPDATE products
		SET stock_quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, price, stock_quantity, created_at, updated_at;
	`

	products := make([]domain.Product, 0, len(updates))
	for _, update := range updates {
		var p domain.Product
		err := tx.QueryRow(ctx, query, update.ProductID, update.NewQuantity).
			Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				mylogger.Warn(
					ctx,
					r.logger,
					"Quantity update target vanished",
					zap.String("product_id", update.ProductID),
				)

				return nil, ErrProductNotFound
			}

			mylogger.Error(
				ctx,
				r.logger,
				"Error updating product quantity",
				zap.String("product_id", update.ProductID),
				zap.Int64("new_quantity", update.NewQuantity),
				zap.Error(err),
			)

			return nil, fmt.Errorf("error updating quantity for product %s: %w", update.ProductID, err)
		}

		products = append(products, p)
	}

	return products, nil
}

func (r *productRepo) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductStore.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
		attribute.String("search", search),
	)

	baseQuery := `
		SELECT id, name, price, stock_quantity, created_at, updated_at
		FROM products`
	countQuery := `SELECT COUNT(*) FROM products`

	var args []any
	argID := 1

	if search != "" {
		filter := fmt.Sprintf(" WHERE name ILIKE $%d", argID)
		baseQuery += filter
		countQuery += filter

		args = append(args, "%"+search+"%")
		argID++
	}

	baseQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d;", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db(ctx).Query(ctx, baseQuery, args...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error listing products",
			zap.String("search", search),
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("error selecting products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error reading products: %w", err)
	}

	countArgs := args[:argID-1]
	var totalCount int64
	if err := r.db(ctx).QueryRow(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("error counting products: %w", err)
	}

	return products, totalCount, nil
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
