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

const uniqueViolation = "23505"

type customerRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewCustomerStore(pool *pgxpool.Pool, logger *zap.Logger) CustomerStore {
	return &customerRepo{
		pool:   pool,
		tracer: otel.Tracer("store/customer"),
		logger: logger,
	}
}

func (r *customerRepo) db(ctx context.Context) db.Querier {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *customerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	ctx, span := r.tracer.Start(ctx, "CustomerStore.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("email", customer.Email),
	)

	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}

	query := `
		INSERT INTO customers (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at;
	`

	err := r.db(ctx).QueryRow(
		ctx,
		query,
		customer.ID,
		customer.Name,
		customer.Email,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCustomerExists
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error creating customer",
			zap.String("email", customer.Email),
			zap.Error(err),
		)

		return fmt.Errorf("error creating customer: %w", err)
	}

	return nil
}

func (r *customerRepo) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerStore.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `
		SELECT id, name, email, created_at, updated_at
		FROM customers
		WHERE id = $1;
	`

	var res domain.Customer
	if err := r.db(ctx).QueryRow(ctx, query, id).
		Scan(&res.ID, &res.Name, &res.Email, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error finding customer by id",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding customer: %w", err)
	}

	return &res, nil
}

func (r *customerRepo) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerStore.FindByEmail")
	defer span.End()

	query := `
		SELECT id, name, email, created_at, updated_at
		FROM customers
		WHERE email = $1;
	`

	var res domain.Customer
	if err := r.db(ctx).QueryRow(ctx, query, email).
		Scan(&res.ID, &res.Name, &res.Email, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error finding customer by email",
			zap.Error(err),
		)

		return nil, fmt.Errorf("error finding customer: %w", err)
	}

	return &res, nil
}
