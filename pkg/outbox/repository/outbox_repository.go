package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/pkg/db"
	"github.com/sakashimaa/go-marketplace/pkg/outbox/domain"
	"github.com/sakashimaa/go-marketplace/pkg/outbox/worker"
)

type outboxRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOutboxStore(pool *pgxpool.Pool, logger *zap.Logger) worker.OutboxStore {
	return &outboxRepo{
		pool:   pool,
		tracer: otel.Tracer("store/outbox"),
		logger: logger,
	}
}

func (r *outboxRepo) db(ctx context.Context) db.Querier {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *outboxRepo) SaveOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error {
	ctx, span := r.tracer.Start(ctx, "OutboxStore.SaveOutboxEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("aggregate_id", event.AggregateID),
		attribute.String("aggregate_type", event.AggregateType),
	)

	query := `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, topic)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := r.db(ctx).Exec(
		ctx,
		query,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.Topic,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error saving outbox event: %w", err)
	}

	return nil
}

func (r *outboxRepo) GetUnpublishedEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxStore.GetUnpublishedEvents")
	defer span.End()

	span.SetAttributes(
		attribute.Int("batch_size", batchSize),
	)

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, topic, created_at
		FROM outbox
		WHERE published_at IS NULL AND attempts < 10
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED;
	`

	rows, err := r.db(ctx).Query(ctx, query, batchSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&e.Payload,
			&e.Topic,
			&e.CreatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read outbox events: %w", err)
	}

	return events, nil
}

func (r *outboxRepo) MarkEventPublished(ctx context.Context, eventID int64) error {
	ctx, span := r.tracer.Start(ctx, "OutboxStore.MarkEventPublished")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
	)

	query := `
		UPDATE outbox
		SET published_at = NOW(), last_error = NULL
		WHERE id = $1;
	`

	if _, err := r.db(ctx).Exec(ctx, query, eventID); err != nil {
		span.RecordError(err)

		r.logger.Error("Failed to mark outbox event published", zap.Int64("event_id", eventID), zap.Error(err))
		return fmt.Errorf("error marking event published: %w", err)
	}

	return nil
}

func (r *outboxRepo) MarkEventFailed(ctx context.Context, eventID int64, errMsg string) error {
	ctx, span := r.tracer.Start(ctx, "OutboxStore.MarkEventFailed")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
	)

	query := `
		UPDATE outbox
		SET last_error = $1, attempts = attempts + 1
		WHERE id = $2;
	`

	if _, err := r.db(ctx).Exec(ctx, query, errMsg, eventID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("error marking event failed: %w", err)
	}

	return nil
}
