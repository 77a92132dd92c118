package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/pkg/db"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
	"github.com/sakashimaa/go-marketplace/pkg/outbox/domain"
)

// OutboxStore writes and drains the outbox table. SaveOutboxEvent joins the
// transaction carried by ctx, so an event is staged atomically with the
// state change that produced it.
type OutboxStore interface {
	SaveOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, eventID int64) error
	MarkEventFailed(ctx context.Context, eventID int64, errMsg string) error
}

type Producer interface {
	ProduceMessage(ctx context.Context, topic, key string, message any) error
}

// Processor drains unpublished outbox events to Kafka on a fixed interval.
type Processor struct {
	transactor db.Transactor
	store      OutboxStore
	producer   Producer
	logger     *zap.Logger
	batchSize  int
	interval   time.Duration
	tracer     trace.Tracer
}

func NewProcessor(
	transactor db.Transactor,
	store OutboxStore,
	producer Producer,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		transactor: transactor,
		store:      store,
		producer:   producer,
		logger:     logger,
		batchSize:  50,
		interval:   500 * time.Millisecond,
		tracer:     otel.Tracer("outbox/worker"),
	}
}

func (p *Processor) Start(ctx context.Context) {
	mylogger.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessBatch publishes one batch of unpublished events. The batch is
// claimed and marked inside one transaction; SKIP LOCKED in the store keeps
// concurrent processors from double-publishing.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	return p.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		events, err := p.store.GetUnpublishedEvents(ctx, p.batchSize)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		mylogger.Debug(
			ctx,
			p.logger,
			"Processing outbox events",
			zap.Int("count", len(events)),
		)

		for _, event := range events {
			err := p.producer.ProduceMessage(ctx, event.Topic, event.AggregateID, event.Payload)
			if err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Outbox event publish failed",
					zap.Int64("id", event.ID),
					zap.String("event_type", event.EventType),
					zap.Error(err),
				)

				if dbErr := p.store.MarkEventFailed(ctx, event.ID, err.Error()); dbErr != nil {
					return dbErr
				}
				continue
			}

			if dbErr := p.store.MarkEventPublished(ctx, event.ID); dbErr != nil {
				return dbErr
			}
		}

		return nil
	})
}
