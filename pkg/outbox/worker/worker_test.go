package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/pkg/outbox/domain"
	"github.com/sakashimaa/go-marketplace/pkg/outbox/worker"
)

type passthroughTransactor struct{}

func (passthroughTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubStore struct {
	unpublished []*domain.OutboxEvent
	published   []int64
	failed      []int64
}

func (s *stubStore) SaveOutboxEvent(_ context.Context, _ *domain.OutboxEvent) error {
	return nil
}

func (s *stubStore) GetUnpublishedEvents(_ context.Context, _ int) ([]*domain.OutboxEvent, error) {
	return s.unpublished, nil
}

func (s *stubStore) MarkEventPublished(_ context.Context, eventID int64) error {
	s.published = append(s.published, eventID)
	return nil
}

func (s *stubStore) MarkEventFailed(_ context.Context, eventID int64, _ string) error {
	s.failed = append(s.failed, eventID)
	return nil
}

type stubProducer struct {
	failTopics map[string]error
	produced   []string
}

func (p *stubProducer) ProduceMessage(_ context.Context, topic, key string, _ any) error {
	if err, ok := p.failTopics[topic]; ok {
		return err
	}
	p.produced = append(p.produced, key)
	return nil
}

func TestProcessBatch(t *testing.T) {
	store := &stubStore{
		unpublished: []*domain.OutboxEvent{
			{ID: 1, AggregateID: "a", Topic: "order_events", EventType: "OrderCreated"},
			{ID: 2, AggregateID: "b", Topic: "order_events", EventType: "OrderCreated"},
		},
	}
	producer := &stubProducer{}

	p := worker.NewProcessor(passthroughTransactor{}, store, producer, zap.NewNop())

	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Equal(t, []string{"a", "b"}, producer.produced)
	assert.Equal(t, []int64{1, 2}, store.published)
	assert.Empty(t, store.failed)
}

func TestProcessBatch_PublishFailureMarksEvent(t *testing.T) {
	store := &stubStore{
		unpublished: []*domain.OutboxEvent{
			{ID: 1, AggregateID: "a", Topic: "dead_topic", EventType: "OrderCreated"},
			{ID: 2, AggregateID: "b", Topic: "order_events", EventType: "OrderCreated"},
		},
	}
	producer := &stubProducer{
		failTopics: map[string]error{"dead_topic": errors.New("broker unavailable")},
	}

	p := worker.NewProcessor(passthroughTransactor{}, store, producer, zap.NewNop())

	// A failed publish marks the event and does not stop the batch.
	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Equal(t, []int64{1}, store.failed)
	assert.Equal(t, []int64{2}, store.published)
	assert.Equal(t, []string{"b"}, producer.produced)
}

func TestProcessBatch_Empty(t *testing.T) {
	store := &stubStore{}
	producer := &stubProducer{}

	p := worker.NewProcessor(passthroughTransactor{}, store, producer, zap.NewNop())

	require.NoError(t, p.ProcessBatch(context.Background()))
	assert.Empty(t, producer.produced)
}
