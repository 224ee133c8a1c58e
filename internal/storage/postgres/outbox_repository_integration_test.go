package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

func TestOutboxEnqueuePullMarkIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	var enqueued domain.OutboxMessage
	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var enqErr error
		enqueued, enqErr = uow.Outbox().Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "order-1",
			EventType:     "order.created",
			Payload:       []byte(`{"order_id":"order-1"}`),
		})
		return enqErr
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	repo := NewOutboxRepository(store)

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != enqueued.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(enqueued.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, _ = repo.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}
}

func TestOutboxRollsBackWithTxIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, _ = uow.Outbox().Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "order-1",
			EventType:     "order.created",
			Payload:       []byte(`{}`),
		})
		return boom
	})

	pending, err := NewOutboxRepository(store).PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatal("rolled back enqueue must not be visible")
	}
}

func TestOutboxMarkUnknownIDIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	err := NewOutboxRepository(store).MarkSent("00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
}
