package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

func seedStore(t *testing.T, stock int32) *Store {
	t.Helper()

	store := NewStore()
	product := domain.ProductInfo{
		ID:    "product-1",
		Name:  "Croissant",
		Price: decimal.RequireFromString("3.50"),
	}
	if err := store.SeedProduct(context.Background(), product, stock, 5); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return store
}

func TestWithinTxCommit(t *testing.T) {
	store := seedStore(t, 10)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.Inventory().Reserve(ctx, "product-1", 4)
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	var record domain.InventoryRecord
	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var getErr error
		record, getErr = uow.Inventory().Get(ctx, "product-1")
		return getErr
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if record.StockQuantity != 6 {
		t.Fatalf("stock = %d, want 6", record.StockQuantity)
	}
}

func TestWithinTxRollbackLeavesStateUntouched(t *testing.T) {
	store := seedStore(t, 10)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Inventory().Reserve(ctx, "product-1", 4); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		record, getErr := uow.Inventory().Get(ctx, "product-1")
		if getErr != nil {
			return getErr
		}
		if record.StockQuantity != 10 {
			t.Fatalf("stock = %d, want 10 after rollback", record.StockQuantity)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
}

func TestWithinTxBusyTimeout(t *testing.T) {
	store := seedStore(t, 1)
	store.SetLockWait(20 * time.Millisecond)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = store.WithinTx(ctx, func(context.Context, domain.UnitOfWork) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := store.WithinTx(ctx, func(context.Context, domain.UnitOfWork) error { return nil })
	close(release)

	if !domain.IsBusy(err) {
		t.Fatalf("expected ErrTxBusy, got %v", err)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	store := seedStore(t, 2)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.Inventory().Reserve(ctx, "product-1", 3)
	})

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Fatalf("unexpected error payload: %+v", stockErr)
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	store := seedStore(t, 5)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Inventory().Reserve(ctx, "product-1", 5); err != nil {
			return err
		}
		return uow.Inventory().Release(ctx, "product-1", 5)
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		record, _ := uow.Inventory().Get(ctx, "product-1")
		if record.StockQuantity != 5 {
			t.Fatalf("stock = %d, want 5", record.StockQuantity)
		}
		return nil
	})
}

func TestSequenceAllocatorFormatsAndCounts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var first, second string
	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var allocErr error
		first, allocErr = uow.Sequence().NextOrderNumber(ctx)
		if allocErr != nil {
			return allocErr
		}
		second, allocErr = uow.Sequence().NextOrderNumber(ctx)
		return allocErr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first != "BB001" || second != "BB002" {
		t.Fatalf("numbers = %s, %s; want BB001, BB002", first, second)
	}
}

func TestSequenceAllocatorRollsBackWithTx(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, _ = uow.Sequence().NextOrderNumber(ctx)
		return boom
	})

	var number string
	_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		number, _ = uow.Sequence().NextOrderNumber(ctx)
		return nil
	})
	if number != "BB001" {
		t.Fatalf("number = %s, want BB001 after rollback", number)
	}
}

func TestSequenceAllocatorUniqueUnderConcurrency(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const workers = 20
	numbers := make(chan string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
				number, err := uow.Sequence().NextOrderNumber(ctx)
				if err != nil {
					return err
				}
				numbers <- number
				return nil
			})
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("duplicate order number %s", number)
		}
		seen[number] = true
	}
	if len(seen) != workers {
		t.Fatalf("allocated %d numbers, want %d", len(seen), workers)
	}
}

func TestOutboxEnqueuePullMark(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var enqueued domain.OutboxMessage
	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var enqErr error
		enqueued, enqErr = uow.Outbox().Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "order-1",
			EventType:     "order.created",
			Payload:       []byte(`{}`),
		})
		return enqErr
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueued.ID == "" {
		t.Fatal("enqueue should assign an id")
	}

	outbox := store.Outbox()
	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != enqueued.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	if err := outbox.MarkSent(enqueued.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, _ = outbox.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}
}

func TestOutboxRollsBackWithTx(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, _ = uow.Outbox().Enqueue(ctx, domain.OutboxMessage{EventType: "order.created"})
		return boom
	})

	pending, err := store.Outbox().PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatal("rolled back enqueue must not be visible")
	}
}

func TestCatalogAndStaffLookups(t *testing.T) {
	store := seedStore(t, 1)
	ctx := context.Background()

	if err := store.SeedStaff(ctx, domain.StaffInfo{ID: "staff-1", FullName: "Dana"}); err != nil {
		t.Fatalf("seed staff: %v", err)
	}

	product, err := store.GetProduct(ctx, "product-1")
	if err != nil || product.Name != "Croissant" {
		t.Fatalf("get product = %+v, %v", product, err)
	}
	if _, err := store.GetProduct(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	member, err := store.GetStaff(ctx, "staff-1")
	if err != nil || member.FullName != "Dana" {
		t.Fatalf("get staff = %+v, %v", member, err)
	}
	if _, err := store.GetStaff(ctx, "missing"); !errors.Is(err, domain.ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
}
