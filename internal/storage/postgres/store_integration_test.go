package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

func TestWithinTxCommitAndRollbackIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	productID := uuid.NewString()
	seedProductForIntegrationTest(t, store, productID, 10)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.Inventory().Reserve(ctx, productID, 4)
	})
	if err != nil {
		t.Fatalf("commit tx: %v", err)
	}

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Inventory().Reserve(ctx, productID, 3); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		record, getErr := uow.Inventory().Get(ctx, productID)
		if getErr != nil {
			return getErr
		}
		if record.StockQuantity != 6 {
			t.Fatalf("stock = %d, want 6", record.StockQuantity)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
}

func TestReserveInsufficientStockIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	productID := uuid.NewString()
	seedProductForIntegrationTest(t, store, productID, 2)

	err := store.WithinTx(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.Inventory().Reserve(ctx, productID, 3)
	})

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Fatalf("unexpected error payload: %+v", stockErr)
	}
}

func TestSequenceAllocatorIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	var first string
	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var allocErr error
		first, allocErr = uow.Sequence().NextOrderNumber(ctx)
		return allocErr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first != "BB001" {
		t.Fatalf("first number = %s, want BB001", first)
	}

	boom := errors.New("boom")
	_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, _ = uow.Sequence().NextOrderNumber(ctx)
		return boom
	})

	var next string
	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var allocErr error
		next, allocErr = uow.Sequence().NextOrderNumber(ctx)
		return allocErr
	})
	if err != nil {
		t.Fatalf("allocate after rollback: %v", err)
	}
	if next != "BB002" {
		t.Fatalf("next number = %s, want BB002 after rollback", next)
	}
}

func TestSequenceAllocatorUniqueUnderConcurrencyIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	const workers = 10
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

func TestOrderRoundTripIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	productID := uuid.NewString()
	seedProductForIntegrationTest(t, store, productID, 10)
	ctx := context.Background()

	orderID := uuid.NewString()
	customerID := uuid.NewString()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		customer := domain.Customer{
			ID:          customerID,
			FullName:    "Priya",
			PhoneNumber: "555-0101",
		}
		if err := uow.Customers().Create(ctx, customer); err != nil {
			return err
		}

		order := domain.Order{
			ID:            orderID,
			OrderNumber:   "BB001",
			CustomerID:    customerID,
			TotalAmount:   decimal.RequireFromString("12.00"),
			PaymentMethod: domain.PaymentMethodCash,
			Status:        domain.OrderStatusCompleted,
			CreatedAt:     time.Now().UTC(),
		}
		if err := uow.Orders().Insert(ctx, order); err != nil {
			return err
		}
		return uow.Orders().InsertLine(ctx, orderID, domain.OrderLine{
			ProductID: productID,
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("6.00"),
			LineTotal: decimal.RequireFromString("12.00"),
		})
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		order, getErr := uow.Orders().Get(ctx, orderID)
		if getErr != nil {
			return getErr
		}
		if order.OrderNumber != "BB001" || order.CustomerID != customerID {
			t.Fatalf("unexpected order: %+v", order)
		}
		if len(order.Lines) != 1 || order.Lines[0].Quantity != 2 {
			t.Fatalf("unexpected lines: %+v", order.Lines)
		}
		if !order.TotalAmount.Equal(decimal.RequireFromString("12.00")) {
			t.Fatalf("total = %s, want 12.00", order.TotalAmount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read order: %v", err)
	}
}

func TestDuplicateOrderNumberIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	insert := func(id string) error {
		return store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			return uow.Orders().Insert(ctx, domain.Order{
				ID:            id,
				OrderNumber:   "BB777",
				TotalAmount:   decimal.Zero,
				PaymentMethod: domain.PaymentMethodCash,
				Status:        domain.OrderStatusCompleted,
				CreatedAt:     time.Now().UTC(),
			})
		})
	}

	if err := insert(uuid.NewString()); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(uuid.NewString()); !errors.Is(err, domain.ErrOrderNumberConflict) {
		t.Fatalf("expected ErrOrderNumberConflict, got %v", err)
	}
}

func TestCustomerAggregatesClampIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	customerID := uuid.NewString()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Customers().Create(ctx, domain.Customer{
			ID:          customerID,
			PhoneNumber: "555-0102",
		}); err != nil {
			return err
		}
		return uow.Customers().ApplyDelta(ctx, customerID, decimal.RequireFromString("-50.00"), -3)
	})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		customer, getErr := uow.Customers().Get(ctx, customerID)
		if getErr != nil {
			return getErr
		}
		if customer.TotalOrders != 0 || !customer.TotalSpent.IsZero() {
			t.Fatalf("aggregates must clamp at zero: %+v", customer)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read customer: %v", err)
	}
}

func TestLockTimeoutTranslatesToBusyIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	store.SetLockTimeout(200 * time.Millisecond)
	productID := uuid.NewString()
	seedProductForIntegrationTest(t, store, productID, 10)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			if err := uow.Inventory().Reserve(ctx, productID, 1); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding
	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.Inventory().Reserve(ctx, productID, 1)
	})
	close(release)

	if !domain.IsBusy(err) {
		t.Fatalf("expected ErrTxBusy, got %v", err)
	}
	if holderErr := <-done; holderErr != nil {
		t.Fatalf("holder tx failed: %v", holderErr)
	}
}
