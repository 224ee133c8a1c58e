package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

func TestGetOrderViewWithKnownReferences(t *testing.T) {
	c, store := newTestCoordinator(t)
	seedProduct(t, store, "product-a", "Croissant", "3.50", 10)
	seedProduct(t, store, "product-b", "Latte", "4.00", 10)
	if err := store.SeedStaff(context.Background(), domain.StaffInfo{ID: "staff-1", FullName: "Marta"}); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	ctx := context.Background()

	input := CreateOrderInput{
		Customer:      CustomerInput{FullName: "Priya", PhoneNumber: "555"},
		StaffID:       "staff-1",
		PaymentMethod: domain.PaymentMethodCard,
		Notes:         "no sugar",
		TotalAmount:   decimal.RequireFromString("11.00"),
		Lines: []LineInput{
			{ProductID: "product-a", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")},
			{ProductID: "product-b", Quantity: 1, UnitPrice: decimal.RequireFromString("4.00")},
		},
	}
	created, err := c.CreateOrder(ctx, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, err := c.GetOrder(ctx, created.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}

	if view.OrderNumber != created.OrderNumber {
		t.Fatalf("order number = %s, want %s", view.OrderNumber, created.OrderNumber)
	}
	if view.CustomerName != "Priya" || view.CustomerPhone != "555" {
		t.Fatalf("customer view = %s / %s", view.CustomerName, view.CustomerPhone)
	}
	if view.StaffName != "Marta" {
		t.Fatalf("staff name = %s, want Marta", view.StaffName)
	}
	if view.Status != string(domain.OrderStatusCompleted) {
		t.Fatalf("status = %s, want completed", view.Status)
	}
	if view.ItemsSummary != "2x Croissant, 1x Latte" {
		t.Fatalf("items summary = %q", view.ItemsSummary)
	}
	if len(view.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(view.Items))
	}
	if !view.Items[0].LineTotal.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("line total = %s, want 7.00", view.Items[0].LineTotal)
	}
}

func TestGetOrderViewFallbacks(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	// Заказ без клиента, сотрудника и каталожной записи товара.
	order := domain.Order{
		ID:            "3f8a1c2d-0000-4000-8000-000000000000",
		TotalAmount:   decimal.RequireFromString("5.00"),
		PaymentMethod: domain.PaymentMethodCash,
		Status:        domain.OrderStatusCompleted,
		Lines: []domain.OrderLine{
			{ID: "line-1", ProductID: "ghost-product", Quantity: 2,
				UnitPrice: decimal.RequireFromString("2.50"),
				LineTotal: decimal.RequireFromString("5.00")},
		},
	}
	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Orders().Insert(ctx, order); err != nil {
			return err
		}
		return uow.Orders().InsertLine(ctx, order.ID, order.Lines[0])
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	view, err := c.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}

	if view.CustomerName != "Unknown" {
		t.Fatalf("customer name = %q, want Unknown", view.CustomerName)
	}
	if view.StaffName != "System" {
		t.Fatalf("staff name = %q, want System", view.StaffName)
	}
	if view.OrderNumber != "#3F8A1C2D" {
		t.Fatalf("surrogate order number = %q, want #3F8A1C2D", view.OrderNumber)
	}
	if view.ItemsSummary != "2x Unknown" {
		t.Fatalf("items summary = %q, want 2x Unknown", view.ItemsSummary)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	c, store := newTestCoordinator(t)
	seedProduct(t, store, "product-1", "Croissant", "3.50", 10)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		result, err := c.CreateOrder(ctx, singleLineInput("555", "product-1", 1, "3.50", "3.50"))
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		ids = append(ids, result.OrderID)
	}

	views, err := c.ListOrders(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2 (limit respected)", len(views))
	}
	if views[0].ID != ids[2] {
		t.Fatalf("first view = %s, want newest %s", views[0].ID, ids[2])
	}
	if views[0].CustomerName != "Priya" {
		t.Fatalf("customer name = %q", views[0].CustomerName)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.GetOrder(context.Background(), "missing")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
