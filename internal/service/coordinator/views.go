package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

const (
	fallbackCustomerName = "Unknown"
	fallbackStaffName    = "System"
	fallbackProductName  = "Unknown"
)

// OrderItemView — позиция заказа с подставленным названием товара.
type OrderItemView struct {
	ProductID   string
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// OrderView — заказ, подготовленный для отображения: имена клиента,
// сотрудника и товаров подставлены, отсутствующие ссылки заменены
// на заглушки.
type OrderView struct {
	ID            string
	OrderNumber   string
	CustomerName  string
	CustomerPhone string
	StaffName     string
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Status        string
	Notes         string
	ItemsSummary  string
	Items         []OrderItemView
	CreatedAt     time.Time
}

// GetOrder возвращает заказ для отображения или ErrOrderNotFound.
func (c *Coordinator) GetOrder(ctx context.Context, orderID string) (OrderView, error) {
	var (
		order    domain.Order
		customer domain.Customer
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var getErr error
		order, getErr = uow.Orders().Get(ctx, orderID)
		if getErr != nil {
			return getErr
		}
		if order.CustomerID != "" {
			customer, getErr = uow.Customers().Get(ctx, order.CustomerID)
			if getErr != nil && !domain.IsNotFound(getErr) {
				return getErr
			}
		}
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	return c.buildView(ctx, order, customer), nil
}

// ListOrders возвращает последние заказы, новые первыми.
func (c *Coordinator) ListOrders(ctx context.Context, limit int) ([]OrderView, error) {
	var (
		orders    []domain.Order
		customers map[string]domain.Customer
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var listErr error
		orders, listErr = uow.Orders().ListRecent(ctx, limit)
		if listErr != nil {
			return listErr
		}

		customers = make(map[string]domain.Customer)
		for _, order := range orders {
			if order.CustomerID == "" {
				continue
			}
			if _, ok := customers[order.CustomerID]; ok {
				continue
			}
			customer, getErr := uow.Customers().Get(ctx, order.CustomerID)
			if getErr != nil {
				if domain.IsNotFound(getErr) {
					continue
				}
				return getErr
			}
			customers[order.CustomerID] = customer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, c.buildView(ctx, order, customers[order.CustomerID]))
	}
	return views, nil
}

func (c *Coordinator) buildView(ctx context.Context, order domain.Order, customer domain.Customer) OrderView {
	view := OrderView{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  fallbackCustomerName,
		CustomerPhone: customer.PhoneNumber,
		StaffName:     fallbackStaffName,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		Status:        string(order.Status),
		Notes:         order.Notes,
		CreatedAt:     order.CreatedAt,
	}

	// Транзиентно пустой номер заказа подменяется суррогатом из ID.
	if view.OrderNumber == "" {
		view.OrderNumber = surrogateOrderNumber(order.ID)
	}
	if customer.FullName != "" {
		view.CustomerName = customer.FullName
	}
	if order.StaffID != "" && c.staff != nil {
		if member, err := c.staff.GetStaff(ctx, order.StaffID); err == nil && member.FullName != "" {
			view.StaffName = member.FullName
		}
	}

	summary := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		name := fallbackProductName
		if c.catalog != nil {
			if product, err := c.catalog.GetProduct(ctx, line.ProductID); err == nil && product.Name != "" {
				name = product.Name
			}
		}
		view.Items = append(view.Items, OrderItemView{
			ProductID:   line.ProductID,
			ProductName: name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
		summary = append(summary, fmt.Sprintf("%dx %s", line.Quantity, name))
	}
	view.ItemsSummary = strings.Join(summary, ", ")

	return view
}

func surrogateOrderNumber(orderID string) string {
	cleaned := strings.ReplaceAll(orderID, "-", "")
	if len(cleaned) > 8 {
		cleaned = cleaned[:8]
	}
	return "#" + strings.ToUpper(cleaned)
}
