package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/service/coordinator"
)

// OrderItemRequest — позиция заказа в теле запроса.
// Цена приходит от кассы и не сверяется с каталогом.
type OrderItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int32           `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderRequest — тело POST /orders/create и PUT /orders/:id.
// Заявленная сумма не сверяется с суммой позиций: скидки и акции
// применяет касса, ядро хранит сумму как есть.
type OrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone" validate:"required"`
	CustomerNotes string             `json:"customer_notes"`
	StaffID       string             `json:"staff_id"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=cash card upi"`
	Notes         string             `json:"notes"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r OrderRequest) toCreateInput() coordinator.CreateOrderInput {
	return coordinator.CreateOrderInput{
		Customer:      r.toCustomerInput(),
		StaffID:       r.StaffID,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
		TotalAmount:   r.TotalAmount,
		Lines:         r.toLines(),
	}
}

func (r OrderRequest) toUpdateInput() coordinator.UpdateOrderInput {
	return coordinator.UpdateOrderInput{
		Customer:      r.toCustomerInput(),
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
		TotalAmount:   r.TotalAmount,
		Lines:         r.toLines(),
	}
}

func (r OrderRequest) toCustomerInput() coordinator.CustomerInput {
	return coordinator.CustomerInput{
		FullName:    r.CustomerName,
		PhoneNumber: r.CustomerPhone,
		Notes:       r.CustomerNotes,
	}
}

func (r OrderRequest) toLines() []coordinator.LineInput {
	lines := make([]coordinator.LineInput, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, coordinator.LineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return lines
}

type orderItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	OrderNumber   string              `json:"order_number"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	StaffName     string              `json:"staff_name"`
	TotalAmount   string              `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	Notes         string              `json:"notes,omitempty"`
	ItemsSummary  string              `json:"items_summary"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

type mutationResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

func toOrderResponse(view coordinator.OrderView) orderResponse {
	items := make([]orderItemResponse, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			LineTotal:   item.LineTotal.StringFixed(2),
		})
	}
	return orderResponse{
		ID:            view.ID,
		OrderNumber:   view.OrderNumber,
		CustomerName:  view.CustomerName,
		CustomerPhone: view.CustomerPhone,
		StaffName:     view.StaffName,
		TotalAmount:   view.TotalAmount.StringFixed(2),
		PaymentMethod: view.PaymentMethod,
		Status:        view.Status,
		Notes:         view.Notes,
		ItemsSummary:  view.ItemsSummary,
		Items:         items,
		CreatedAt:     view.CreatedAt,
	}
}
