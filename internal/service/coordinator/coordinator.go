package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/sweetrise/bakery-pos/internal/domain"
	"github.com/sweetrise/bakery-pos/internal/metrics"
)

const (
	maxConflictRetries  = 3
	conflictBackoffBase = 10 * time.Millisecond
)

// Coordinator — единственная точка входа для мутаций заказов.
// Каждая операция выполняется как одна атомарная единица работы:
// резерв склада, запись заказа, агрегаты клиента и событие outbox
// коммитятся вместе или не коммитятся вовсе.
type Coordinator struct {
	store    domain.Store
	catalog  domain.ProductCatalog
	staff    domain.StaffDirectory
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewCoordinator создаёт рабочий экземпляр координатора.
func NewCoordinator(
	store domain.Store,
	catalog domain.ProductCatalog,
	staff domain.StaffDirectory,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "coordinator")
	}
	return &Coordinator{
		store:    store,
		catalog:  catalog,
		staff:    staff,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
	}
}

// NewCoordinatorWithoutMetrics создаёт координатор без метрик (для тестов).
func NewCoordinatorWithoutMetrics(
	store domain.Store,
	catalog domain.ProductCatalog,
	staff domain.StaffDirectory,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Coordinator {
	c := NewCoordinator(store, catalog, staff, timeline, logger)
	c.metrics = nil
	return c
}

// CustomerInput — данные клиента, пришедшие с кассы.
type CustomerInput struct {
	FullName    string
	PhoneNumber string
	Notes       string
}

// LineInput — позиция заказа, как её передал вызывающий.
// Цена не сверяется с каталогом: касса отвечает за биллинг.
type LineInput struct {
	ProductID string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// CreateOrderInput описывает запрос на создание заказа.
type CreateOrderInput struct {
	Customer      CustomerInput
	StaffID       string
	PaymentMethod string
	Notes         string
	TotalAmount   decimal.Decimal
	Lines         []LineInput
}

// UpdateOrderInput описывает запрос на полную замену содержимого заказа.
// Сотрудник, оформивший заказ, при обновлении не меняется.
type UpdateOrderInput struct {
	Customer      CustomerInput
	PaymentMethod string
	Notes         string
	TotalAmount   decimal.Decimal
	Lines         []LineInput
}

// MutationResult возвращается из операций создания и обновления.
type MutationResult struct {
	OrderID     string
	OrderNumber string
}

// CreateOrder создаёт заказ: upsert клиента по телефону, выдача номера,
// резерв склада по каждой позиции, запись шапки и позиций, сдвиг
// агрегатов клиента и событие order.created — всё одной транзакцией.
func (c *Coordinator) CreateOrder(ctx context.Context, input CreateOrderInput) (MutationResult, error) {
	if err := validateMutationInput(input.Customer, input.PaymentMethod, input.TotalAmount, input.Lines); err != nil {
		return MutationResult{}, err
	}

	start := time.Now()
	if c.metrics != nil {
		c.metrics.RecordMutationStarted()
	}
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordMutationFinished()
			c.metrics.RecordMutationDuration("create", time.Since(start))
		}
	}()

	var result MutationResult
	err := c.runWithRetry(ctx, "create", func(ctx context.Context, uow domain.UnitOfWork) error {
		customer, err := c.upsertCustomer(ctx, uow, input.Customer)
		if err != nil {
			return err
		}

		orderNumber, err := uow.Sequence().NextOrderNumber(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order := domain.Order{
			ID:            uuid.NewString(),
			OrderNumber:   orderNumber,
			CustomerID:    customer.ID,
			StaffID:       strings.TrimSpace(input.StaffID),
			TotalAmount:   input.TotalAmount,
			PaymentMethod: input.PaymentMethod,
			Status:        domain.OrderStatusCompleted,
			Notes:         input.Notes,
			CreatedAt:     now,
		}
		if err := uow.Orders().Insert(ctx, order); err != nil {
			return err
		}

		lines := buildLines(input.Lines)
		domain.SortLinesByProduct(lines)
		for _, line := range lines {
			if err := uow.Inventory().Reserve(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			if err := uow.Orders().InsertLine(ctx, order.ID, line); err != nil {
				return err
			}
		}

		if err := uow.Customers().ApplyDelta(ctx, customer.ID, input.TotalAmount, 1); err != nil {
			return err
		}

		if err := c.enqueueEvent(ctx, uow, "order.created", order.ID, map[string]interface{}{
			"order_number": order.OrderNumber,
			"customer_id":  customer.ID,
			"total_amount": input.TotalAmount.StringFixed(2),
			"ts":           now.Format(time.RFC3339Nano),
		}); err != nil {
			return err
		}

		result = MutationResult{OrderID: order.ID, OrderNumber: order.OrderNumber}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}

	c.recordTimeline(result.OrderID, domain.TimelineEventOrderCreated, "")
	if c.metrics != nil {
		c.metrics.RecordOrderCreated()
	}
	c.logger.WithFields(log.Fields{
		"order_id":     result.OrderID,
		"order_number": result.OrderNumber,
	}).Info("order created")

	return result, nil
}

// UpdateOrder полностью заменяет содержимое заказа. Старые резервы
// возвращаются на склад, старые агрегаты разворачиваются, после чего
// операция повторяет путь создания. Номер заказа и ссылка на
// сотрудника сохраняются.
func (c *Coordinator) UpdateOrder(ctx context.Context, orderID string, input UpdateOrderInput) (MutationResult, error) {
	if err := validateMutationInput(input.Customer, input.PaymentMethod, input.TotalAmount, input.Lines); err != nil {
		return MutationResult{}, err
	}

	start := time.Now()
	if c.metrics != nil {
		c.metrics.RecordMutationStarted()
	}
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordMutationFinished()
			c.metrics.RecordMutationDuration("update", time.Since(start))
		}
	}()

	var result MutationResult
	err := c.runWithRetry(ctx, "update", func(ctx context.Context, uow domain.UnitOfWork) error {
		existing, err := uow.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}

		// Разворот прежних эффектов: склад и агрегаты клиента.
		oldLines := append([]domain.OrderLine(nil), existing.Lines...)
		domain.SortLinesByProduct(oldLines)
		for _, line := range oldLines {
			if err := uow.Inventory().Release(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		if existing.CustomerID != "" {
			if err := uow.Customers().ApplyDelta(ctx, existing.CustomerID, existing.TotalAmount.Neg(), -1); err != nil {
				return err
			}
		}

		customer, err := c.upsertCustomer(ctx, uow, input.Customer)
		if err != nil {
			return err
		}

		updated := existing
		updated.CustomerID = customer.ID
		updated.TotalAmount = input.TotalAmount
		updated.PaymentMethod = input.PaymentMethod
		updated.Notes = input.Notes
		updated.Status = domain.OrderStatusCompleted
		if err := uow.Orders().UpdateHeader(ctx, updated); err != nil {
			return err
		}

		if err := uow.Orders().DeleteLines(ctx, orderID); err != nil {
			return err
		}
		newLines := buildLines(input.Lines)
		domain.SortLinesByProduct(newLines)
		for _, line := range newLines {
			if err := uow.Inventory().Reserve(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			if err := uow.Orders().InsertLine(ctx, orderID, line); err != nil {
				return err
			}
		}

		if err := uow.Customers().ApplyDelta(ctx, customer.ID, input.TotalAmount, 1); err != nil {
			return err
		}

		if err := c.enqueueEvent(ctx, uow, "order.updated", orderID, map[string]interface{}{
			"order_number": existing.OrderNumber,
			"customer_id":  customer.ID,
			"total_amount": input.TotalAmount.StringFixed(2),
			"ts":           time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return err
		}

		result = MutationResult{OrderID: orderID, OrderNumber: existing.OrderNumber}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}

	c.recordTimeline(orderID, domain.TimelineEventOrderUpdated, "")
	if c.metrics != nil {
		c.metrics.RecordOrderUpdated()
	}
	c.logger.WithFields(log.Fields{
		"order_id":     result.OrderID,
		"order_number": result.OrderNumber,
	}).Info("order updated")

	return result, nil
}

// DeleteOrder удаляет заказ, возвращая резервы на склад и разворачивая
// агрегаты клиента в той же транзакции.
func (c *Coordinator) DeleteOrder(ctx context.Context, orderID string) error {
	start := time.Now()
	if c.metrics != nil {
		c.metrics.RecordMutationStarted()
	}
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordMutationFinished()
			c.metrics.RecordMutationDuration("delete", time.Since(start))
		}
	}()

	err := c.runWithRetry(ctx, "delete", func(ctx context.Context, uow domain.UnitOfWork) error {
		existing, err := uow.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}

		lines := append([]domain.OrderLine(nil), existing.Lines...)
		domain.SortLinesByProduct(lines)
		for _, line := range lines {
			if err := uow.Inventory().Release(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		if existing.CustomerID != "" {
			if err := uow.Customers().ApplyDelta(ctx, existing.CustomerID, existing.TotalAmount.Neg(), -1); err != nil {
				return err
			}
		}

		if err := uow.Orders().DeleteLines(ctx, orderID); err != nil {
			return err
		}
		if err := uow.Orders().Delete(ctx, orderID); err != nil {
			return err
		}

		return c.enqueueEvent(ctx, uow, "order.deleted", orderID, map[string]interface{}{
			"order_number": existing.OrderNumber,
			"customer_id":  existing.CustomerID,
			"ts":           time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	if err != nil {
		return err
	}

	c.recordTimeline(orderID, domain.TimelineEventOrderDeleted, "")
	if c.metrics != nil {
		c.metrics.RecordOrderDeleted()
	}
	c.logger.WithField("order_id", orderID).Info("order deleted")

	return nil
}

// upsertCustomer находит клиента по телефону или создаёт нового с
// нулевыми агрегатами. Непустое новое имя обновляет существующую запись.
func (c *Coordinator) upsertCustomer(ctx context.Context, uow domain.UnitOfWork, input CustomerInput) (domain.Customer, error) {
	phone := strings.TrimSpace(input.PhoneNumber)
	if phone == "" {
		return domain.Customer{}, domain.ErrPhoneRequired
	}

	customer, err := uow.Customers().GetByPhone(ctx, phone)
	if err == nil {
		if name := strings.TrimSpace(input.FullName); name != "" && name != customer.FullName {
			if err := uow.Customers().UpdateName(ctx, customer.ID, name); err != nil {
				return domain.Customer{}, err
			}
			customer.FullName = name
		}
		return customer, nil
	}
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Customer{}, err
	}

	customer = domain.Customer{
		ID:          uuid.NewString(),
		FullName:    strings.TrimSpace(input.FullName),
		PhoneNumber: phone,
		Notes:       input.Notes,
		TotalSpent:  decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uow.Customers().Create(ctx, customer); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

// runWithRetry выполняет fn в транзакции и повторяет её ограниченное
// число раз при конфликтах уникальности (гонка по номеру или телефону).
func (c *Coordinator) runWithRetry(ctx context.Context, operation string, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = c.store.WithinTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !domain.IsConflict(err) || attempt == maxConflictRetries-1 {
			break
		}

		if c.metrics != nil {
			c.metrics.RecordConflictRetry()
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
		}).Warn("conflict detected, retrying")

		delay := conflictBackoffBase * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if c.metrics != nil {
		switch {
		case domain.IsInsufficientStock(err):
			c.metrics.RecordInsufficientStock()
		case domain.IsBusy(err):
			c.metrics.RecordBusyRejection()
		}
	}
	return err
}

func (c *Coordinator) enqueueEvent(ctx context.Context, uow domain.UnitOfWork, eventType, orderID string, payload map[string]interface{}) error {
	payload["order_id"] = orderID
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := uow.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       data,
	}); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordOutboxEvent()
	}
	return nil
}

// recordTimeline пишет событие аудита после успешного коммита.
// Ошибка аудита не отменяет уже зафиксированную мутацию.
func (c *Coordinator) recordTimeline(orderID, eventType, reason string) {
	if c.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := c.timeline.Append(event); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordTimelineEvent()
	}
}

func buildLines(inputs []LineInput) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(inputs))
	for _, in := range inputs {
		qty := decimal.NewFromInt32(in.Quantity)
		lines = append(lines, domain.OrderLine{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineTotal: in.UnitPrice.Mul(qty),
		})
	}
	return lines
}

func validateMutationInput(customer CustomerInput, paymentMethod string, total decimal.Decimal, lines []LineInput) error {
	var errs []error

	if strings.TrimSpace(customer.PhoneNumber) == "" {
		errs = append(errs, domain.ErrPhoneRequired)
	}
	if strings.TrimSpace(paymentMethod) == "" {
		errs = append(errs, domain.ErrPaymentMethodRequired)
	}
	if len(lines) == 0 {
		errs = append(errs, domain.ErrLinesRequired)
	}
	if total.IsNegative() {
		errs = append(errs, domain.ErrTotalNegative)
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			errs = append(errs, domain.ErrLineProductRequired)
		}
		if line.Quantity <= 0 {
			errs = append(errs, domain.ErrLineQtyInvalid)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, domain.ErrLinePriceInvalid)
		}
	}

	return errors.Join(errs...)
}
