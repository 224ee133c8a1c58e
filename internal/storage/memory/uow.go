package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

// unitOfWork связывает репозитории с рабочей копией состояния.
type unitOfWork struct {
	st *state
}

func (u *unitOfWork) Orders() domain.OrderRepository       { return &orderRepository{st: u.st} }
func (u *unitOfWork) Customers() domain.CustomerRepository { return &customerRepository{st: u.st} }
func (u *unitOfWork) Inventory() domain.InventoryLedger    { return &inventoryLedger{st: u.st} }
func (u *unitOfWork) Sequence() domain.SequenceAllocator   { return &sequenceAllocator{st: u.st} }
func (u *unitOfWork) Outbox() domain.OutboxEnqueuer        { return &outboxEnqueuer{st: u.st} }

type orderRepository struct {
	st *state
}

func (r *orderRepository) Insert(_ context.Context, order domain.Order) error {
	if _, exists := r.st.orders[order.ID]; exists {
		return domain.ErrOrderNumberConflict
	}
	for _, existing := range r.st.orders {
		if existing.OrderNumber != "" && existing.OrderNumber == order.OrderNumber {
			return domain.ErrOrderNumberConflict
		}
	}
	order.Lines = nil
	r.st.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	order, ok := r.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (r *orderRepository) UpdateHeader(_ context.Context, order domain.Order) error {
	current, ok := r.st.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	// Номер заказа и момент создания неизменны.
	current.CustomerID = order.CustomerID
	current.StaffID = order.StaffID
	current.TotalAmount = order.TotalAmount
	current.PaymentMethod = order.PaymentMethod
	current.Status = order.Status
	current.Notes = order.Notes
	r.st.orders[order.ID] = current
	return nil
}

func (r *orderRepository) InsertLine(_ context.Context, orderID string, line domain.OrderLine) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Lines = append(order.Lines, line)
	r.st.orders[orderID] = order
	return nil
}

func (r *orderRepository) DeleteLines(_ context.Context, orderID string) error {
	order, ok := r.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Lines = nil
	r.st.orders[orderID] = order
	return nil
}

func (r *orderRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.st.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.st.orders, id)
	return nil
}

func (r *orderRepository) ListRecent(_ context.Context, limit int) ([]domain.Order, error) {
	result := make([]domain.Order, 0, len(r.st.orders))
	for _, order := range r.st.orders {
		result = append(result, copyOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type customerRepository struct {
	st *state
}

func (r *customerRepository) Get(_ context.Context, id string) (domain.Customer, error) {
	customer, ok := r.st.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepository) GetByPhone(_ context.Context, phone string) (domain.Customer, error) {
	for _, customer := range r.st.customers {
		if customer.PhoneNumber == phone {
			return customer, nil
		}
	}
	return domain.Customer{}, domain.ErrCustomerNotFound
}

func (r *customerRepository) Create(_ context.Context, customer domain.Customer) error {
	for _, existing := range r.st.customers {
		if existing.PhoneNumber == customer.PhoneNumber {
			return domain.ErrPhoneConflict
		}
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	r.st.customers[customer.ID] = customer
	return nil
}

func (r *customerRepository) UpdateName(_ context.Context, id, fullName string) error {
	customer, ok := r.st.customers[id]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	customer.FullName = fullName
	customer.UpdatedAt = time.Now().UTC()
	r.st.customers[id] = customer
	return nil
}

func (r *customerRepository) ApplyDelta(_ context.Context, id string, amountDelta decimal.Decimal, countDelta int) error {
	customer, ok := r.st.customers[id]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	customer.ApplyOrderDelta(amountDelta, countDelta)
	customer.UpdatedAt = time.Now().UTC()
	r.st.customers[id] = customer
	return nil
}

type inventoryLedger struct {
	st *state
}

func (l *inventoryLedger) Reserve(_ context.Context, productID string, qty int32) error {
	record, ok := l.st.inventory[productID]
	if !ok {
		return domain.ErrInventoryRecordNotFound
	}
	if record.StockQuantity < qty {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: record.StockQuantity,
		}
	}
	record.StockQuantity -= qty
	record.LastUpdated = time.Now().UTC()
	l.st.inventory[productID] = record
	return nil
}

func (l *inventoryLedger) Release(_ context.Context, productID string, qty int32) error {
	record, ok := l.st.inventory[productID]
	if !ok {
		return domain.ErrInventoryRecordNotFound
	}
	record.StockQuantity += qty
	record.LastUpdated = time.Now().UTC()
	l.st.inventory[productID] = record
	return nil
}

func (l *inventoryLedger) Get(_ context.Context, productID string) (domain.InventoryRecord, error) {
	record, ok := l.st.inventory[productID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryRecordNotFound
	}
	return record, nil
}

// sequenceAllocator — атомарный счётчик номеров заказов.
// Счётчик живёт в состоянии хранилища, поэтому откат транзакции
// возвращает и его значение.
type sequenceAllocator struct {
	st *state
}

func (a *sequenceAllocator) NextOrderNumber(_ context.Context) (string, error) {
	a.st.lastOrderNumber++
	return domain.FormatOrderNumber(a.st.lastOrderNumber), nil
}

type outboxEnqueuer struct {
	st *state
}

func (e *outboxEnqueuer) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.st.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

var (
	_ domain.UnitOfWork         = (*unitOfWork)(nil)
	_ domain.OrderRepository    = (*orderRepository)(nil)
	_ domain.CustomerRepository = (*customerRepository)(nil)
	_ domain.InventoryLedger    = (*inventoryLedger)(nil)
	_ domain.SequenceAllocator  = (*sequenceAllocator)(nil)
	_ domain.OutboxEnqueuer     = (*outboxEnqueuer)(nil)
)
