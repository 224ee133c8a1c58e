package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

// unitOfWork связывает репозитории с открытой SQL-транзакцией.
// Все изменения в рамках одного WithinTx либо коммитятся вместе,
// либо откатываются вместе.
type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) Orders() domain.OrderRepository       { return &orderRepository{tx: u.tx} }
func (u *unitOfWork) Customers() domain.CustomerRepository { return &customerRepository{tx: u.tx} }
func (u *unitOfWork) Inventory() domain.InventoryLedger    { return &inventoryLedger{tx: u.tx} }
func (u *unitOfWork) Sequence() domain.SequenceAllocator   { return &sequenceAllocator{tx: u.tx} }
func (u *unitOfWork) Outbox() domain.OutboxEnqueuer        { return &outboxEnqueuer{tx: u.tx} }

type orderRepository struct {
	tx *sql.Tx
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, customer_id, staff_id, total_amount,
			payment_method, status, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID, order.OrderNumber, nullIfEmpty(order.CustomerID), nullIfEmpty(order.StaffID),
		order.TotalAmount, order.PaymentMethod, string(order.Status), order.Notes, order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderNumberConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		order      domain.Order
		status     string
		customerID sql.NullString
		staffID    sql.NullString
	)

	err := r.tx.QueryRowContext(ctx, `
		SELECT id, order_number, customer_id, staff_id, total_amount,
		       payment_method, status, notes, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.OrderNumber, &customerID, &staffID, &order.TotalAmount,
		&order.PaymentMethod, &status, &order.Notes, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.CustomerID = customerID.String
	order.StaffID = staffID.String

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

func (r *orderRepository) UpdateHeader(ctx context.Context, order domain.Order) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $1,
		    staff_id = $2,
		    total_amount = $3,
		    payment_method = $4,
		    status = $5,
		    notes = $6
		WHERE id = $7
	`,
		nullIfEmpty(order.CustomerID), nullIfEmpty(order.StaffID), order.TotalAmount,
		order.PaymentMethod, string(order.Status), order.Notes, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order header: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) InsertLine(ctx context.Context, orderID string, line domain.OrderLine) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO order_items (
			id, order_id, product_id, quantity, unit_price, line_total
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		line.ID, orderID, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (r *orderRepository) DeleteLines(ctx context.Context, orderID string) error {
	if _, err := r.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, order_number, customer_id, staff_id, total_amount,
		       payment_method, status, notes, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var (
			order      domain.Order
			status     string
			customerID sql.NullString
			staffID    sql.NullString
		)
		if err := rows.Scan(
			&order.ID, &order.OrderNumber, &customerID, &staffID, &order.TotalAmount,
			&order.PaymentMethod, &status, &order.Notes, &order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		order.CustomerID = customerID.String
		order.StaffID = staffID.String
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		lines, err := r.loadLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, product_id, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return lines, nil
}

type customerRepository struct {
	tx *sql.Tx
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	return r.scanOne(ctx, `
		SELECT id, full_name, phone_number, notes, total_orders, total_spent, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id)
}

func (r *customerRepository) GetByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	return r.scanOne(ctx, `
		SELECT id, full_name, phone_number, notes, total_orders, total_spent, created_at, updated_at
		FROM customers
		WHERE phone_number = $1
	`, phone)
}

func (r *customerRepository) scanOne(ctx context.Context, query string, arg any) (domain.Customer, error) {
	var customer domain.Customer
	err := r.tx.QueryRowContext(ctx, query, arg).Scan(
		&customer.ID, &customer.FullName, &customer.PhoneNumber, &customer.Notes,
		&customer.TotalOrders, &customer.TotalSpent, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO customers (
			id, full_name, phone_number, notes, total_orders, total_spent, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		customer.ID, customer.FullName, customer.PhoneNumber, customer.Notes,
		customer.TotalOrders, customer.TotalSpent, customer.CreatedAt, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPhoneConflict
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *customerRepository) UpdateName(ctx context.Context, id, fullName string) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE customers
		SET full_name = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, fullName, id)
	if err != nil {
		return fmt.Errorf("update customer name: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// ApplyDelta двигает агрегаты клиента. GREATEST не даёт счётчикам уйти
// в минус при повторной компенсации.
func (r *customerRepository) ApplyDelta(ctx context.Context, id string, amountDelta decimal.Decimal, countDelta int) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE customers
		SET total_spent = GREATEST(total_spent + $1, 0),
		    total_orders = GREATEST(total_orders + $2, 0),
		    updated_at = NOW()
		WHERE id = $3
	`, amountDelta, countDelta, id)
	if err != nil {
		return fmt.Errorf("apply customer delta: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

type inventoryLedger struct {
	tx *sql.Tx
}

// Reserve списывает qty со склада под строковой блокировкой.
// FOR UPDATE сериализует конкурирующие заказы на один товар.
func (l *inventoryLedger) Reserve(ctx context.Context, productID string, qty int32) error {
	var available int32
	err := l.tx.QueryRowContext(ctx, `
		SELECT stock_quantity
		FROM inventory
		WHERE product_id = $1
		FOR UPDATE
	`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInventoryRecordNotFound
		}
		return fmt.Errorf("lock inventory row: %w", err)
	}

	if available < qty {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}

	if _, err := l.tx.ExecContext(ctx, `
		UPDATE inventory
		SET stock_quantity = stock_quantity - $1,
		    last_updated = NOW()
		WHERE product_id = $2
	`, qty, productID); err != nil {
		return fmt.Errorf("reserve inventory: %w", err)
	}
	return nil
}

func (l *inventoryLedger) Release(ctx context.Context, productID string, qty int32) error {
	res, err := l.tx.ExecContext(ctx, `
		UPDATE inventory
		SET stock_quantity = stock_quantity + $1,
		    last_updated = NOW()
		WHERE product_id = $2
	`, qty, productID)
	if err != nil {
		return fmt.Errorf("release inventory: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrInventoryRecordNotFound
	}
	return nil
}

func (l *inventoryLedger) Get(ctx context.Context, productID string) (domain.InventoryRecord, error) {
	var record domain.InventoryRecord
	err := l.tx.QueryRowContext(ctx, `
		SELECT id, product_id, stock_quantity, low_stock_threshold, last_updated
		FROM inventory
		WHERE product_id = $1
	`, productID).Scan(
		&record.ID, &record.ProductID, &record.StockQuantity,
		&record.LowStockThreshold, &record.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryRecordNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory record: %w", err)
	}
	return record, nil
}

// sequenceAllocator — атомарный счётчик номеров заказов поверх одной
// строки. UPDATE ... RETURNING исключает гонки без отдельного SELECT.
type sequenceAllocator struct {
	tx *sql.Tx
}

func (a *sequenceAllocator) NextOrderNumber(ctx context.Context) (string, error) {
	var next int64
	err := a.tx.QueryRowContext(ctx, `
		UPDATE order_sequence
		SET last_value = last_value + 1
		WHERE id = 1
		RETURNING last_value
	`).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}
	return domain.FormatOrderNumber(next), nil
}

type outboxEnqueuer struct {
	tx *sql.Tx
}

func (e *outboxEnqueuer) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := e.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
	)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ domain.UnitOfWork         = (*unitOfWork)(nil)
	_ domain.OrderRepository    = (*orderRepository)(nil)
	_ domain.CustomerRepository = (*customerRepository)(nil)
	_ domain.InventoryLedger    = (*inventoryLedger)(nil)
	_ domain.SequenceAllocator  = (*sequenceAllocator)(nil)
	_ domain.OutboxEnqueuer     = (*outboxEnqueuer)(nil)
)
