package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store выдаёт явную транзакционную границу.
// Каждая мутация заказа выполняется целиком внутри одного WithinTx:
// либо все записи фиксируются, либо ни одна из них не видна снаружи.
type Store interface {
	// WithinTx открывает единицу работы, вызывает fn и коммитит при nil-ошибке.
	// Любая ошибка из fn приводит к полному откату и возвращается вызывающему.
	// Ожидание блокировок ограничено: при таймауте возвращается ErrTxBusy.
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// UnitOfWork — набор репозиториев, привязанных к одной открытой транзакции.
// Вне WithinTx использовать нельзя.
type UnitOfWork interface {
	Orders() OrderRepository
	Customers() CustomerRepository
	Inventory() InventoryLedger
	Sequence() SequenceAllocator
	Outbox() OutboxEnqueuer
}

// OrderRepository описывает требования к хранилищу заказов.
// Позиции управляются отдельно от шапки: координатор удаляет и
// вставляет их явно при каждой мутации.
type OrderRepository interface {
	// Insert сохраняет шапку нового заказа (без позиций).
	Insert(ctx context.Context, order Order) error
	// Get возвращает заказ вместе с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// UpdateHeader перезаписывает поля шапки; номер заказа и created_at не меняются.
	UpdateHeader(ctx context.Context, order Order) error
	// InsertLine добавляет позицию к заказу.
	InsertLine(ctx context.Context, orderID string, line OrderLine) error
	// DeleteLines удаляет все позиции заказа.
	DeleteLines(ctx context.Context, orderID string) error
	// Delete удаляет шапку заказа (позиции должны быть удалены раньше).
	Delete(ctx context.Context, id string) error
	// ListRecent возвращает последние заказы, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]Order, error)
}

// CustomerRepository описывает хранилище клиентов.
type CustomerRepository interface {
	// Get возвращает клиента по идентификатору или ErrCustomerNotFound.
	Get(ctx context.Context, id string) (Customer, error)
	// GetByPhone ищет клиента по натуральному ключу или возвращает ErrCustomerNotFound.
	GetByPhone(ctx context.Context, phone string) (Customer, error)
	// Create сохраняет нового клиента; гонка по телефону даёт ErrPhoneConflict.
	Create(ctx context.Context, customer Customer) error
	// UpdateName обновляет имя существующего клиента.
	UpdateName(ctx context.Context, id, fullName string) error
	// ApplyDelta атомарно сдвигает агрегаты клиента, ограничивая их снизу нулём.
	ApplyDelta(ctx context.Context, id string, amountDelta decimal.Decimal, countDelta int) error
}

// InventoryLedger — атомарный резерв и возврат остатка по товару.
// Обе операции выполняются под эксклюзивной блокировкой складской строки.
type InventoryLedger interface {
	// Reserve списывает qty с остатка; при нехватке возвращает
	// *InsufficientStockError и не меняет состояние.
	Reserve(ctx context.Context, productID string, qty int32) error
	// Release возвращает qty на остаток (разворот предыдущего резерва).
	Release(ctx context.Context, productID string, qty int32) error
	// Get возвращает складскую запись или ErrInventoryRecordNotFound.
	Get(ctx context.Context, productID string) (InventoryRecord, error)
}

// SequenceAllocator выдаёт следующий последовательный номер заказа.
// Гарантия: каждый выданный номер уникален глобально, при любых
// интерливингах конкурирующих вызовов.
type SequenceAllocator interface {
	NextOrderNumber(ctx context.Context) (string, error)
}

// OutboxEnqueuer кладёт событие в transactional outbox той же транзакцией,
// что и мутация заказа.
type OutboxEnqueuer interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}
