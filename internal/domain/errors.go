package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего номера телефона клиента.
	ErrPhoneRequired = errors.New("customer phone_number is required")
	// Ошибка отсутствующего способа оплаты.
	ErrPaymentMethodRequired = errors.New("payment_method is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrLineQtyInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line unit price must be non-negative")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("total_amount must be non-negative")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrLineProductRequired = errors.New("line product_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrStaffNotFound возвращается, если сотрудник не найден.
	ErrStaffNotFound = errors.New("staff member not found")
	// ErrInventoryRecordNotFound — у товара нет складской записи, резерв невозможен.
	ErrInventoryRecordNotFound = errors.New("inventory record not found")

	// ErrOrderNumberConflict — выданный номер заказа уже занят.
	// При корректном аллокаторе не возникает; координатор повторяет транзакцию.
	ErrOrderNumberConflict = errors.New("order number conflict")
	// ErrPhoneConflict — гонка при создании клиента с тем же телефоном.
	ErrPhoneConflict = errors.New("customer phone conflict")

	// ErrTxBusy — не удалось получить блокировку за отведённое время; вызов можно повторить.
	ErrTxBusy = errors.New("transaction busy: lock wait timed out")
	// ErrTxAborted — транзакция откатилась из-за непредвиденной ошибки; ничего не зафиксировано.
	ErrTxAborted = errors.New("transaction aborted")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован другим запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency request hash mismatch")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError возвращается, когда запрошенное количество превышает остаток.
// Состояние склада при этом не меняется.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// IsNotFound объединяет все ошибки отсутствия сущностей.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrInventoryRecordNotFound)
}

// IsValidation объединяет ошибки некорректного входа, при которых
// мутация даже не начиналась.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPhoneRequired) ||
		errors.Is(err, ErrPaymentMethodRequired) ||
		errors.Is(err, ErrLinesRequired) ||
		errors.Is(err, ErrLineQtyInvalid) ||
		errors.Is(err, ErrLinePriceInvalid) ||
		errors.Is(err, ErrTotalNegative) ||
		errors.Is(err, ErrLineProductRequired)
}

// IsConflict проверяет, является ли ошибка конфликтом уникальности.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrderNumberConflict) || errors.Is(err, ErrPhoneConflict)
}

// IsBusy проверяет, упёрся ли вызов в таймаут ожидания блокировки.
func IsBusy(err error) bool {
	return errors.Is(err, ErrTxBusy)
}
