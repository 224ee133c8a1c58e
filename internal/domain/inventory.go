package domain

import "time"

// InventoryRecord описывает складской остаток одного товара.
// Инвариант stock_quantity >= 0 поддерживается леджером: остаток
// меняется только под эксклюзивной блокировкой строки.
type InventoryRecord struct {
	ID        string
	ProductID string
	// StockQuantity — доступный остаток; никогда не уходит в минус.
	StockQuantity int32
	// LowStockThreshold хранится для внешней отчётности, ядро его не интерпретирует.
	LowStockThreshold int32
	LastUpdated       time.Time
}

// Validate проверяет инварианты складской записи.
func (r *InventoryRecord) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrLineProductRequired)
	}
	if r.StockQuantity < 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}

	return errs
}
