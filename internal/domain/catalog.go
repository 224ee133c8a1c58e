package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductInfo — витринные данные товара из каталога.
// Цена используется только для отображения: в расчётах участвует
// цена, переданная вызывающим вместе с позицией.
type ProductInfo struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	ImageURL string
}

// StaffInfo — данные сотрудника из справочника, только для отображения.
type StaffInfo struct {
	ID       string
	FullName string
}

// ProductCatalog — внешний каталог товаров (read-only коллаборатор).
type ProductCatalog interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (ProductInfo, error)
}

// StaffDirectory — внешний справочник сотрудников (read-only коллаборатор).
type StaffDirectory interface {
	// GetStaff возвращает сотрудника или ErrStaffNotFound.
	GetStaff(ctx context.Context, id string) (StaffInfo, error)
}
