package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer хранит профиль клиента и накопительную статистику.
// Телефон — натуральный ключ: клиент создаётся при первом заказе
// с нового номера. Агрегаты мутируются только вместе с заказом,
// в той же транзакции.
type Customer struct {
	ID          string
	FullName    string
	PhoneNumber string
	Notes       string
	TotalOrders int
	TotalSpent  decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ApplyOrderDelta применяет знаковую дельту к счётчику заказов и сумме трат.
// Оба агрегата ограничены снизу нулём: компенсирующие развороты,
// пришедшие не по порядку, не должны уводить статистику в минус.
func (c *Customer) ApplyOrderDelta(amountDelta decimal.Decimal, countDelta int) {
	c.TotalOrders += countDelta
	if c.TotalOrders < 0 {
		c.TotalOrders = 0
	}

	c.TotalSpent = c.TotalSpent.Add(amountDelta)
	if c.TotalSpent.IsNegative() {
		c.TotalSpent = decimal.Zero
	}
}

// Validate проверяет, корректно ли заполнены ключевые поля клиента.
func (c *Customer) Validate() []error {
	var errs []error

	if c.PhoneNumber == "" {
		errs = append(errs, ErrPhoneRequired)
	}
	if c.TotalOrders < 0 || c.TotalSpent.IsNegative() {
		errs = append(errs, ErrTotalNegative)
	}

	return errs
}
