package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OrderNumberPrefix — префикс человекочитаемых номеров заказов.
const OrderNumberPrefix = "BB"

// FormatOrderNumber форматирует порядковое значение счётчика в номер заказа
// вида BB007. Ширина дополняется нулями до трёх знаков, большие значения
// печатаются как есть.
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("%s%03d", OrderNumberPrefix, n)
}

// OrderStatus хранится в заказе, но ядро не управляет переходами:
// заказ либо существует со статусом completed, либо удалён.
type OrderStatus string

const (
	// OrderStatusCompleted — единственный статус, который выставляет это ядро.
	OrderStatusCompleted OrderStatus = "completed"
)

// Способы оплаты, которые принимает касса.
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"
)

// OrderLine представляет одну позицию заказа.
// Жизненный цикл позиции привязан к заказу: создаётся и удаляется
// только вместе с мутацией заказа.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — ссылка на товар каталога.
	ProductID string
	// Quantity — количество единиц товара.
	Quantity int32
	// UnitPrice — цена за единицу, как её передал вызывающий.
	UnitPrice decimal.Decimal
	// LineTotal — сумма позиции (quantity * unit_price).
	LineTotal decimal.Decimal
}

// Order агрегирует шапку заказа и его позиции.
// После создания заказ принадлежит координатору и мутируется только
// через его операции.
type Order struct {
	ID            string
	OrderNumber   string // последовательный номер вида BB007, неизменен после выдачи
	CustomerID    string
	StaffID       string // опционально, пустая строка допустима
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Status        OrderStatus
	Notes         string
	Lines         []OrderLine
	CreatedAt     time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
// Соответствие TotalAmount сумме позиций здесь сознательно не проверяется:
// ядро хранит сумму, заявленную вызывающим.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerNotFound)
	}
	if o.PaymentMethod == "" {
		errs = append(errs, ErrPaymentMethodRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrTotalNegative)
	}

	for _, line := range o.Lines {
		if line.ProductID == "" {
			errs = append(errs, ErrLineProductRequired)
		}
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, ErrLinePriceInvalid)
		}
	}

	return errs
}

// LinesSum возвращает сумму всех позиций заказа.
func (o *Order) LinesSum() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range o.Lines {
		sum = sum.Add(line.LineTotal)
	}
	return sum
}

// SortLinesByProduct упорядочивает позиции по возрастанию product_id.
// Канонический порядок захвата складских блокировок защищает от
// deadlock между конкурирующими заказами с общими товарами.
func SortLinesByProduct(lines []OrderLine) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
}
