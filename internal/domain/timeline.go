package domain

import "time"

// Типы событий жизненного цикла заказа.
const (
	TimelineEventOrderCreated = "OrderCreated"
	TimelineEventOrderUpdated = "OrderUpdated"
	TimelineEventOrderDeleted = "OrderDeleted"
)

// TimelineEvent — запись аудита по заказу.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
