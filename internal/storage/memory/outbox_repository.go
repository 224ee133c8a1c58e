package memory

import (
	"context"
	"sort"
	"time"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxView — сторона воркера поверх общего состояния хранилища.
type outboxView struct {
	store *Store
}

// Outbox возвращает worker-интерфейс transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxView{store: s}
}

// PullPending возвращает до limit сообщений со статусом pending, старые первыми.
func (v *outboxView) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if err := v.store.acquire(context.Background()); err != nil {
		return nil, err
	}
	defer v.store.release()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]*outboxRecord, 0, limit)
	for _, rec := range v.store.st.outbox {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	sortOutboxByCreated(pending)

	result := make([]domain.OutboxMessage, 0, limit)
	for _, rec := range pending {
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats считает backlog для метрик воркера.
func (v *outboxView) Stats() (domain.OutboxStats, error) {
	if err := v.store.acquire(context.Background()); err != nil {
		return domain.OutboxStats{}, err
	}
	defer v.store.release()

	stats := domain.OutboxStats{}
	for _, rec := range v.store.st.outbox {
		if rec.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (v *outboxView) MarkSent(id string) error {
	return v.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (v *outboxView) MarkFailed(id string) error {
	return v.mark(id, outboxStatusFailed)
}

func (v *outboxView) mark(id, status string) error {
	if err := v.store.acquire(context.Background()); err != nil {
		return err
	}
	defer v.store.release()

	record, ok := v.store.st.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

func sortOutboxByCreated(records []*outboxRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].createdAt.Before(records[j].createdAt)
	})
}

var _ domain.OutboxRepository = (*outboxView)(nil)
