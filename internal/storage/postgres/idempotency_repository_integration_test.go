package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

func TestIdempotencyLifecycleIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)

	record, err := repo.CreateProcessing("key-1", "hash-1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, record.Status)

	_, err = repo.CreateProcessing("key-1", "hash-1", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	_, err = repo.CreateProcessing("key-1", "other-hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone("key-1", []byte(`{"id":"order-1"}`), 201))

	stored, err := repo.Get("key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, stored.Status)
	assert.Equal(t, 201, stored.HTTPStatus)
	assert.Equal(t, `{"id":"order-1"}`, string(stored.ResponseBody))
}

func TestIdempotencyDeleteExpiredIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)
	now := time.Now().UTC()

	_, err := repo.CreateProcessing("stale", "h", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateProcessing("fresh", "h", now.Add(time.Hour))
	require.NoError(t, err)

	deleted, err := repo.DeleteExpired(now, 10)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, err = repo.Get("stale")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	_, err = repo.Get("fresh")
	require.NoError(t, err)
}
