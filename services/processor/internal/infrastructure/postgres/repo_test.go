package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/application/processing"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/domain"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/infrastructure/postgres"
)

func setupRepo(t *testing.T) (*postgres.Repo, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.EnsureSchema(context.Background(), pool))
	_, err = pool.Exec(context.Background(), "TRUNCATE TABLE order_processing")
	require.NoError(t, err)

	return postgres.New(pool), pool
}

func claim(t *testing.T, repo *postgres.Repo, orderID uuid.UUID) {
	t.Helper()
	err := repo.WithTx(context.Background(), func(tr processing.TxRepo) error {
		if _, err := tr.Create(context.Background(), orderID); err != nil {
			return err
		}
		return tr.MarkProcessing(context.Background(), orderID)
	})
	require.NoError(t, err)
}

func fetch(t *testing.T, repo *postgres.Repo, orderID uuid.UUID) *domain.OrderProcessing {
	t.Helper()
	var got *domain.OrderProcessing
	err := repo.WithTx(context.Background(), func(tr processing.TxRepo) error {
		p, err := tr.GetByOrderID(context.Background(), orderID)
		got = p
		return err
	})
	require.NoError(t, err)
	return got
}

func TestRepo_ClaimLifecycle(t *testing.T) {
	repo, _ := setupRepo(t)
	orderID := uuid.New()

	claim(t, repo, orderID)

	got := fetch(t, repo, orderID)
	require.NotNil(t, got)
	assert.Equal(t, orderID, got.OrderID)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.ProcessedAt)
}

func TestRepo_GetByOrderID_MissingReturnsNil(t *testing.T) {
	repo, _ := setupRepo(t)

	got := fetch(t, repo, uuid.New())
	assert.Nil(t, got)
}

func TestRepo_Create_DuplicateOrderIDRejected(t *testing.T) {
	repo, _ := setupRepo(t)
	orderID := uuid.New()
	claim(t, repo, orderID)

	err := repo.WithTx(context.Background(), func(tr processing.TxRepo) error {
		_, err := tr.Create(context.Background(), orderID)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRepository)
}

func TestRepo_MarkTerminal(t *testing.T) {
	repo, _ := setupRepo(t)
	orderID := uuid.New()
	claim(t, repo, orderID)

	msg := "Simulated processing failure"
	processedAt := time.Now().UTC().Truncate(time.Millisecond)
	err := repo.WithTx(context.Background(), func(tr processing.TxRepo) error {
		return tr.MarkTerminal(context.Background(), orderID, domain.StatusFailed, &msg, processedAt)
	})
	require.NoError(t, err)

	got := fetch(t, repo, orderID)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	require.NotNil(t, got.ProcessedAt)
	assert.WithinDuration(t, processedAt, *got.ProcessedAt, time.Second)
}

func TestRepo_MarkTerminal_MissingRow(t *testing.T) {
	repo, _ := setupRepo(t)

	err := repo.WithTx(context.Background(), func(tr processing.TxRepo) error {
		return tr.MarkTerminal(context.Background(), uuid.New(), domain.StatusSuccess, nil, time.Now().UTC())
	})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestRepo_ResetStuck(t *testing.T) {
	repo, pool := setupRepo(t)

	stuck := uuid.New()
	fresh := uuid.New()
	done := uuid.New()
	claim(t, repo, stuck)
	claim(t, repo, fresh)
	claim(t, repo, done)

	err := repo.WithTx(context.Background(), func(tr processing.TxRepo) error {
		return tr.MarkTerminal(context.Background(), done, domain.StatusSuccess, nil, time.Now().UTC())
	})
	require.NoError(t, err)

	// backdate the stuck and the terminal rows past the grace period
	for _, id := range []uuid.UUID{stuck, done} {
		_, err = pool.Exec(context.Background(),
			"UPDATE order_processing SET updated_at = now() - interval '1 hour' WHERE order_id = $1", id)
		require.NoError(t, err)
	}

	ids, err := repo.ResetStuck(context.Background(), time.Now().UTC().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, stuck, ids[0])

	assert.Equal(t, domain.StatusPending, fetch(t, repo, stuck).Status)
	assert.Equal(t, domain.StatusProcessing, fetch(t, repo, fresh).Status)
	assert.Equal(t, domain.StatusSuccess, fetch(t, repo, done).Status)
}
