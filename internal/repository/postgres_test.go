package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	r := &PostgresRepository{retryBase: time.Millisecond}

	calls := 0
	err := r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	r := &PostgresRepository{retryBase: time.Millisecond}
	permanent := errors.New("relation does not exist")

	calls := 0
	err := r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	r := &PostgresRepository{retryBase: time.Millisecond}

	calls := 0
	err := r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("read: connection reset by peer")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestPostgresRepository_AppendAndList(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	_, err = repo.pool.Exec(ctx, `TRUNCATE receipts`)
	require.NoError(t, err)

	base := time.Date(2026, 10, 16, 10, 0, 0, 123456000, time.UTC)
	first := testReceipt("AT-000001", base, "65")
	second := testReceipt("AT-000002", base.Add(time.Minute), "120")

	id1, err := repo.AppendReceipt(ctx, first)
	require.NoError(t, err)
	_, err = repo.AppendReceipt(ctx, second)
	require.NoError(t, err)

	list, err := repo.ListReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "AT-000002", list[0].ReceiptNumber)
	assert.Equal(t, id1, list[1].ID)
	assert.True(t, list[1].ReceiptDate.Equal(first.ReceiptDate))
	assert.True(t, list[1].GrandTotal.Equal(dec("65")))
	require.Len(t, list[1].Items, 1)
	assert.True(t, list[1].Items[0].Rate.Equal(dec("10")))
}
