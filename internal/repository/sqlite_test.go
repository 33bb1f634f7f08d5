package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testReceipt(number string, at time.Time, grandTotal string) model.Receipt {
	return model.Receipt{
		ReceiptNumber: number,
		ReceiptDate:   format.NormalizeTime(at),
		Items: []model.ReceiptItem{
			{Name: "Pen", Quantity: 2, Rate: dec("10.00")},
		},
		Discount:    dec("0"),
		PaymentMode: model.PaymentModeCash,
		Subtotal:    dec(grandTotal),
		GrandTotal:  dec(grandTotal),
	}
}

func TestSQLiteRepository_AppendAndList(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 16, 10, 0, 0, 123456000, time.UTC)

	oldest := testReceipt("AT-000001", base, "65")
	newest := testReceipt("AT-000003", base.Add(2*time.Hour), "0")
	middle := testReceipt("AT-000002", base.Add(time.Hour), "120")

	ids := make([]string, 0, 3)
	for _, rc := range []model.Receipt{oldest, newest, middle} {
		id, err := repo.AppendReceipt(ctx, rc)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}
	assert.NotEqual(t, ids[0], ids[1])

	list, err := repo.ListReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "AT-000003", list[0].ReceiptNumber)
	assert.Equal(t, "AT-000002", list[1].ReceiptNumber)
	assert.Equal(t, "AT-000001", list[2].ReceiptNumber)
	assert.Equal(t, ids[0], list[2].ID)

	got := list[2]
	assert.True(t, got.GrandTotal.Equal(dec("65")))
	assert.True(t, got.Discount.IsZero())
	assert.Equal(t, model.PaymentModeCash, got.PaymentMode)
	assert.True(t, base.Truncate(time.Millisecond).Equal(got.ReceiptDate), "receipt date = %s", got.ReceiptDate)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Pen", got.Items[0].Name)
	assert.Equal(t, int64(2), got.Items[0].Quantity)
	assert.True(t, got.Items[0].Rate.Equal(dec("10")))
}

func TestSQLiteRepository_ListEmpty(t *testing.T) {
	repo := newSQLiteRepo(t)

	list, err := repo.ListReceipts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteRepository_AppendAfterClose(t *testing.T) {
	repo := newSQLiteRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.AppendReceipt(context.Background(), testReceipt("AT-1", time.Now(), "1"))
	assert.Error(t, err)
}

func TestItemsCodec(t *testing.T) {
	data, err := encodeItems(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	items, err := decodeItems([]byte(`[{"name":"Tea","quantity":3,"rate":"12.5"},{"name":"Cake","quantity":1,"rate":40}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Rate.Equal(dec("12.5")))
	assert.True(t, items[1].Rate.Equal(dec("40")))

	_, err = decodeItems([]byte(`{`))
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(errors.New("syntax error")))
	assert.True(t, isTransient(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))
	assert.True(t, isTransient(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.False(t, isTransient(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
}
