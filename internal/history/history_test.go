package history

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testFormatter() *format.Formatter {
	return format.New("₹", time.FixedZone("IST", 5*3600+1800))
}

func threeReceipts() []model.Receipt {
	base := time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC)
	return []model.Receipt{
		{
			ID: "c", ReceiptNumber: "AT-000003", ReceiptDate: base.Add(2 * time.Hour),
			Items:       []model.ReceiptItem{{Name: "Pen", Quantity: 2, Rate: dec("10")}, {Name: "Notebook", Quantity: 1, Rate: dec("50")}},
			PaymentMode: model.PaymentModeCash, GrandTotal: dec("65.00"),
		},
		{
			ID: "b", ReceiptNumber: "AT-000002", ReceiptDate: base.Add(time.Hour),
			Items:       []model.ReceiptItem{{Name: "Bag", Quantity: 1, Rate: dec("120")}},
			PaymentMode: model.PaymentModeUPI, GrandTotal: dec("120.00"),
		},
		{
			ID: "a", ReceiptNumber: "AT-000001", ReceiptDate: base,
			PaymentMode: model.PaymentModeCard, GrandTotal: dec("0.00"),
		},
	}
}

func TestSummarize_Scenario(t *testing.T) {
	v := Summarize(threeReceipts(), testFormatter())

	assert.True(t, v.TotalRevenue.Equal(dec("185.00")), "revenue = %s", v.TotalRevenue)
	assert.Equal(t, "₹185.00", v.TotalRevenueText)
	assert.Equal(t, 3, v.TotalBills)

	require.Len(t, v.Rows, 3)
	assert.Equal(t, Row{
		ID:          "c",
		Number:      "AT-000003",
		Date:        "16/10/2026",
		ItemCount:   2,
		PaymentMode: model.PaymentModeCash,
		GrandTotal:  "₹65.00",
	}, v.Rows[0])
	assert.Equal(t, 0, v.Rows[2].ItemCount)
}

func TestSummarize_Empty(t *testing.T) {
	v := Summarize(nil, testFormatter())

	assert.True(t, v.TotalRevenue.IsZero())
	assert.Equal(t, 0, v.TotalBills)
	assert.Empty(t, v.Rows)
}

func TestState_Lifecycle(t *testing.T) {
	var s State
	assert.Equal(t, StatusIdle, s.Snapshot().Status)

	s.Begin()
	assert.Equal(t, StatusLoading, s.Snapshot().Status)

	s.Complete(threeReceipts(), testFormatter())
	snap := s.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, 3, snap.TotalBills)

	rc, ok := s.Find("b")
	require.True(t, ok)
	assert.Equal(t, "AT-000002", rc.ReceiptNumber)

	_, ok = s.Find("missing")
	assert.False(t, ok)

	s.Begin()
	s.Fail(errors.New("store unavailable"))
	snap = s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "store unavailable", snap.Error)
	assert.Equal(t, 0, snap.TotalBills)

	_, ok = s.Find("b")
	assert.False(t, ok)
}

func TestWriteXLSX(t *testing.T) {
	v := Summarize(threeReceipts(), testFormatter())

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, v, "INR"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)

	assert.Equal(t, []string{"Receipt No", "Date", "Items", "Payment Mode", "Grand Total (INR)"}, rows[0])
	assert.Equal(t, "AT-000003", rows[1][0])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "UPI", rows[2][3])

	bills, err := f.GetCellValue(exportSheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "3", bills)
}
