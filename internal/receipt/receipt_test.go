package receipt

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pos-billing/internal/cart"
	"github.com/mmeshcher/pos-billing/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFromCart_Scenario(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 987654321, time.UTC)
	b := NewBuilder("AT", func() time.Time { return now })

	c := cart.New()
	c.Add("Pen", 2, dec("10.00"))
	c.Add("Notebook", 1, dec("50.00"))
	c.SetDiscount(dec("5.00"))
	c.SetPaymentMode(model.PaymentModeCard)

	r := b.FromCart(c)

	assert.True(t, r.Subtotal.Equal(dec("70")), "subtotal = %s", r.Subtotal)
	assert.True(t, r.GrandTotal.Equal(dec("65")), "grand total = %s", r.GrandTotal)
	assert.Equal(t, model.PaymentModeCard, r.PaymentMode)
	assert.Equal(t, "AT-", r.ReceiptNumber[:3])
	assert.Len(t, r.ReceiptNumber, 9)
	assert.Empty(t, r.ID)
	assert.Equal(t, now.Truncate(time.Microsecond), r.ReceiptDate)

	require.Len(t, r.Items, 2)
	assert.Equal(t, model.ReceiptItem{Name: "Pen", Quantity: 2, Rate: dec("10.00")}, r.Items[0])
	assert.Equal(t, "Notebook", r.Items[1].Name)
}

func TestBuild_Deterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []model.LineItem{
		{ID: "a", Name: "Tea", Quantity: 3, Rate: dec("12.5")},
	}

	first := Build(items, dec("1"), model.PaymentModeUPI, now, "AT-000001")
	second := Build(items, dec("1"), model.PaymentModeUPI, now, "AT-000001")

	assert.Equal(t, first, second)
}

func TestBuild_NegativeGrandTotalNotClamped(t *testing.T) {
	items := []model.LineItem{{ID: "a", Name: "Gum", Quantity: 1, Rate: dec("2.00")}}

	r := Build(items, dec("5.00"), model.PaymentModeCash, time.Now(), "AT-1")

	assert.True(t, r.GrandTotal.Equal(dec("-3")), "grand total = %s", r.GrandTotal)
	assert.True(t, r.GrandTotal.Equal(r.Subtotal.Sub(r.Discount)))
}

func TestBuild_EmptyCart(t *testing.T) {
	r := Build(nil, decimal.Zero, model.PaymentModeCash, time.Now(), "AT-1")

	assert.Empty(t, r.Items)
	assert.True(t, r.Subtotal.IsZero())
	assert.True(t, r.GrandTotal.IsZero())
}

func TestFromCart_SnapshotIsDetachedFromCart(t *testing.T) {
	b := NewBuilder("AT", nil)
	c := cart.New()
	c.Add("Pen", 1, dec("10"))

	r := b.FromCart(c)
	c.Add("Ink", 1, dec("99"))
	c.SetDiscount(dec("1"))

	assert.Len(t, r.Items, 1)
	assert.True(t, r.Discount.IsZero())
	assert.True(t, r.Subtotal.Equal(dec("10")))
}
