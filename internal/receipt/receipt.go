// Package receipt собирает неизменяемый снимок чека из текущей корзины.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-billing/internal/cart"
	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

// Build собирает чек из позиций, скидки и способа оплаты на момент now.
// Пустой список позиций не запрещён: получится чек без строк.
func Build(items []model.LineItem, discount decimal.Decimal, mode model.PaymentMode, now time.Time, number string) model.Receipt {
	subtotal := cart.Subtotal(items)

	receiptItems := make([]model.ReceiptItem, 0, len(items))
	for _, item := range items {
		receiptItems = append(receiptItems, model.ReceiptItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Rate:     item.Rate,
		})
	}

	return model.Receipt{
		ReceiptNumber: number,
		ReceiptDate:   format.NormalizeTime(now),
		Items:         receiptItems,
		Discount:      discount,
		PaymentMode:   mode,
		Subtotal:      subtotal,
		GrandTotal:    subtotal.Sub(discount),
	}
}

// Builder собирает чеки, используя часы и префикс номера.
type Builder struct {
	prefix string
	now    func() time.Time
}

// NewBuilder создаёт сборщик чеков. Если now равен nil, используется time.Now.
func NewBuilder(prefix string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{prefix: prefix, now: now}
}

// FromCart собирает чек из содержимого корзины.
func (b *Builder) FromCart(c *cart.Cart) model.Receipt {
	now := b.now()
	return Build(c.Items(), c.Discount(), c.PaymentMode(), now, format.ReceiptNumber(b.prefix, now))
}
