// Package cart реализует состояние открытого чека: позиции, скидку и способ оплаты.
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-billing/internal/model"
)

// Cart хранит упорядоченные позиции текущей продажи. Не потокобезопасен:
// владелец состояния сериализует обращения сам.
type Cart struct {
	items       []model.LineItem
	discount    decimal.Decimal
	paymentMode model.PaymentMode
	newID       func() string
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{
		paymentMode: model.DefaultPaymentMode,
		newID:       newItemID,
	}
}

func newItemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "item_" + uuid.NewString()
	}
	return "item_" + id.String()
}

// Add добавляет позицию в конец корзины. Нулевые и отрицательные значения не отклоняются.
func (c *Cart) Add(name string, quantity int64, rate decimal.Decimal) model.LineItem {
	item := model.LineItem{
		ID:       c.newID(),
		Name:     name,
		Quantity: quantity,
		Rate:     rate,
	}
	c.items = append(c.items, item)
	return item
}

// Remove удаляет позицию по идентификатору и сообщает, была ли она найдена.
func (c *Cart) Remove(id string) bool {
	for i, item := range c.items {
		if item.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items возвращает копию позиций корзины.
func (c *Cart) Items() []model.LineItem {
	return append([]model.LineItem(nil), c.items...)
}

// Len возвращает количество позиций.
func (c *Cart) Len() int {
	return len(c.items)
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Subtotal возвращает сумму quantity × rate по всем позициям.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.items)
}

// Subtotal считает сумму позиций.
func Subtotal(items []model.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// Discount возвращает текущую скидку.
func (c *Cart) Discount() decimal.Decimal {
	return c.discount
}

// SetDiscount устанавливает скидку. Значение не проверяется на знак.
func (c *Cart) SetDiscount(d decimal.Decimal) {
	c.discount = d
}

// GrandTotal возвращает сумму к оплате с учётом скидки.
func (c *Cart) GrandTotal() decimal.Decimal {
	return c.Subtotal().Sub(c.discount)
}

// PaymentMode возвращает выбранный способ оплаты.
func (c *Cart) PaymentMode() model.PaymentMode {
	return c.paymentMode
}

// SetPaymentMode выбирает способ оплаты.
func (c *Cart) SetPaymentMode(m model.PaymentMode) {
	c.paymentMode = m
}

// Clear очищает позиции и сбрасывает скидку и способ оплаты.
func (c *Cart) Clear() {
	c.items = nil
	c.discount = decimal.Zero
	c.paymentMode = model.DefaultPaymentMode
}
