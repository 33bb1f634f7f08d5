// Package model содержит доменные сущности кассового сервиса.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownPaymentMode возвращается при разборе неизвестного способа оплаты.
var ErrUnknownPaymentMode = errors.New("unknown payment mode")

// PaymentMode описывает способ оплаты чека.
type PaymentMode string

const (
	PaymentModeCash PaymentMode = "Cash"
	PaymentModeCard PaymentMode = "Card"
	PaymentModeUPI  PaymentMode = "UPI"
)

// DefaultPaymentMode выбирается для нового чека.
const DefaultPaymentMode = PaymentModeCash

// PaymentModes возвращает все допустимые способы оплаты в порядке отображения.
func PaymentModes() []PaymentMode {
	return []PaymentMode{PaymentModeCash, PaymentModeCard, PaymentModeUPI}
}

// ParsePaymentMode разбирает строковое значение способа оплаты.
func ParsePaymentMode(s string) (PaymentMode, error) {
	for _, m := range PaymentModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMode, s)
}

// LineItem описывает позицию открытого чека.
type LineItem struct {
	ID       string
	Name     string
	Quantity int64
	Rate     decimal.Decimal
}

// Total возвращает стоимость позиции.
func (i LineItem) Total() decimal.Decimal {
	return i.Rate.Mul(decimal.NewFromInt(i.Quantity))
}

// ReceiptItem описывает позицию сохранённого чека. Локальный идентификатор в чек не попадает.
type ReceiptItem struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
}

// Total возвращает стоимость позиции.
func (i ReceiptItem) Total() decimal.Decimal {
	return i.Rate.Mul(decimal.NewFromInt(i.Quantity))
}

// Receipt представляет неизменяемый снимок завершённой продажи.
// ID назначается хранилищем и пуст до сохранения.
type Receipt struct {
	ID            string
	ReceiptNumber string
	ReceiptDate   time.Time
	Items         []ReceiptItem
	Discount      decimal.Decimal
	PaymentMode   PaymentMode
	Subtotal      decimal.Decimal
	GrandTotal    decimal.Decimal
}

// WithID возвращает копию чека с идентификатором хранилища.
func (r Receipt) WithID(id string) Receipt {
	r.Items = append([]ReceiptItem(nil), r.Items...)
	r.ID = id
	return r
}
