package docstore

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

const (
	fieldReceiptNumber = "receiptNumber"
	fieldReceiptDate   = "receiptDate"
	fieldItems         = "items"
	fieldDiscount      = "discount"
	fieldPaymentMode   = "paymentMode"
	fieldSubtotal      = "subtotal"
	fieldGrandTotal    = "grandTotal"

	fieldName     = "name"
	fieldQuantity = "quantity"
	fieldRate     = "rate"
)

var errMissingField = errors.New("missing field")

type value struct {
	StringValue    *string     `json:"stringValue,omitempty"`
	IntegerValue   *string     `json:"integerValue,omitempty"`
	DoubleValue    *float64    `json:"doubleValue,omitempty"`
	TimestampValue *string     `json:"timestampValue,omitempty"`
	ArrayValue     *arrayValue `json:"arrayValue,omitempty"`
	MapValue       *mapValue   `json:"mapValue,omitempty"`
}

type arrayValue struct {
	Values []value `json:"values,omitempty"`
}

type mapValue struct {
	Fields map[string]value `json:"fields,omitempty"`
}

type document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type order struct {
	Field     fieldReference `json:"field"`
	Direction string         `json:"direction"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type structuredQuery struct {
	From    []collectionSelector `json:"from"`
	OrderBy []order              `json:"orderBy"`
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type runQueryResponse struct {
	Document *document `json:"document,omitempty"`
	ReadTime string    `json:"readTime,omitempty"`
}

func stringValue(s string) value {
	return value{StringValue: &s}
}

func timestampValue(t time.Time) value {
	s := t.UTC().Format(time.RFC3339Nano)
	return value{TimestampValue: &s}
}

// numberValue кодирует целые суммы как integerValue, остальные как doubleValue, как это делает клиентский SDK.
func numberValue(d decimal.Decimal) value {
	if d.IsInteger() && d.Abs().LessThan(decimal.New(1, 15)) {
		s := d.String()
		return value{IntegerValue: &s}
	}
	f := d.InexactFloat64()
	return value{DoubleValue: &f}
}

func encodeReceipt(rc model.Receipt) map[string]value {
	items := make([]value, 0, len(rc.Items))
	for _, it := range rc.Items {
		q := strconv.FormatInt(it.Quantity, 10)
		items = append(items, value{MapValue: &mapValue{Fields: map[string]value{
			fieldName:     stringValue(it.Name),
			fieldQuantity: {IntegerValue: &q},
			fieldRate:     numberValue(it.Rate),
		}}})
	}

	return map[string]value{
		fieldReceiptNumber: stringValue(rc.ReceiptNumber),
		fieldReceiptDate:   timestampValue(rc.ReceiptDate),
		fieldItems:         {ArrayValue: &arrayValue{Values: items}},
		fieldDiscount:      numberValue(rc.Discount),
		fieldPaymentMode:   stringValue(string(rc.PaymentMode)),
		fieldSubtotal:      numberValue(rc.Subtotal),
		fieldGrandTotal:    numberValue(rc.GrandTotal),
	}
}

func decodeReceipt(fields map[string]value) (model.Receipt, error) {
	var (
		rc  model.Receipt
		err error
	)

	if rc.ReceiptNumber, err = decodeString(fields, fieldReceiptNumber); err != nil {
		return rc, err
	}
	if rc.ReceiptDate, err = decodeTimestamp(fields, fieldReceiptDate); err != nil {
		return rc, err
	}
	mode, err := decodeString(fields, fieldPaymentMode)
	if err != nil {
		return rc, err
	}
	rc.PaymentMode = model.PaymentMode(mode)

	if rc.Discount, err = decodeNumber(fields, fieldDiscount); err != nil {
		return rc, err
	}
	if rc.Subtotal, err = decodeNumber(fields, fieldSubtotal); err != nil {
		return rc, err
	}
	if rc.GrandTotal, err = decodeNumber(fields, fieldGrandTotal); err != nil {
		return rc, err
	}

	items, ok := fields[fieldItems]
	if !ok || items.ArrayValue == nil {
		return rc, fmt.Errorf("%w: %s", errMissingField, fieldItems)
	}
	for i, v := range items.ArrayValue.Values {
		if v.MapValue == nil {
			return rc, fmt.Errorf("item %d: not a map", i)
		}
		item, err := decodeItem(v.MapValue.Fields)
		if err != nil {
			return rc, fmt.Errorf("item %d: %w", i, err)
		}
		rc.Items = append(rc.Items, item)
	}

	return rc, nil
}

func decodeItem(fields map[string]value) (model.ReceiptItem, error) {
	name, err := decodeString(fields, fieldName)
	if err != nil {
		return model.ReceiptItem{}, err
	}
	qty, err := decodeNumber(fields, fieldQuantity)
	if err != nil {
		return model.ReceiptItem{}, err
	}
	rate, err := decodeNumber(fields, fieldRate)
	if err != nil {
		return model.ReceiptItem{}, err
	}
	return model.ReceiptItem{Name: name, Quantity: qty.IntPart(), Rate: rate}, nil
}

func decodeString(fields map[string]value, key string) (string, error) {
	v, ok := fields[key]
	if !ok || v.StringValue == nil {
		return "", fmt.Errorf("%w: %s", errMissingField, key)
	}
	return *v.StringValue, nil
}

// decodeTimestamp разбирает timestampValue (RFC 3339) и приводит момент к общему виду через format.NormalizeTime.
func decodeTimestamp(fields map[string]value, key string) (time.Time, error) {
	v, ok := fields[key]
	if !ok || v.TimestampValue == nil {
		return time.Time{}, fmt.Errorf("%w: %s", errMissingField, key)
	}
	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return format.NormalizeTime(t), nil
}

func decodeNumber(fields map[string]value, key string) (decimal.Decimal, error) {
	v, ok := fields[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", errMissingField, key)
	}
	switch {
	case v.IntegerValue != nil:
		d, err := decimal.NewFromString(*v.IntegerValue)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	case v.DoubleValue != nil:
		return decimal.NewFromFloat(*v.DoubleValue), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", errMissingField, key)
	}
}
