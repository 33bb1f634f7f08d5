// Package format содержит функции форматирования сумм, дат и номеров чеков.
package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006, 3:04:05 pm"
)

// Formatter форматирует суммы и даты в соответствии с настройками кассы.
type Formatter struct {
	symbol   string
	location *time.Location
}

// New создаёт форматтер с символом валюты и часовым поясом для вывода дат.
func New(symbol string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{symbol: symbol, location: loc}
}

// Currency форматирует сумму с символом валюты и индийской группировкой разрядов: ₹1,00,000.00.
func (f *Formatter) Currency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	return sign + f.symbol + groupIndian(intPart) + "." + frac
}

// Amount форматирует сумму с двумя знаками после запятой без символа валюты.
func Amount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// DateTime возвращает дату и время чека в часовом поясе кассы.
func (f *Formatter) DateTime(t time.Time) string {
	return NormalizeTime(t).In(f.location).Format(dateTimeLayout)
}

// Date возвращает дату чека в часовом поясе кассы.
func (f *Formatter) Date(t time.Time) string {
	return NormalizeTime(t).In(f.location).Format(dateLayout)
}

// NormalizeTime приводит момент времени чека к единому виду: UTC с точностью до микросекунд.
// Используется и для только что собранных чеков, и для чеков, прочитанных из хранилища.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FromUnixMilli восстанавливает момент времени из миллисекунд Unix.
func FromUnixMilli(ms int64) time.Time {
	return NormalizeTime(time.UnixMilli(ms))
}

// ReceiptNumber формирует номер чека из префикса и последних шести цифр миллисекунд Unix.
// Уникальность не гарантируется: два чека за одну и ту же миллисекунду по модулю 10^6 совпадут.
func ReceiptNumber(prefix string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return prefix + "-" + ms
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}

	return strings.Join(parts, ",") + "," + tail
}
