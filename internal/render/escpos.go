package render

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

// Команды ESC/POS.
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

const (
	alignLeft   = 0
	alignCenter = 1
)

// DefaultLineWidth соответствует ленте 58 мм.
const DefaultLineWidth = 32

// escposWriter накапливает поток ESC/POS для термопринтера.
type escposWriter struct {
	buf   bytes.Buffer
	width int
}

func newESCPOSWriter(width int) *escposWriter {
	if width <= 0 {
		width = DefaultLineWidth
	}
	w := &escposWriter{width: width}
	w.buf.Write([]byte{esc, '@'})
	return w
}

func (w *escposWriter) align(a byte) {
	w.buf.Write([]byte{esc, 'a', a})
}

func (w *escposWriter) bold(on bool) {
	var b byte
	if on {
		b = 1
	}
	w.buf.Write([]byte{esc, 'E', b})
}

func (w *escposWriter) size(s byte) {
	w.buf.Write([]byte{gs, '!', s})
}

func (w *escposWriter) text(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(lf)
}

func (w *escposWriter) separator(ch string) {
	w.text(strings.Repeat(ch, w.width))
}

// keyValue печатает ключ слева и значение справа в одной строке.
func (w *escposWriter) keyValue(key, value string) {
	spaces := w.width - utf8.RuneCountInString(key) - utf8.RuneCountInString(value)
	if spaces < 1 {
		spaces = 1
	}
	w.text(key + strings.Repeat(" ", spaces) + value)
}

func (w *escposWriter) feed(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(lf)
	}
}

func (w *escposWriter) cut() {
	w.buf.Write([]byte{gs, 'V', 0x01})
}

// ESCPOS формирует поток ESC/POS для термопринтера шириной width символов.
func (r *Renderer) ESCPOS(rc model.Receipt, width int) []byte {
	w := newESCPOSWriter(width)

	w.align(alignCenter)
	w.bold(true)
	w.size(0x11)
	w.text(r.header.StoreName)
	w.size(0x00)
	w.bold(false)
	w.text(r.header.Title)

	w.align(alignLeft)
	w.separator("-")
	w.keyValue("Receipt No:", rc.ReceiptNumber)
	w.keyValue("Date:", r.formatter.DateTime(rc.ReceiptDate))
	w.separator("-")

	for _, it := range rc.Items {
		w.text(it.Name)
		w.keyValue("  "+strconv.FormatInt(it.Quantity, 10)+" x "+format.Amount(it.Rate), format.Amount(it.Total()))
	}

	w.separator("-")
	w.keyValue("Subtotal:", format.Amount(rc.Subtotal))
	w.keyValue("Discount:", "-"+format.Amount(rc.Discount))
	w.bold(true)
	w.keyValue("Grand Total:", format.Amount(rc.GrandTotal))
	w.bold(false)
	w.keyValue("Payment Mode:", string(rc.PaymentMode))
	w.separator("-")

	w.align(alignCenter)
	w.text(r.header.Footer)
	w.feed(3)
	w.cut()

	return w.buf.Bytes()
}
