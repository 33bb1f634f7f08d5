// Package render формирует печатные документы чека: HTML для печати и предпросмотра и ESC/POS для термопринтеров.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var receiptTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// Header содержит тексты шапки и подвала чека.
type Header struct {
	StoreName string
	Title     string
	Footer    string
}

// Renderer формирует документы чека по общему набору шаблонов.
type Renderer struct {
	header    Header
	formatter *format.Formatter
}

// NewRenderer создаёт рендерер с текстами шапки и форматтером сумм и дат.
func NewRenderer(header Header, formatter *format.Formatter) *Renderer {
	return &Renderer{header: header, formatter: formatter}
}

type itemView struct {
	Name     string
	Quantity int64
	Rate     string
	Total    string
}

type receiptView struct {
	StoreName   string
	Title       string
	Footer      string
	Number      string
	Date        string
	Items       []itemView
	Subtotal    string
	Discount    string
	GrandTotal  string
	PaymentMode string
}

func (r *Renderer) view(rc model.Receipt) receiptView {
	items := make([]itemView, 0, len(rc.Items))
	for _, it := range rc.Items {
		items = append(items, itemView{
			Name:     it.Name,
			Quantity: it.Quantity,
			Rate:     format.Amount(it.Rate),
			Total:    format.Amount(it.Total()),
		})
	}

	return receiptView{
		StoreName:   r.header.StoreName,
		Title:       r.header.Title,
		Footer:      r.header.Footer,
		Number:      rc.ReceiptNumber,
		Date:        r.formatter.DateTime(rc.ReceiptDate),
		Items:       items,
		Subtotal:    format.Amount(rc.Subtotal),
		Discount:    format.Amount(rc.Discount),
		GrandTotal:  r.formatter.Currency(rc.GrandTotal),
		PaymentMode: string(rc.PaymentMode),
	}
}

// PrintDocument возвращает самодостаточный HTML-документ чека со встроенными стилями.
func (r *Renderer) PrintDocument(rc model.Receipt) ([]byte, error) {
	return r.execute("receipt-document", rc)
}

// PreviewFragment возвращает тело чека для отображения на экране.
func (r *Renderer) PreviewFragment(rc model.Receipt) ([]byte, error) {
	return r.execute("receipt-body", rc)
}

func (r *Renderer) execute(name string, rc model.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	if err := receiptTemplates.ExecuteTemplate(&buf, name, r.view(rc)); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
