package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestRenderer() *Renderer {
	loc := time.FixedZone("IST", 5*3600+1800)
	return NewRenderer(Header{
		StoreName: "Arab Times",
		Title:     "Cash Receipt",
		Footer:    "Thank you for shopping with us!",
	}, format.New("₹", loc))
}

func sampleReceipt() model.Receipt {
	return model.Receipt{
		ReceiptNumber: "AT-123456",
		ReceiptDate:   time.Date(2026, 10, 16, 6, 30, 0, 0, time.UTC),
		Items: []model.ReceiptItem{
			{Name: "Pen", Quantity: 2, Rate: dec("10")},
			{Name: "Notebook", Quantity: 1, Rate: dec("50.5")},
			{Name: "Eraser", Quantity: 3, Rate: dec("0.333")},
		},
		Discount:    dec("5"),
		PaymentMode: model.PaymentModeUPI,
		Subtotal:    dec("71.499"),
		GrandTotal:  dec("66.499"),
	}
}

type parsedReceipt struct {
	fields map[string]string
	rows   []map[string]string
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func parseReceipt(t *testing.T, doc []byte) parsedReceipt {
	t.Helper()

	root, err := html.Parse(bytes.NewReader(doc))
	require.NoError(t, err)

	res := parsedReceipt{fields: map[string]string{}}

	var walk func(n *html.Node, row map[string]string)
	walk = func(n *html.Node, row map[string]string) {
		if n.Type == html.ElementNode {
			if n.Data == "tr" && attr(n, "class") == "item-row" {
				row = map[string]string{}
				res.rows = append(res.rows, row)
			}
			if f := attr(n, "data-field"); f != "" {
				if row != nil {
					row[f] = textOf(n)
				} else {
					res.fields[f] = textOf(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, row)
		}
	}
	walk(root, nil)

	return res
}

func TestPrintDocument_RoundTrip(t *testing.T) {
	r := newTestRenderer()
	rc := sampleReceipt()

	doc, err := r.PrintDocument(rc)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc, []byte("<!DOCTYPE html>")))
	assert.Contains(t, string(doc), "<style>")
	assert.Contains(t, string(doc), "<title>Receipt AT-123456</title>")

	parsed := parseReceipt(t, doc)

	require.Len(t, parsed.rows, len(rc.Items))
	for i, it := range rc.Items {
		row := parsed.rows[i]
		assert.Equal(t, it.Name, row["name"])
		assert.Equal(t, decimal.NewFromInt(it.Quantity).String(), row["quantity"])
		assert.Equal(t, it.Rate.StringFixed(2), row["rate"])
		assert.Equal(t, it.Total().StringFixed(2), row["total"])
	}

	assert.Equal(t, "AT-123456", parsed.fields["receipt-number"])
	assert.Equal(t, "16/10/2026, 12:00:00 pm", parsed.fields["receipt-date"])
	assert.Equal(t, "71.50", parsed.fields["subtotal"])
	assert.Equal(t, "-5.00", parsed.fields["discount"])
	assert.Equal(t, "₹66.50", parsed.fields["grand-total"])
	assert.Equal(t, "UPI", parsed.fields["payment-mode"])
}

func TestPrintDocument_Deterministic(t *testing.T) {
	r := newTestRenderer()

	a, err := r.PrintDocument(sampleReceipt())
	require.NoError(t, err)
	b, err := r.PrintDocument(sampleReceipt())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestPreviewFragment_SharesBodyWithPrintDocument(t *testing.T) {
	r := newTestRenderer()
	rc := sampleReceipt()

	doc, err := r.PrintDocument(rc)
	require.NoError(t, err)
	fragment, err := r.PreviewFragment(rc)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(fragment, []byte(`<div class="receipt">`)))
	assert.NotContains(t, string(fragment), "<html>")
	assert.NotContains(t, string(fragment), "<style>")
	assert.Contains(t, string(doc), string(fragment))
}

func TestPrintDocument_EscapesItemNames(t *testing.T) {
	r := newTestRenderer()
	rc := sampleReceipt()
	rc.Items = []model.ReceiptItem{{Name: `<script>alert("x")</script>`, Quantity: 1, Rate: dec("1")}}

	doc, err := r.PrintDocument(rc)
	require.NoError(t, err)

	assert.NotContains(t, string(doc), "<script>")
	parsed := parseReceipt(t, doc)
	require.Len(t, parsed.rows, 1)
	assert.Equal(t, `<script>alert("x")</script>`, parsed.rows[0]["name"])
}

func TestPrintDocument_SameInstantSameDate(t *testing.T) {
	r := newTestRenderer()

	instant := time.Date(2026, 3, 5, 18, 45, 10, 999999999, time.Local)
	fresh := sampleReceipt()
	fresh.ReceiptDate = format.NormalizeTime(instant)

	stored := sampleReceipt()
	stored.ReceiptDate = format.FromUnixMilli(instant.UnixMilli())

	a := parseReceipt(t, mustRender(t, r, fresh))
	b := parseReceipt(t, mustRender(t, r, stored))

	assert.Equal(t, a.fields["receipt-date"], b.fields["receipt-date"])
}

func mustRender(t *testing.T, r *Renderer, rc model.Receipt) []byte {
	t.Helper()
	doc, err := r.PrintDocument(rc)
	require.NoError(t, err)
	return doc
}

func TestESCPOS(t *testing.T) {
	r := newTestRenderer()

	data := r.ESCPOS(sampleReceipt(), 32)

	assert.True(t, bytes.HasPrefix(data, []byte{esc, '@'}))
	assert.True(t, bytes.HasSuffix(data, []byte{gs, 'V', 0x01}))

	text := string(data)
	assert.Contains(t, text, "Arab Times")
	assert.Contains(t, text, "Receipt No:")
	assert.Contains(t, text, "  2 x 10.00")
	assert.Contains(t, text, "Payment Mode:")
	assert.Contains(t, text, "UPI")
	assert.Contains(t, text, "66.50")
}
