// Package history строит сводку по сохранённым чекам для экрана истории продаж.
package history

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

// Status описывает состояние загрузки истории.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Row описывает строку таблицы истории. ID ссылается на полный чек для повторного просмотра.
type Row struct {
	ID          string            `json:"id"`
	Number      string            `json:"receiptNumber"`
	Date        string            `json:"date"`
	ItemCount   int               `json:"itemCount"`
	PaymentMode model.PaymentMode `json:"paymentMode"`
	GrandTotal  string            `json:"grandTotal"`
}

// View содержит агрегаты и строки истории.
type View struct {
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalRevenueText string          `json:"totalRevenueText"`
	TotalBills       int             `json:"totalBills"`
	Rows             []Row           `json:"rows"`
}

// Summarize считает выручку и количество чеков и формирует строки таблицы.
func Summarize(receipts []model.Receipt, f *format.Formatter) View {
	revenue := decimal.Zero
	rows := make([]Row, 0, len(receipts))

	for _, rc := range receipts {
		revenue = revenue.Add(rc.GrandTotal)
		rows = append(rows, Row{
			ID:          rc.ID,
			Number:      rc.ReceiptNumber,
			Date:        f.Date(rc.ReceiptDate),
			ItemCount:   len(rc.Items),
			PaymentMode: rc.PaymentMode,
			GrandTotal:  f.Currency(rc.GrandTotal),
		})
	}

	return View{
		TotalRevenue:     revenue,
		TotalRevenueText: f.Currency(revenue),
		TotalBills:       len(receipts),
		Rows:             rows,
	}
}

// State хранит кэш истории терминала. Кэш перестраивается целиком при каждой загрузке.
type State struct {
	status   Status
	err      string
	receipts []model.Receipt
	view     View
}

// Snapshot описывает состояние истории для отображения.
type Snapshot struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	View
}

// Begin переводит историю в состояние загрузки.
func (s *State) Begin() {
	s.status = StatusLoading
	s.err = ""
}

// Complete заменяет кэш загруженными чеками и пересчитывает агрегаты.
func (s *State) Complete(receipts []model.Receipt, f *format.Formatter) {
	s.status = StatusReady
	s.err = ""
	s.receipts = receipts
	s.view = Summarize(receipts, f)
}

// Fail фиксирует ошибку загрузки. Повторная загрузка не выполняется автоматически.
func (s *State) Fail(err error) {
	s.status = StatusFailed
	s.err = err.Error()
	s.receipts = nil
	s.view = View{}
}

// Snapshot возвращает текущее состояние истории.
func (s *State) Snapshot() Snapshot {
	status := s.status
	if status == "" {
		status = StatusIdle
	}
	return Snapshot{Status: status, Error: s.err, View: s.view}
}

// Find ищет чек в кэше по идентификатору хранилища.
func (s *State) Find(id string) (model.Receipt, bool) {
	for _, rc := range s.receipts {
		if rc.ID == id {
			return rc, true
		}
	}
	return model.Receipt{}, false
}
