// Package handler содержит HTTP-обработчики API кассы.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/history"
	"github.com/mmeshcher/pos-billing/internal/middleware"
	"github.com/mmeshcher/pos-billing/internal/model"
	"github.com/mmeshcher/pos-billing/internal/printer"
	"github.com/mmeshcher/pos-billing/internal/service"
	"github.com/mmeshcher/pos-billing/internal/validation"
)

const maxBodySize = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Cart(sid string) service.CartView
	AddItem(sid, name string, quantity int64, rate decimal.Decimal) (model.LineItem, error)
	RemoveItem(sid, id string) (service.CartView, error)
	SetDiscount(sid string, discount decimal.Decimal) (service.CartView, error)
	SetPaymentMode(sid string, mode model.PaymentMode) (service.CartView, error)
	Preview(sid string) (model.Receipt, []byte, error)
	PendingDocument(sid string) ([]byte, error)
	Cancel(sid string) error
	Confirm(ctx context.Context, sid string) (*service.ConfirmResult, error)
	LoadHistory(ctx context.Context, sid string) (history.Snapshot, error)
	History(sid string) history.Snapshot
	HistoricReceipt(sid, id string) (model.Receipt, []byte, error)
	PrinterStatus(printerType string) printer.Status
	EndSession(sid string)
}

// Settings содержит параметры отображения, которые нужны обработчикам.
type Settings struct {
	Formatter   *format.Formatter
	Currency    string
	PrinterType string
}

// Handler реализует HTTP-обработчики API кассы.
type Handler struct {
	service  Service
	logger   *zap.Logger
	gate     *middleware.SessionGate
	settings Settings
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, gate *middleware.SessionGate, settings Settings) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		gate:     gate,
		settings: settings,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// decodeRequest читает JSON и проверяет его тегами validate.
// Возвращает false, если ответ с ошибкой уже записан.
func decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return false
	}

	if err := validation.Struct(req); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: http.StatusText(http.StatusBadRequest), Fields: verrs})
			return false
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}

	return true
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return sid, ok
}

// writeServiceError переводит ошибки сервиса в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrPreviewOpen),
		errors.Is(err, service.ErrTransactionInFlight),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrNoPendingReceipt):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrReceiptNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSaveFailed):
		writeJSONError(w, http.StatusBadGateway, "Failed to save bill. Please try again.")
	case errors.Is(err, service.ErrLoadFailed):
		writeJSONError(w, http.StatusBadGateway, service.ErrLoadFailed.Error())
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login проверяет учётные данные и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.gate.Authenticate(req.Username, req.Password); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if _, err := h.gate.Issue(w); err != nil {
		h.logger.Error("issue session error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Logout завершает сессию и удаляет её cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, err := h.gate.SessionID(r); err == nil {
		h.service.EndSession(sid)
	}
	h.gate.Clear(w)
	w.WriteHeader(http.StatusOK)
}

// Health сообщает, что сервис запущен.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Session подтверждает, что cookie сессии действительна.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionID(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

type itemResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
	Total     decimal.Decimal `json:"total"`
	RateText  string          `json:"rateText"`
	TotalText string          `json:"totalText"`
}

type cartResponse struct {
	Items          []itemResponse      `json:"items"`
	Discount       decimal.Decimal     `json:"discount"`
	PaymentMode    model.PaymentMode   `json:"paymentMode"`
	PaymentModes   []model.PaymentMode `json:"paymentModes"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	GrandTotal     decimal.Decimal     `json:"grandTotal"`
	SubtotalText   string              `json:"subtotalText"`
	DiscountText   string              `json:"discountText"`
	GrandTotalText string              `json:"grandTotalText"`
	CanPreview     bool                `json:"canPreview"`
	Previewing     bool                `json:"previewing"`
	InFlight       bool                `json:"inFlight"`
}

func (h *Handler) item(it model.LineItem) itemResponse {
	f := h.settings.Formatter
	return itemResponse{
		ID:        it.ID,
		Name:      it.Name,
		Quantity:  it.Quantity,
		Rate:      it.Rate,
		Total:     it.Total(),
		RateText:  f.Currency(it.Rate),
		TotalText: f.Currency(it.Total()),
	}
}

func (h *Handler) cart(v service.CartView) cartResponse {
	f := h.settings.Formatter

	items := make([]itemResponse, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, h.item(it))
	}

	return cartResponse{
		Items:          items,
		Discount:       v.Discount,
		PaymentMode:    v.PaymentMode,
		PaymentModes:   model.PaymentModes(),
		Subtotal:       v.Subtotal,
		GrandTotal:     v.GrandTotal,
		SubtotalText:   f.Currency(v.Subtotal),
		DiscountText:   f.Currency(v.Discount),
		GrandTotalText: f.Currency(v.GrandTotal),
		CanPreview:     v.CanPreview,
		Previewing:     v.Previewing,
		InFlight:       v.InFlight,
	}
}

// GetCart возвращает содержимое корзины текущей сессии.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.cart(h.service.Cart(sid)))
}

type addItemRequest struct {
	Name     string          `json:"name" validate:"required"`
	Quantity int64           `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
}

// AddItem добавляет позицию в корзину.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  http.StatusText(http.StatusBadRequest),
			Fields: validation.Errors{{Field: "name", Rule: "required"}},
		})
		return
	}

	item, err := h.service.AddItem(sid, name, req.Quantity, req.Rate)
	if err != nil {
		h.writeServiceError(w, err, "add item")
		return
	}

	writeJSON(w, http.StatusCreated, h.item(item))
}

// RemoveItem удаляет позицию из корзины.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	v, err := h.service.RemoveItem(sid, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "remove item")
		return
	}

	writeJSON(w, http.StatusOK, h.cart(v))
}

type discountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

// SetDiscount устанавливает скидку корзины.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req discountRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	v, err := h.service.SetDiscount(sid, req.Discount)
	if err != nil {
		h.writeServiceError(w, err, "set discount")
		return
	}

	writeJSON(w, http.StatusOK, h.cart(v))
}

type paymentModeRequest struct {
	PaymentMode string `json:"paymentMode"`
}

// SetPaymentMode выбирает способ оплаты.
func (h *Handler) SetPaymentMode(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req paymentModeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	mode, err := model.ParsePaymentMode(req.PaymentMode)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	v, err := h.service.SetPaymentMode(sid, mode)
	if err != nil {
		h.writeServiceError(w, err, "set payment mode")
		return
	}

	writeJSON(w, http.StatusOK, h.cart(v))
}

// PreviewReceipt собирает отложенный чек и возвращает его HTML-фрагмент.
func (h *Handler) PreviewReceipt(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	rc, fragment, err := h.service.Preview(sid)
	if err != nil {
		h.writeServiceError(w, err, "preview receipt")
		return
	}

	w.Header().Set("X-Receipt-Number", rc.ReceiptNumber)
	writeHTML(w, fragment)
}

// PendingDocument возвращает полный печатный документ отложенного чека.
func (h *Handler) PendingDocument(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.PendingDocument(sid)
	if err != nil {
		if errors.Is(err, service.ErrNoPendingReceipt) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeServiceError(w, err, "pending document")
		return
	}

	writeHTML(w, doc)
}

// CancelReceipt закрывает предпросмотр.
func (h *Handler) CancelReceipt(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(sid); err != nil {
		h.writeServiceError(w, err, "cancel receipt")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type confirmResponse struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receiptNumber"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Printed       bool            `json:"printed"`
	PrintError    string          `json:"printError,omitempty"`
}

// ConfirmReceipt сохраняет отложенный чек и отправляет его на печать.
func (h *Handler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Confirm(r.Context(), sid)
	if err != nil {
		h.writeServiceError(w, err, "confirm receipt")
		return
	}

	writeJSON(w, http.StatusOK, confirmResponse{
		ID:            res.Receipt.ID,
		ReceiptNumber: res.Receipt.ReceiptNumber,
		GrandTotal:    res.Receipt.GrandTotal,
		Printed:       res.Printed,
		PrintError:    res.PrintError,
	})
}

// RefreshHistory загружает историю продаж из хранилища.
func (h *Handler) RefreshHistory(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	snap, err := h.service.LoadHistory(r.Context(), sid)
	if err != nil {
		if errors.Is(err, service.ErrLoadFailed) {
			writeJSON(w, http.StatusBadGateway, snap)
			return
		}
		h.writeServiceError(w, err, "load history")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetHistory возвращает текущее состояние истории без обращения к хранилищу.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.History(sid))
}

// HistoricPreview возвращает фрагмент сохранённого чека только для просмотра.
func (h *Handler) HistoricPreview(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	_, fragment, err := h.service.HistoricReceipt(sid, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "historic preview")
		return
	}

	writeHTML(w, fragment)
}

// ExportHistory выгружает загруженную историю в файл Excel.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	snap := h.service.History(sid)
	if snap.Status != history.StatusReady {
		writeJSONError(w, http.StatusConflict, "sales history is not loaded")
		return
	}

	var buf bytes.Buffer
	if err := history.WriteXLSX(&buf, snap.View, h.settings.Currency); err != nil {
		h.logger.Error("export history error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="sales-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// PrinterStatus возвращает состояние принтера.
func (h *Handler) PrinterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.PrinterStatus(h.settings.PrinterType))
}
