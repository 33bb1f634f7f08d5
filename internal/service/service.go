// Package service реализует бизнес-логику кассы: корзину, предпросмотр, проведение и историю чеков.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pos-billing/internal/cart"
	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/history"
	"github.com/mmeshcher/pos-billing/internal/model"
	"github.com/mmeshcher/pos-billing/internal/printer"
	"github.com/mmeshcher/pos-billing/internal/receipt"
	"github.com/mmeshcher/pos-billing/internal/render"
)

var (
	// ErrEmptyCart возвращается при попытке предпросмотра пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoPendingReceipt возвращается, если предпросмотр не открыт.
	ErrNoPendingReceipt = errors.New("no pending receipt")
	// ErrTransactionInFlight возвращается, пока предыдущий чек сохраняется.
	ErrTransactionInFlight = errors.New("transaction already in flight")
	// ErrPreviewOpen возвращается при изменении корзины с открытым предпросмотром.
	ErrPreviewOpen = errors.New("receipt preview is open")
	// ErrItemNotFound возвращается при удалении отсутствующей позиции.
	ErrItemNotFound = errors.New("item not found")
	// ErrReceiptNotFound возвращается, если чека нет в загруженной истории.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrSaveFailed оборачивает ошибку сохранения чека.
	ErrSaveFailed = errors.New("failed to save receipt")
	// ErrLoadFailed оборачивает ошибку загрузки истории.
	ErrLoadFailed = errors.New("error loading sales history")
)

// Gateway описывает контракт хранилища чеков, используемый сервисом.
type Gateway interface {
	Close() error
	AppendReceipt(ctx context.Context, rc model.Receipt) (string, error)
	ListReceipts(ctx context.Context) ([]model.Receipt, error)
}

// Terminal хранит состояние кассы одной сессии: корзину, отложенный чек и кэш истории.
type Terminal struct {
	mu       sync.Mutex
	cart     *cart.Cart
	pending  *model.Receipt
	history  history.State
	inFlight bool
}

func newTerminal() *Terminal {
	return &Terminal{cart: cart.New()}
}

// guardCartLocked проверяет, что корзину можно менять. Вызывается под t.mu.
func (t *Terminal) guardCartLocked() error {
	if t.inFlight {
		return ErrTransactionInFlight
	}
	if t.pending != nil {
		return ErrPreviewOpen
	}
	return nil
}

// CartView описывает состояние корзины для отображения.
type CartView struct {
	Items       []model.LineItem
	Discount    decimal.Decimal
	PaymentMode model.PaymentMode
	Subtotal    decimal.Decimal
	GrandTotal  decimal.Decimal
	CanPreview  bool
	Previewing  bool
	InFlight    bool
}

// ConfirmResult описывает итог проведения чека.
// Печать выполняется после сохранения: при её сбое чек остаётся сохранённым, но не напечатанным.
type ConfirmResult struct {
	Receipt    model.Receipt
	Printed    bool
	PrintError string
}

// Service содержит бизнес-логику кассы.
type Service struct {
	gateway     Gateway
	printer     printer.Printer
	renderer    *render.Renderer
	builder     *receipt.Builder
	formatter   *format.Formatter
	logger      *zap.Logger
	escposWidth int

	mu        sync.Mutex
	terminals map[string]*Terminal
}

// NewService создаёт сервис с указанным хранилищем, принтером и рендерером чеков.
func NewService(gateway Gateway, p printer.Printer, renderer *render.Renderer, builder *receipt.Builder, formatter *format.Formatter, logger *zap.Logger) *Service {
	if p == nil {
		p = printer.NewNullPrinter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway:     gateway,
		printer:     p,
		renderer:    renderer,
		builder:     builder,
		formatter:   formatter,
		logger:      logger,
		escposWidth: render.DefaultLineWidth,
		terminals:   make(map[string]*Terminal),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	var errs []error
	if s.gateway != nil {
		errs = append(errs, s.gateway.Close())
	}
	errs = append(errs, s.printer.Close())
	return errors.Join(errs...)
}

func (s *Service) terminal(sid string) *Terminal {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.terminals[sid]
	if !ok {
		t = newTerminal()
		s.terminals[sid] = t
	}
	return t
}

// EndSession забывает состояние кассы сессии.
func (s *Service) EndSession(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.terminals, sid)
}

func (t *Terminal) viewLocked() CartView {
	return CartView{
		Items:       t.cart.Items(),
		Discount:    t.cart.Discount(),
		PaymentMode: t.cart.PaymentMode(),
		Subtotal:    t.cart.Subtotal(),
		GrandTotal:  t.cart.GrandTotal(),
		CanPreview:  !t.cart.IsEmpty() && !t.inFlight,
		Previewing:  t.pending != nil,
		InFlight:    t.inFlight,
	}
}

// Cart возвращает состояние корзины сессии.
func (s *Service) Cart(sid string) CartView {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewLocked()
}

// AddItem добавляет позицию в корзину.
func (s *Service) AddItem(sid, name string, quantity int64, rate decimal.Decimal) (model.LineItem, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.guardCartLocked(); err != nil {
		return model.LineItem{}, err
	}
	return t.cart.Add(name, quantity, rate), nil
}

// RemoveItem удаляет позицию из корзины.
func (s *Service) RemoveItem(sid, id string) (CartView, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.guardCartLocked(); err != nil {
		return CartView{}, err
	}
	if !t.cart.Remove(id) {
		return t.viewLocked(), ErrItemNotFound
	}
	return t.viewLocked(), nil
}

// SetDiscount устанавливает скидку.
func (s *Service) SetDiscount(sid string, discount decimal.Decimal) (CartView, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.guardCartLocked(); err != nil {
		return CartView{}, err
	}
	t.cart.SetDiscount(discount)
	return t.viewLocked(), nil
}

// SetPaymentMode выбирает способ оплаты.
func (s *Service) SetPaymentMode(sid string, mode model.PaymentMode) (CartView, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.guardCartLocked(); err != nil {
		return CartView{}, err
	}
	t.cart.SetPaymentMode(mode)
	return t.viewLocked(), nil
}

// Preview собирает отложенный чек из корзины и возвращает его вместе с фрагментом для показа.
func (s *Service) Preview(sid string) (model.Receipt, []byte, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight {
		return model.Receipt{}, nil, ErrTransactionInFlight
	}
	if t.cart.IsEmpty() {
		return model.Receipt{}, nil, ErrEmptyCart
	}

	rc := s.builder.FromCart(t.cart)

	fragment, err := s.renderer.PreviewFragment(rc)
	if err != nil {
		return model.Receipt{}, nil, err
	}

	t.pending = &rc
	return rc, fragment, nil
}

// PendingDocument возвращает полный печатный документ отложенного чека.
func (s *Service) PendingDocument(sid string) ([]byte, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return nil, ErrNoPendingReceipt
	}
	return s.renderer.PrintDocument(*t.pending)
}

// Cancel закрывает предпросмотр и сбрасывает отложенный чек.
func (s *Service) Cancel(sid string) error {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight {
		return ErrTransactionInFlight
	}
	t.pending = nil
	return nil
}

// Confirm сохраняет отложенный чек, очищает корзину и отправляет чек на печать.
// При ошибке сохранения корзина и отложенный чек не меняются, печать не выполняется.
func (s *Service) Confirm(ctx context.Context, sid string) (*ConfirmResult, error) {
	t := s.terminal(sid)

	t.mu.Lock()
	if t.inFlight {
		t.mu.Unlock()
		return nil, ErrTransactionInFlight
	}
	if t.pending == nil {
		t.mu.Unlock()
		return nil, ErrNoPendingReceipt
	}
	rc := t.pending.WithID("")
	t.inFlight = true
	t.mu.Unlock()

	// Начатое проведение не отменяется вместе с запросом.
	ctx = context.WithoutCancel(ctx)

	id, err := s.gateway.AppendReceipt(ctx, rc)

	t.mu.Lock()
	t.inFlight = false
	if err != nil {
		t.mu.Unlock()
		s.logger.Error("save receipt error", zap.Error(err), zap.String("receipt", rc.ReceiptNumber))
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	t.pending = nil
	t.cart.Clear()
	t.mu.Unlock()

	saved := rc.WithID(id)
	res := &ConfirmResult{Receipt: saved, Printed: true}

	if err := s.print(ctx, saved); err != nil {
		s.logger.Warn("receipt saved but not printed", zap.Error(err), zap.String("receipt", saved.ReceiptNumber), zap.String("id", id))
		res.Printed = false
		res.PrintError = err.Error()
	}

	return res, nil
}

func (s *Service) print(ctx context.Context, rc model.Receipt) error {
	var data []byte
	switch s.printer.Format() {
	case printer.FormatESCPOS:
		data = s.renderer.ESCPOS(rc, s.escposWidth)
	default:
		doc, err := s.renderer.PrintDocument(rc)
		if err != nil {
			return err
		}
		data = doc
	}

	return s.printer.Print(ctx, printer.Job{Name: rc.ReceiptNumber, Data: data})
}

// LoadHistory загружает все чеки из хранилища и пересчитывает сводку.
// При ошибке история переходит в состояние failed, повторная загрузка не выполняется.
func (s *Service) LoadHistory(ctx context.Context, sid string) (history.Snapshot, error) {
	t := s.terminal(sid)

	t.mu.Lock()
	t.history.Begin()
	t.mu.Unlock()

	receipts, err := s.gateway.ListReceipts(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		s.logger.Error("load history error", zap.Error(err))
		t.history.Fail(ErrLoadFailed)
		return t.history.Snapshot(), fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	t.history.Complete(receipts, s.formatter)
	return t.history.Snapshot(), nil
}

// History возвращает текущее состояние истории без обращения к хранилищу.
func (s *Service) History(sid string) history.Snapshot {
	t := s.terminal(sid)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Snapshot()
}

// HistoricReceipt возвращает чек из загруженной истории и его фрагмент для просмотра.
func (s *Service) HistoricReceipt(sid, id string) (model.Receipt, []byte, error) {
	t := s.terminal(sid)
	t.mu.Lock()
	rc, ok := t.history.Find(id)
	t.mu.Unlock()

	if !ok {
		return model.Receipt{}, nil, ErrReceiptNotFound
	}

	fragment, err := s.renderer.PreviewFragment(rc)
	if err != nil {
		return model.Receipt{}, nil, err
	}
	return rc, fragment, nil
}

// PrinterStatus возвращает состояние принтера.
func (s *Service) PrinterStatus(printerType string) printer.Status {
	return printer.GetStatus(s.printer, printerType)
}
