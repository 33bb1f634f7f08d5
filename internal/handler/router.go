package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/pos-billing/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware кассы.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.gate.Middleware)

			r.Get("/session", h.Session)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddItem)
			r.Delete("/cart/items/{id}", h.RemoveItem)
			r.Put("/cart/discount", h.SetDiscount)
			r.Put("/cart/payment-mode", h.SetPaymentMode)

			r.Post("/receipt/preview", h.PreviewReceipt)
			r.Get("/receipt/pending/document", h.PendingDocument)
			r.Delete("/receipt/pending", h.CancelReceipt)
			r.Post("/receipt/confirm", h.ConfirmReceipt)

			r.Post("/history/refresh", h.RefreshHistory)
			r.Get("/history", h.GetHistory)
			r.Get("/history/export", h.ExportHistory)
			r.Get("/history/{id}/preview", h.HistoricPreview)

			r.Get("/printer", h.PrinterStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
