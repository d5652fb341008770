package payment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loanbook/internal/platform/middleware"
	"loanbook/internal/transport/http/shared"
	"loanbook/pkg/date"
	dErrors "loanbook/pkg/domain-errors"
)

// Handler exposes payment recording under loans and direct payment access by ID.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register adds the payment routes to the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/loans/{loanID}/payments", h.handleRecord)
	r.Get("/loans/{loanID}/payments", h.handleList)
	r.Get("/payments/{paymentID}", h.handleGet)
	r.Put("/payments/{paymentID}", h.handleUpdate)
	r.Delete("/payments/{paymentID}", h.handleDelete)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var p Payment
	if err := shared.DecodeJSON(r, &p); err != nil {
		shared.WriteError(w, err)
		return
	}
	p.LoanID = loanID

	recorded, err := h.service.Record(ctx, &p)
	if err != nil {
		h.logger.WarnContext(ctx, "payment rejected",
			"request_id", middleware.GetRequestID(ctx), "loan_id", loanID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, recorded)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	from, err := queryDate(r, "from")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	payments, err := h.service.ListByLoan(r.Context(), loanID, from, to)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if payments == nil {
		payments = []*Payment{}
	}
	shared.WriteJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	paymentID, err := shared.URLParamInt64(r, "paymentID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), paymentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, err := shared.URLParamInt64(r, "paymentID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var p Payment
	if err := shared.DecodeJSON(r, &p); err != nil {
		shared.WriteError(w, err)
		return
	}
	p.ID = paymentID

	updated, err := h.service.Update(ctx, &p)
	if err != nil {
		h.logger.WarnContext(ctx, "payment update rejected",
			"request_id", middleware.GetRequestID(ctx), "payment_id", paymentID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	paymentID, err := shared.URLParamInt64(r, "paymentID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), paymentID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryDate(r *http.Request, name string) (date.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return date.Date{}, nil
	}
	d, err := date.Parse(raw)
	if err != nil {
		return date.Date{}, dErrors.Newf(dErrors.CodeBadRequest, "%s must be YYYY-MM-DD", name)
	}
	return d, nil
}
