package loan

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loanbook/internal/audit"
	"loanbook/internal/platform/middleware"
	"loanbook/internal/transport/http/shared"
)

// Handler exposes loan CRUD plus rate and disbursement sub-resources.
type Handler struct {
	service *Service
	trail   *audit.Publisher
	logger  *slog.Logger
}

func NewHandler(service *Service, trail *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{service: service, trail: trail, logger: logger}
}

// Register adds the loan routes to the given router. Routes are registered
// flat so sibling features can share the /loans/{loanID} subtree.
func (h *Handler) Register(r chi.Router) {
	r.Post("/loans", h.handleCreate)
	r.Get("/loans", h.handleList)
	r.Get("/loans/{loanID}", h.handleGet)
	r.Put("/loans/{loanID}", h.handleUpdate)
	r.Delete("/loans/{loanID}", h.handleDelete)
	r.Post("/loans/{loanID}/rates", h.handleAddRateChange)
	r.Get("/loans/{loanID}/rates", h.handleListRateChanges)
	r.Post("/loans/{loanID}/disbursements", h.handleAddDisbursement)
	r.Get("/loans/{loanID}/disbursements", h.handleListDisbursements)
	r.Get("/loans/{loanID}/audit", h.handleAuditTrail)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var l Loan
	if err := shared.DecodeJSON(r, &l); err != nil {
		shared.WriteError(w, err)
		return
	}
	created, err := h.service.Create(ctx, &l)
	if err != nil {
		h.logger.WarnContext(ctx, "loan create rejected",
			"request_id", middleware.GetRequestID(ctx), "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	loans, err := h.service.List(r.Context(), status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if loans == nil {
		loans = []*Loan{}
	}
	shared.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	l, err := h.service.Get(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var l Loan
	if err := shared.DecodeJSON(r, &l); err != nil {
		shared.WriteError(w, err)
		return
	}
	l.ID = loanID

	updated, err := h.service.Update(ctx, &l)
	if err != nil {
		h.logger.WarnContext(ctx, "loan update rejected",
			"request_id", middleware.GetRequestID(ctx), "loan_id", loanID, "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), loanID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddRateChange(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var rc RateChange
	if err := shared.DecodeJSON(r, &rc); err != nil {
		shared.WriteError(w, err)
		return
	}
	rc.LoanID = loanID

	recorded, err := h.service.RecordRateChange(r.Context(), &rc)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, recorded)
}

func (h *Handler) handleListRateChanges(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	changes, err := h.service.ListRateChanges(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if changes == nil {
		changes = []*RateChange{}
	}
	shared.WriteJSON(w, http.StatusOK, changes)
}

func (h *Handler) handleAddDisbursement(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var d Disbursement
	if err := shared.DecodeJSON(r, &d); err != nil {
		shared.WriteError(w, err)
		return
	}
	d.LoanID = loanID

	recorded, err := h.service.RecordDisbursement(r.Context(), &d)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, recorded)
}

func (h *Handler) handleListDisbursements(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	tranches, err := h.service.ListDisbursements(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if tranches == nil {
		tranches = []*Disbursement{}
	}
	shared.WriteJSON(w, http.StatusOK, tranches)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	events, err := h.trail.List(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	shared.WriteJSON(w, http.StatusOK, events)
}
