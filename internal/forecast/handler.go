package forecast

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"loanbook/internal/schedule"
	"loanbook/internal/transport/http/shared"
	dErrors "loanbook/pkg/domain-errors"
)

// Handler exposes scenario CRUD, ad-hoc projections, and per-loan schedule and
// statistics views.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register adds the forecast routes to the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/loans/{loanID}/scenarios", h.handleSaveScenario)
	r.Get("/loans/{loanID}/scenarios", h.handleListScenarios)
	r.Post("/loans/{loanID}/forecast", h.handleCompute)
	r.Get("/loans/{loanID}/forecast/optimal", h.handleOptimalMonth)
	r.Get("/loans/{loanID}/forecast/breakeven", h.handleBreakeven)
	r.Get("/loans/{loanID}/schedule", h.handleSchedule)
	r.Get("/loans/{loanID}/stats", h.handleStats)
	r.Delete("/scenarios/{scenarioID}", h.handleDeleteScenario)
}

func (h *Handler) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var sc Scenario
	if err := shared.DecodeJSON(r, &sc); err != nil {
		shared.WriteError(w, err)
		return
	}
	sc.LoanID = loanID

	saved, err := h.service.Save(r.Context(), &sc)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	projections, err := h.service.ListComputed(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if projections == nil {
		projections = []*Projection{}
	}
	shared.WriteJSON(w, http.StatusOK, projections)
}

func (h *Handler) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := shared.URLParamInt64(r, "scenarioID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), scenarioID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req ComputeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	proj, err := h.service.Compute(r.Context(), loanID, &req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, proj)
}

func (h *Handler) handleOptimalMonth(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	amount, err := queryFloat(r, "amount")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	horizon := queryInt(r, "horizon", 12)

	result, err := h.service.OptimalMonth(r.Context(), loanID, amount, horizon)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBreakeven(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	target := queryInt(r, "target_months", 0)
	month := queryInt(r, "month", 1)

	result, err := h.service.Breakeven(r.Context(), loanID, target, month)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	entries, summary, err := h.service.BuildSchedule(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, struct {
		Summary schedule.Summary `json:"summary"`
		Entries []schedule.Entry `json:"entries"`
	}{Summary: summary, Entries: entries})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	loanID, err := shared.URLParamInt64(r, "loanID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	stats, err := h.service.LoanStats(r.Context(), loanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "%s must be a positive number", name)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
