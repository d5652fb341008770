package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"loanbook/internal/transport/http/shared"
)

// Handler serves the composed dashboard views.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register adds the dashboard routes to the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard/summary", h.handleSummary)
	r.Get("/dashboard/timeline", h.handleTimeline)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "dashboard summary failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	months := 12
	if raw := r.URL.Query().Get("months"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			months = v
		}
	}
	buckets, err := h.service.Timeline(r.Context(), months)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, buckets)
}
