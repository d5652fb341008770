package export

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loanbook/internal/transport/http/shared"
)

// Handler exposes the snapshot trigger.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register adds the export routes to the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/export/csv", h.handleSnapshot)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "csv snapshot failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}
