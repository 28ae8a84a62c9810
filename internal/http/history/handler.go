package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/export"
	"github.com/MrJamesThe3rd/factura/internal/history"
)

// Status describes the backend chosen when the session was opened.
type Status struct {
	Backend history.Backend
	Warning error
}

type Handler struct {
	history export.Lister
	status  Status
	log     *zap.Logger
}

func NewHandler(h export.Lister, status Status, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return &Handler{
		history: h,
		status:  status,
		log:     log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/months", h.months)
}

type statusResponse struct {
	Backend  history.Backend `json:"backend"`
	Degraded bool            `json:"degraded"`
	Warning  string          `json:"warning,omitempty"`
}

// Status reports the active history backend and, when the primary store was
// unusable at startup, why.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Backend: h.status.Backend}

	if h.status.Warning != nil {
		resp.Degraded = true
		resp.Warning = h.status.Warning.Error()
	}

	h.respond(w, resp)
}

func (h *Handler) months(w http.ResponseWriter, r *http.Request) {
	var filter history.Filter

	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y <= 0 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}

		filter.Year = y
	}

	records, err := h.history.ListIssued(r.Context(), filter)
	if err != nil {
		h.log.Error("listing history", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	h.respond(w, history.Summarize(records))
}

func (h *Handler) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}
