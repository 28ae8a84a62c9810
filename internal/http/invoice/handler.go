package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/export"
	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
)

type Previewer interface {
	Preview(ctx context.Context, year int) (invoice.Identifier, error)
}

type Handler struct {
	history export.Lister
	export  *export.Service
	numbers Previewer
	log     *zap.Logger
	now     func() time.Time
}

func NewHandler(h export.Lister, exp *export.Service, numbers Previewer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return &Handler{
		history: h,
		export:  exp,
		numbers: numbers,
		log:     log,
		now:     time.Now,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/next", h.next)
	r.Get("/summary", h.summary)
	r.Get("/download", h.download)
	r.Get("/{number}/document", h.document)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.history.ListIssued(r.Context(), filter)
	if err != nil {
		h.log.Error("listing invoices", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	h.respond(w, http.StatusOK, toResponseList(records))
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()

	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y <= 0 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}

		year = y
	}

	id, err := h.numbers.Preview(r.Context(), year)
	if err != nil {
		h.log.Error("previewing next number", zap.Int("year", year), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	h.respond(w, http.StatusOK, nextResponse{Year: year, Number: id.String(), Sequence: id.Seq})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	items, ok := h.exportItems(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if _, err := w.Write([]byte(export.GenerateSummary(items))); err != nil {
		h.log.Error("failed to write summary", zap.Error(err))
	}
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	items, ok := h.exportItems(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"facturas_%s.zip\"", h.now().Format("20060102")))

	if err := export.WriteZip(w, items); err != nil {
		h.log.Error("failed to create zip", zap.Error(err))
	}
}

func (h *Handler) exportItems(w http.ResponseWriter, r *http.Request) ([]export.Item, bool) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	items, err := h.export.Export(r.Context(), filter)
	if err != nil {
		h.log.Error("exporting invoices", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return nil, false
	}

	return items, true
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	item, err := h.export.Document(r.Context(), number)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrInvalidIdentifier):
			http.Error(w, "invalid invoice number", http.StatusBadRequest)
		case errors.Is(err, export.ErrNotFound):
			http.Error(w, "invoice not found", http.StatusNotFound)
		default:
			h.log.Error("locating document", zap.String("number", number), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	if item.FilePath == "" {
		http.Error(w, "document not available", http.StatusNotFound)
		return
	}

	f, err := os.Open(item.FilePath)
	if err != nil {
		h.log.Error("opening document", zap.String("path", item.FilePath), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(item.FilePath)))
	http.ServeContent(w, r, filepath.Base(item.FilePath), stat.ModTime(), f)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

// parseFilter reads ?year=2026&month=1. A month needs a year.
func parseFilter(r *http.Request) (history.Filter, error) {
	var filter history.Filter

	q := r.URL.Query()

	if s := q.Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y <= 0 {
			return filter, fmt.Errorf("invalid year %q", s)
		}

		filter.Year = y
	}

	if s := q.Get("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			return filter, fmt.Errorf("invalid month %q", s)
		}

		if filter.Year == 0 {
			return filter, errors.New("month requires year")
		}

		filter.Month = fmt.Sprintf("%04d-%02d", filter.Year, m)
	}

	return filter, nil
}
