package statement

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/importer"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

const maxUploadSize = 10 << 20

type Importer interface {
	Import(bank importer.Bank, r io.Reader) ([]transaction.RawRow, error)
}

type Runner interface {
	Run(ctx context.Context, rows []transaction.RawRow) (*engine.Result, error)
}

type Handler struct {
	importer Importer
	engine   Runner
	log      *zap.Logger
}

func NewHandler(imp Importer, eng Runner, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return &Handler{
		importer: imp,
		engine:   eng,
		log:      log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.upload)
}

// upload imports a bank statement and issues invoices for it. A run that
// stops part-way answers 500 with the partial result so the caller can see
// which invoices were issued before the failure.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	bank, err := importer.ParseBank(r.FormValue("bank"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := h.importer.Import(bank, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A client that hangs up must not stop a run half-way through a statement.
	result, err := h.engine.Run(context.WithoutCancel(r.Context()), rows)
	if result == nil {
		h.log.Error("statement run failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	resp := toResultResponse(result)
	status := http.StatusCreated

	if err != nil {
		resp.Error = err.Error()
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}
