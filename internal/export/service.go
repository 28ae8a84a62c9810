package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/render/pdf"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

var ErrNotFound = errors.New("invoice not found")

type Lister interface {
	ListIssued(ctx context.Context, filter history.Filter) ([]*history.Record, error)
}

// Item links an issued invoice record to its document on disk.
type Item struct {
	Record   *history.Record
	FilePath string
}

// Service collects the documents of issued invoices.
type Service struct {
	history  Lister
	renderer engine.Renderer
	dir      string
}

// NewService creates a Service reading documents from dir. When renderer is
// not nil, missing documents are rendered again from the history record.
func NewService(h Lister, renderer engine.Renderer, dir string) *Service {
	return &Service{
		history:  h,
		renderer: renderer,
		dir:      dir,
	}
}

// Export returns one item per issued invoice matching the filter.
func (s *Service) Export(ctx context.Context, filter history.Filter) ([]Item, error) {
	records, err := s.history.ListIssued(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}

	// Pre-allocate to avoid reallocations.
	items := make([]Item, 0, len(records))

	for _, r := range records {
		path, err := s.locate(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("locating document for %s: %w", r.Number, err)
		}

		items = append(items, Item{Record: r, FilePath: path})
	}

	return items, nil
}

// Document returns the item for a single invoice number.
func (s *Service) Document(ctx context.Context, number string) (Item, error) {
	id, err := invoice.ParseIdentifier(number, century(time.Now()))
	if err != nil {
		return Item{}, err
	}

	records, err := s.history.ListIssued(ctx, history.Filter{Year: id.Year})
	if err != nil {
		return Item{}, fmt.Errorf("listing invoices: %w", err)
	}

	for _, r := range records {
		if r.Sequence != id.Seq {
			continue
		}

		path, err := s.locate(ctx, r)
		if err != nil {
			return Item{}, fmt.Errorf("locating document for %s: %w", r.Number, err)
		}

		return Item{Record: r, FilePath: path}, nil
	}

	return Item{}, fmt.Errorf("%w: %s", ErrNotFound, number)
}

func (s *Service) locate(ctx context.Context, r *history.Record) (string, error) {
	path := filepath.Join(s.dir, pdf.FileName(r.Number))

	_, err := os.Stat(path)
	if err == nil {
		return path, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if s.renderer == nil {
		return "", nil
	}

	doc, err := s.renderer.Render(ctx, InvoiceFromRecord(r))
	if err != nil {
		return "", err
	}

	return doc.Path, nil
}

// InvoiceFromRecord rebuilds the issued invoice a record was written for.
func InvoiceFromRecord(r *history.Record) *invoice.Invoice {
	return &invoice.Invoice{
		ID:        invoice.Identifier{Year: r.Year, Seq: r.Sequence},
		IssueDate: r.IssueDate,
		Status:    invoice.Status(r.Status),
		SourceKey: r.SourceKey,
		Candidate: invoice.Candidate{
			Source: transaction.Transaction{
				Date:        r.TransactionDate,
				Description: r.Description,
				Amount:      r.SourceAmount,
			},
			Part:  r.Part,
			Parts: r.Parts,
			Gross: r.Gross,
			Base:  r.Base,
			Tax:   r.Tax,
			Rate:  r.TaxRate,
		},
	}
}

// WriteZip bundles the documents of items into a zip archive. Items without
// a document are skipped.
func WriteZip(w io.Writer, items []Item) error {
	zw := zip.NewWriter(w)

	for _, item := range items {
		if item.FilePath == "" {
			continue
		}

		if err := addFile(zw, item.FilePath); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	return nil
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dst, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("adding %s: %w", path, err)
	}

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// GenerateSummary creates a plain-text listing of the exported items.
func GenerateSummary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		r := item.Record

		fileStatus := "Sin documento"
		if item.FilePath != "" {
			fileStatus = filepath.Base(item.FilePath)
		}

		desc := r.Description
		if r.Parts > 1 {
			desc = fmt.Sprintf("%s (%d/%d)", desc, r.Part, r.Parts)
		}

		sb.WriteString(fmt.Sprintf("* %s | %s | %s | %s € | %s\n",
			r.Number, r.IssueDate.Format("2006-01-02"), desc, r.Gross.FormatEuropean(), fileStatus))
	}

	return sb.String()
}

func century(now time.Time) int {
	return now.Year() / 100 * 100
}
