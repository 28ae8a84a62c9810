package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/money"
)

// Company is the issuer printed on every invoice.
type Company struct {
	Name     string
	Address  string
	TaxID    string
	Phone    string
	Email    string
	Registry string
	Tagline  string
	// Concept replaces the statement description on the invoice line when set.
	Concept string
}

var taglineColor = &props.Color{Red: 45, Green: 80, Blue: 22}

type Renderer struct {
	company Company
	dir     string
	log     *zap.Logger
}

func New(company Company, dir string, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}

	return &Renderer{company: company, dir: dir, log: log}
}

// FileName is the document name for an invoice number.
func FileName(number string) string {
	return "FAC-" + number + ".pdf"
}

func (r *Renderer) Dir() string {
	return r.dir
}

func (r *Renderer) Render(ctx context.Context, inv *invoice.Invoice) (*engine.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := r.Generate(inv)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	name := FileName(inv.Number())
	path := filepath.Join(r.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	r.log.Debug("invoice rendered", zap.String("path", path), zap.Int("bytes", len(data)))

	return &engine.Document{Name: name, Path: path, Size: int64(len(data))}, nil
}

// Generate lays out a simplified invoice and returns the PDF bytes.
func (r *Renderer) Generate(inv *invoice.Invoice) ([]byte, error) {
	c := inv.Candidate

	cfg := config.NewBuilder().
		WithLeftMargin(20).
		WithTopMargin(20).
		WithRightMargin(20).
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Factura Simplificada", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, r.company.Tagline, props.Text{
			Size:  8,
			Align: align.Right,
			Color: taglineColor,
		}),
	)

	m.AddRow(12,
		col.New(12).Add(
			text.New("Número # "+inv.Number(), props.Text{Size: 10}),
			text.New("Fecha "+inv.IssueDate.Format("02/01/2006"), props.Text{Size: 10, Top: 5}),
		),
	)

	m.AddRow(30,
		col.New(12).Add(
			text.New(r.company.Name, props.Text{Size: 9, Style: fontstyle.Bold, Top: 4}),
			text.New(r.company.Address, props.Text{Size: 9, Top: 9}),
			text.New("CIF: "+r.company.TaxID, props.Text{Size: 9, Top: 18}),
			text.New("Tel: "+r.company.Phone+"  Email: "+r.company.Email, props.Text{Size: 9, Top: 22}),
		),
	)

	header := props.Text{Size: 8, Style: fontstyle.Bold}
	right := props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}

	m.AddRow(8,
		text.NewCol(4, "CONCEPTO", header),
		text.NewCol(1, "UNIDADES", right),
		text.NewCol(3, "SUBTOTAL", right),
		text.NewCol(1, "IVA", right),
		text.NewCol(3, "TOTAL", right),
	)
	m.AddRow(2, line.NewCol(12))

	cell := props.Text{Size: 8, Align: align.Right}

	m.AddRow(12,
		text.NewCol(4, r.concept(c), props.Text{Size: 8}),
		text.NewCol(1, "1", cell),
		text.NewCol(3, euro(c.Base), cell),
		text.NewCol(1, percent(c), cell),
		text.NewCol(3, euro(c.Gross), cell),
	)
	m.AddRow(2, line.NewCol(12))

	totals := []struct {
		label string
		value money.Cents
	}{
		{"Base imponible", c.Base},
		{"IVA " + percent(c), c.Tax},
		{"TOTAL", c.Gross},
	}

	for _, t := range totals {
		m.AddRow(7,
			col.New(7),
			text.NewCol(2, t.label, props.Text{Size: 9, Style: fontstyle.Bold}),
			text.NewCol(3, euro(t.value), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if r.company.Registry != "" {
		m.AddRow(20,
			text.NewCol(12, r.company.Registry, props.Text{Size: 7, Top: 12, Align: align.Center}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating pdf for %s: %w", inv.Number(), err)
	}

	return doc.GetBytes(), nil
}

func (r *Renderer) concept(c invoice.Candidate) string {
	concept := c.Source.Description
	if r.company.Concept != "" {
		concept = r.company.Concept
	}

	if c.IsSplit() {
		concept = fmt.Sprintf("%s (%d/%d)", concept, c.Part, c.Parts)
	}

	return concept
}

func euro(c money.Cents) string {
	return c.FormatEuropean() + "€"
}

func percent(c invoice.Candidate) string {
	return c.Rate.Shift(2).String() + "%"
}
