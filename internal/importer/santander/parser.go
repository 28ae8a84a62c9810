package santander

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

// headerScanRows bounds how far down the sheet the header is looked for.
const headerScanRows = 20

// maxSerialDate is 9999-12-31 as an Excel serial.
const maxSerialDate = 2958465

var (
	ErrNoHeader      = errors.New("no header row found in the first 20 rows")
	ErrMissingColumn = errors.New("required column not found")
)

var (
	dateKeywords    = []string{"fecha", "operación", "operacion", "valor", "date"}
	conceptKeywords = []string{"concepto", "descripción", "descripcion", "detalle", "motivo"}
	amountKeywords  = []string{"importe", "cantidad", "monto", "valor", "euros", "eur"}

	// Exact header names, most specific first.
	dateColumns        = []string{"fecha operación", "fecha operacion", "fechaoperación", "fechaoperacion"}
	conceptColumns     = []string{"concepto", "descripción", "descripcion", "detalle", "descrip"}
	amountColumns      = []string{"importe", "cantidad", "monto", "valor", "amount"}
	dateColumnFallback = "fecha"
)

// Parser reads Santander XLSX statement exports.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// columns holds the resolved column positions of a statement sheet.
type columns struct {
	date    int
	concept int
	amount  int
}

func (p *Parser) Parse(r io.Reader) ([]transaction.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	headerIdx := findHeader(rows)
	if headerIdx < 0 {
		return nil, ErrNoHeader
	}

	cols, err := identifyColumns(rows[headerIdx])
	if err != nil {
		return nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var out []transaction.RawRow

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]

		raw := transaction.RawRow{
			Line:        i + 1,
			Date:        serialToDate(cellValue(row, cols.date), date1904),
			Description: cellValue(row, cols.concept),
			Amount:      cellValue(row, cols.amount),
		}

		if raw.Filler() {
			continue
		}

		out = append(out, raw)
	}

	return out, nil
}

// findHeader returns the index of the first row naming at least two of the
// date, concept and amount columns, or -1.
func findHeader(rows [][]string) int {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		var hasDate, hasConcept, hasAmount bool

		for _, cell := range rows[i] {
			v := normalize(cell)
			if v == "" {
				continue
			}

			hasDate = hasDate || containsAny(v, dateKeywords)
			hasConcept = hasConcept || containsAny(v, conceptKeywords)
			hasAmount = hasAmount || containsAny(v, amountKeywords)
		}

		matches := 0
		for _, ok := range []bool{hasDate, hasConcept, hasAmount} {
			if ok {
				matches++
			}
		}

		if matches >= 2 {
			return i
		}
	}

	return -1
}

// identifyColumns maps the header cells to column positions. "Fecha Operación"
// wins over any other date column; otherwise the first column mentioning
// "fecha" is used.
func identifyColumns(header []string) (columns, error) {
	names := make([]string, len(header))
	for i, cell := range header {
		names[i] = normalize(cell)
	}

	cols := columns{
		date:    indexOfAny(names, dateColumns),
		concept: indexOfAny(names, conceptColumns),
		amount:  indexOfAny(names, amountColumns),
	}

	if cols.date < 0 {
		for i, name := range names {
			if strings.Contains(name, dateColumnFallback) {
				cols.date = i
				break
			}
		}
	}

	var missing []string

	if cols.date < 0 {
		missing = append(missing, "fecha")
	}

	if cols.concept < 0 {
		missing = append(missing, "concepto")
	}

	if cols.amount < 0 {
		missing = append(missing, "importe")
	}

	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: %s (header: %s)", ErrMissingColumn,
			strings.Join(missing, ", "), strings.Join(header, " | "))
	}

	return cols, nil
}

// serialToDate converts an Excel serial date to ISO form. Text dates are
// returned unchanged.
func serialToDate(v string, date1904 bool) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial <= 0 || serial > maxSerialDate {
		return v
	}

	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return v
	}

	return t.Format("2006-01-02")
}

func indexOfAny(names, candidates []string) int {
	for _, c := range candidates {
		for i, name := range names {
			if name == c {
				return i
			}
		}
	}

	return -1
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}

	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
