package importer

import (
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/factura/internal/importer/cgd"
	"github.com/MrJamesThe3rd/factura/internal/importer/santander"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

type Service struct {
	importers map[Bank]Importer
}

func NewService() *Service {
	return &Service{
		importers: map[Bank]Importer{
			BankCGD:       cgd.NewParser(),
			BankSantander: santander.NewParser(),
		},
	}
}

// ParseBank validates a bank name coming from a form or query string.
func ParseBank(s string) (Bank, error) {
	b := Bank(s)
	for _, known := range Banks() {
		if b == known {
			return b, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownBank, s)
}

func (s *Service) Import(bank Bank, r io.Reader) ([]transaction.RawRow, error) {
	imp, ok := s.importers[bank]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBank, bank)
	}

	rows, err := imp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("import %s statement: %w", bank, err)
	}

	return rows, nil
}
