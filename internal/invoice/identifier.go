package invoice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const identifierPrefix = "T"

var ErrInvalidIdentifier = errors.New("invalid invoice identifier")

// Identifier is a per-year invoice number. Seq starts at 1 each year.
type Identifier struct {
	Year int
	Seq  int
}

// String renders the identifier as T<YY><NNNN>. Sequences past 9999 widen
// instead of wrapping, so the 10000th invoice of 2026 is T2610000.
func (id Identifier) String() string {
	return fmt.Sprintf("%s%02d%04d", identifierPrefix, id.Year%100, id.Seq)
}

func (id Identifier) IsZero() bool {
	return id.Seq == 0
}

// Next returns the identifier that follows id in the same year.
func (id Identifier) Next() Identifier {
	return Identifier{Year: id.Year, Seq: id.Seq + 1}
}

// ParseIdentifier is the inverse of Identifier.String. Only the two-digit
// year is encoded, so the century is taken from century (e.g. 2000).
func ParseIdentifier(s string, century int) (Identifier, error) {
	s = strings.TrimSpace(s)

	rest, ok := strings.CutPrefix(s, identifierPrefix)
	if !ok || len(rest) < 6 {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}

	yy, err := strconv.Atoi(rest[:2])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}

	seq, err := strconv.Atoi(rest[2:])
	if err != nil || seq <= 0 {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}

	return Identifier{Year: century + yy, Seq: seq}, nil
}
