package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units (1 EUR = 100 Cents).
type Cents int64

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// Parse reads a statement amount into cents.
//
// Both European ("1.234,56", "-588,74") and machine ("1234.56", "1,234.56")
// forms are accepted. When both separators appear, the last one is the decimal
// separator. Currency markers (€, EUR) and whitespace are ignored. Values with
// more than two decimals are rounded half to even.
func Parse(s string) (Cents, error) {
	clean := normalize(s)
	if clean == "" || clean == "-" || clean == "+" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return FromDecimal(d), nil
}

// FromDecimal converts a decimal currency amount to cents, rounding half to even.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).RoundBank(0).IntPart())
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount with a dot decimal separator, e.g. "-1234.56".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Decode lets envconfig read amounts such as "500" or "500,00".
func (c *Cents) Decode(value string) error {
	v, err := Parse(value)
	if err != nil {
		return err
	}

	*c = v

	return nil
}

// FormatEuropean formats the amount as "1.234,56".
func (c Cents) FormatEuropean() string {
	neg := c < 0
	if neg {
		c = -c
	}

	units := int64(c) / 100
	minor := int64(c) % 100

	digits := fmt.Sprintf("%d", units)

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}

	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte('.')
		}

		sb.WriteRune(r)
	}

	fmt.Fprintf(&sb, ",%02d", minor)

	return sb.String()
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "EUR")
	s = strings.NewReplacer("€", "", " ", "", "\u00a0", "").Replace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	return s
}
