// Package money holds the fixed two-decimal amount used for prices and totals.
package money

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value rounded to two fractional digits. Its JSON form
// is a string such as "300.00".
type Amount struct {
	d decimal.Decimal
}

var Zero = Amount{}

func FromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.Round(2)}
}

func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q", s)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Mul multiplies by a quantity, as in price*quantity.
func (a Amount) Mul(qty int) Amount {
	return FromDecimal(a.d.Mul(decimal.NewFromInt(int64(qty))))
}

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

func (a Amount) String() string {
	return a.d.StringFixed(2)
}

func Sum(values ...Amount) Amount {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Zero
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount as its fixed-point text, which both postgres
// numeric and sqlite accept.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*a = parsed
	case float64:
		*a = FromDecimal(decimal.NewFromFloat(v))
	case int64:
		*a = FromInt(v)
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
