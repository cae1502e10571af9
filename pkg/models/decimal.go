package models

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// Decimal wraps [decimal.Decimal] so monetary amounts and quantities survive
// the trip through SurrealDB's CBOR wire format without losing precision.
// Over JSON the embedded type's own marshaling applies; over CBOR the value
// is carried as its exact decimal string.
type Decimal struct {
	decimal.Decimal
}

func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{Decimal: d}, nil
}

// MustDecimal panics on malformed input. For literals in tests and seed data.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func DecimalFromFloat(f float64) Decimal {
	return Decimal{Decimal: decimal.NewFromFloat(f)}
}

func (d Decimal) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(d.String())
}

func (d *Decimal) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err == nil {
		dec, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", s, err)
		}
		d.Decimal = dec
		return nil
	}

	// Tolerate numeric encodings written by other producers.
	var f float64
	if err := cbor.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("cannot decode decimal: %w", err)
	}
	d.Decimal = decimal.NewFromFloat(f)
	return nil
}
