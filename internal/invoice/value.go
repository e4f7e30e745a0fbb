package invoice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownText is how an absent label renders in text exports.
const UnknownText = "unknown"

// Value is a single extracted scalar. The zero value is Unknown.
type Value struct {
	kind   Kind
	raw    string
	number decimal.Decimal
	unit   string
	known  bool
}

// Unknown is the sentinel for a label that was not found.
var Unknown = Value{}

// TextValue wraps a matched string.
func TextValue(raw string) Value {
	return Value{kind: KindText, raw: raw, known: true}
}

// MoneyValue parses an amount such as "1,234.56".
func MoneyValue(raw string) (Value, error) {
	n, err := parseNumber(raw)
	if err != nil {
		return Unknown, err
	}
	return Value{kind: KindMoney, raw: raw, number: n, known: true}, nil
}

// MeasureValue parses a quantity such as "1,250.5" with its unit.
func MeasureValue(raw, unit string) (Value, error) {
	n, err := parseNumber(raw)
	if err != nil {
		return Unknown, err
	}
	return Value{kind: KindMeasure, raw: raw, number: n, unit: normalizeUnit(unit), known: true}, nil
}

func parseNumber(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	n, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return n, nil
}

func normalizeUnit(unit string) string {
	switch u := strings.ToUpper(strings.TrimSpace(unit)); u {
	case "KGS":
		return "KG"
	case "LBS":
		return "LB"
	case "CBM":
		return "M3"
	case "FT3":
		return "CFT"
	default:
		return u
	}
}

// Known reports whether the label was found.
func (v Value) Known() bool {
	return v.known
}

// Kind returns the interpretation of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Raw returns the literal substring captured from the page text.
func (v Value) Raw() string {
	return v.raw
}

// Number returns the parsed amount for money and measure values.
func (v Value) Number() (decimal.Decimal, bool) {
	if !v.known || v.kind == KindText {
		return decimal.Zero, false
	}
	return v.number, true
}

// Unit returns the normalized unit of a measure value.
func (v Value) Unit() string {
	return v.unit
}

func (v Value) String() string {
	if !v.known {
		return UnknownText
	}
	switch v.kind {
	case KindMoney:
		return v.number.StringFixed(2)
	case KindMeasure:
		return v.number.String() + " " + v.unit
	default:
		return v.raw
	}
}

// MarshalJSON renders unknown as null and money as a JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.known {
		return []byte("null"), nil
	}
	if v.kind == KindMoney {
		return json.Marshal(json.Number(v.number.StringFixed(2)))
	}
	return json.Marshal(v.String())
}
