package exif

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a decoded tag value. The concrete type is fixed by the TIFF field
// type of the entry:
//
//	BYTE, UNDEFINED   Uint (one value) or Bytes
//	ASCII             String
//	SHORT, LONG       Uint (one value) or Uints
//	RATIONAL          Rational (one value) or Rationals
//	SLONG             Int (one value) or Ints
//	SRATIONAL         Float (one value) or Floats
type Value interface {
	isValue()
}

type (
	Uint   uint32
	Uints  []uint32
	Int    int32
	Ints   []int32
	String string
	Bytes  []byte
	Float  float64
	Floats []float64
)

// Rational is an unsigned TIFF rational. Value is Numerator/Denominator and
// is +Inf or NaN when the denominator is zero.
type Rational struct {
	Numerator   uint32
	Denominator uint32
	Value       float64
}

type Rationals []Rational

func (Uint) isValue()      {}
func (Uints) isValue()     {}
func (Int) isValue()       {}
func (Ints) isValue()      {}
func (String) isValue()    {}
func (Bytes) isValue()     {}
func (Float) isValue()     {}
func (Floats) isValue()    {}
func (Rational) isValue()  {}
func (Rationals) isValue() {}

func newRational(numerator, denominator uint32) Rational {
	return Rational{
		Numerator:   numerator,
		Denominator: denominator,
		Value:       float64(numerator) / float64(denominator),
	}
}

// MarshalJSON emits the bytes as a number array rather than base64.
func (b Bytes) MarshalJSON() ([]byte, error) {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return json.Marshal(out)
}

func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(finite(float64(f)))
}

func (f Floats) MarshalJSON() ([]byte, error) {
	out := make([]any, len(f))
	for i, v := range f {
		out[i] = finite(v)
	}
	return json.Marshal(out)
}

func (r Rational) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Numerator   uint32 `json:"numerator"`
		Denominator uint32 `json:"denominator"`
		Value       any    `json:"value"`
	}{r.Numerator, r.Denominator, finite(r.Value)})
}

// finite maps non-finite floats to nil so they encode as JSON null.
func finite(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return f
}

// Format renders v the way the pretty printer shows it: scalars as text,
// rationals with their fraction and sequences by length.
func Format(v Value) string {
	switch v := v.(type) {
	case Uint:
		return strconv.FormatUint(uint64(v), 10)
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case String:
		return string(v)
	case Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Rational:
		return fmt.Sprintf("%s [%d/%d]", strconv.FormatFloat(v.Value, 'g', -1, 64), v.Numerator, v.Denominator)
	case Uints:
		return fmt.Sprintf("[%d values]", len(v))
	case Ints:
		return fmt.Sprintf("[%d values]", len(v))
	case Bytes:
		return fmt.Sprintf("[%d values]", len(v))
	case Floats:
		return fmt.Sprintf("[%d values]", len(v))
	case Rationals:
		return fmt.Sprintf("[%d values]", len(v))
	default:
		return ""
	}
}

// Directory maps tag names to their decoded values.
type Directory map[string]Value
