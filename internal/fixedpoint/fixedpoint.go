package fixedpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// ErrNumericOverflow is returned when the exact result of an operation cannot
// be represented in 128 bits, including division by zero.
var ErrNumericOverflow = errors.New("fixedpoint: numeric overflow")

// FracBits is the number of fractional bits: values are raw/2^48.
const FracBits = 48

// Fixed is a signed 128-bit fixed-point number with 80 integer bits and
// 48 fractional bits. The struct holds the raw two's-complement bit pattern,
// so Fixed is comparable and has a fixed in-memory layout — records that
// embed it stay directly storable.
//
// All arithmetic is checked: an unrepresentable result yields
// ErrNumericOverflow instead of wrapping. Intermediate math runs over
// math/big, so intermediate products never lose bits.
type Fixed struct {
	hi int64
	lo uint64
}

var (
	// i128 bounds for the raw representation
	minRaw = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxRaw = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

	mask64  = new(big.Int).SetUint64(^uint64(0))
	mask128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	pow48f = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), FracBits))
)

// Zero returns the zero value.
func Zero() Fixed { return Fixed{} }

// One returns the value 1.
func One() Fixed { return Fixed{lo: 1 << FracBits} }

// FromRaw reconstructs a Fixed from its persisted raw i128 halves.
// Total and lossless for every bit pattern.
func FromRaw(hi int64, lo uint64) Fixed {
	return Fixed{hi: hi, lo: lo}
}

// Raw returns the raw two's-complement i128 as (high, low) halves.
func (f Fixed) Raw() (hi int64, lo uint64) {
	return f.hi, f.lo
}

// FromInt converts an integer to fixed point. Always exact: the integer part
// carries 80 bits.
func FromInt(i int64) Fixed {
	raw := new(big.Int).Lsh(big.NewInt(i), FracBits)
	f, _ := fromRawBig(raw)
	return f
}

// FromUint converts an unsigned integer to fixed point. Always exact.
func FromUint(u uint64) Fixed {
	raw := new(big.Int).Lsh(new(big.Int).SetUint64(u), FracBits)
	f, _ := fromRawBig(raw)
	return f
}

// FromFloat64 converts a float to fixed point, truncating excess precision.
// Intended for test inputs and reporting, not ledger state.
func FromFloat64(v float64) (Fixed, error) {
	bf := big.NewFloat(v)
	if bf.IsInf() {
		return Fixed{}, ErrNumericOverflow
	}
	bf.Mul(bf, pow48f)
	raw, _ := bf.Int(nil)
	return fromRawBig(raw)
}

// rawBig returns the raw bits as a signed big.Int.
func (f Fixed) rawBig() *big.Int {
	x := big.NewInt(f.hi)
	x.Lsh(x, 64)
	return x.Add(x, new(big.Int).SetUint64(f.lo))
}

// fromRawBig packs a signed big.Int raw value back into halves, checking the
// i128 range.
func fromRawBig(raw *big.Int) (Fixed, error) {
	if raw.Cmp(minRaw) < 0 || raw.Cmp(maxRaw) > 0 {
		return Fixed{}, ErrNumericOverflow
	}
	// Two's-complement view: big.Int And treats operands as infinite
	// two's complement, so this is exact for negatives too.
	bits := new(big.Int).And(raw, mask128)
	lo := new(big.Int).And(bits, mask64).Uint64()
	hi := int64(new(big.Int).Rsh(bits, 64).Uint64())
	return Fixed{hi: hi, lo: lo}, nil
}

// Add returns f+g or ErrNumericOverflow.
func (f Fixed) Add(g Fixed) (Fixed, error) {
	return fromRawBig(new(big.Int).Add(f.rawBig(), g.rawBig()))
}

// Sub returns f-g or ErrNumericOverflow.
func (f Fixed) Sub(g Fixed) (Fixed, error) {
	return fromRawBig(new(big.Int).Sub(f.rawBig(), g.rawBig()))
}

// Mul returns f*g or ErrNumericOverflow. The 256-bit product is shifted back
// down with an arithmetic shift, so results round toward negative infinity.
func (f Fixed) Mul(g Fixed) (Fixed, error) {
	prod := new(big.Int).Mul(f.rawBig(), g.rawBig())
	return fromRawBig(prod.Rsh(prod, FracBits))
}

// Div returns f/g, truncated toward zero. Division by zero is reported as
// ErrNumericOverflow, matching the arithmetic error contract.
func (f Fixed) Div(g Fixed) (Fixed, error) {
	if g.hi == 0 && g.lo == 0 {
		return Fixed{}, ErrNumericOverflow
	}
	num := f.rawBig()
	num.Lsh(num, FracBits)
	return fromRawBig(num.Quo(num, g.rawBig()))
}

// Neg returns -f. Only the minimum value overflows.
func (f Fixed) Neg() (Fixed, error) {
	return fromRawBig(new(big.Int).Neg(f.rawBig()))
}

// Cmp compares f and g as mathematical values: -1, 0 or +1.
// Agrees with comparing the raw i128 forms, so persisted ordering holds.
func (f Fixed) Cmp(g Fixed) int {
	if f.hi != g.hi {
		if f.hi < g.hi {
			return -1
		}
		return 1
	}
	if f.lo != g.lo {
		if f.lo < g.lo {
			return -1
		}
		return 1
	}
	return 0
}

// IsZero reports whether f == 0.
func (f Fixed) IsZero() bool { return f.hi == 0 && f.lo == 0 }

// IsPositive reports whether f > 0.
func (f Fixed) IsPositive() bool { return f.hi > 0 || (f.hi == 0 && f.lo > 0) }

// IsNegative reports whether f < 0.
func (f Fixed) IsNegative() bool { return f.hi < 0 }

// Float64 returns the nearest float64. Lossy for values needing more than 53
// bits of precision; reporting use only.
func (f Fixed) Float64() float64 {
	bf := new(big.Float).SetInt(f.rawBig())
	bf.Quo(bf, pow48f)
	v, _ := bf.Float64()
	return v
}

// RawString renders the raw i128 as a decimal string, the lossless wire form
// used in JSON payloads and Postgres NUMERIC columns.
func (f Fixed) RawString() string {
	return f.rawBig().String()
}

// ParseRaw parses the decimal raw-i128 wire form produced by RawString.
func ParseRaw(s string) (Fixed, error) {
	raw, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Fixed{}, errors.New("fixedpoint: malformed raw value")
	}
	return fromRawBig(raw)
}

// String renders the value in decimal with full fractional precision trimmed
// to 12 places, for logs and debugging.
func (f Fixed) String() string {
	r := new(big.Rat).SetFrac(f.rawBig(), new(big.Int).Lsh(big.NewInt(1), FracBits))
	return r.FloatString(12)
}

// MarshalJSON encodes the raw wire form as a JSON string. Quoting keeps the
// full 128 bits intact through JSON tooling that reads numbers as float64.
func (f Fixed) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.RawString() + `"`), nil
}

// UnmarshalJSON decodes the quoted raw wire form.
func (f *Fixed) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("fixedpoint: %w", err)
	}
	v, err := ParseRaw(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
