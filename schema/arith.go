// Copyright 2025 The Fidelio Authors
// This file is part of Fidelio, a behavioral verification engine for
// smart contracts.
//
// Fidelio is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Fidelio is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Fidelio. If not, see <http://www.gnu.org/licenses/>.

package schema

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrTypeMismatch reports an operation applied to values of
	// incompatible or unsupported types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrOverflow reports a result not representable in the declared
	// type under the trapping regime. Underflow of unsigned types is
	// reported through the same sentinel.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrDivisionByZero reports division or modulo by zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// Add returns a+b normalized under the result type's overflow regime.
// Both operands must share a numeric type; the left operand's declared
// regime governs the result.
func Add(a, b Value) (Value, error) {
	return binop(a, b, func(x, y, z *big.Int) error {
		z.Add(x, y)
		return nil
	})
}

// Sub returns a-b normalized under the result type's overflow regime.
func Sub(a, b Value) (Value, error) {
	return binop(a, b, func(x, y, z *big.Int) error {
		z.Sub(x, y)
		return nil
	})
}

// Mul returns a*b normalized under the result type's overflow regime.
func Mul(a, b Value) (Value, error) {
	return binop(a, b, func(x, y, z *big.Int) error {
		z.Mul(x, y)
		return nil
	})
}

// Div returns the truncated quotient a/b, matching on-chain integer
// division. Division by zero is an error, never a silent zero.
func Div(a, b Value) (Value, error) {
	return binop(a, b, func(x, y, z *big.Int) error {
		if y.Sign() == 0 {
			return ErrDivisionByZero
		}
		z.Quo(x, y)
		return nil
	})
}

// Mod returns the remainder of the truncated division a/b.
func Mod(a, b Value) (Value, error) {
	return binop(a, b, func(x, y, z *big.Int) error {
		if y.Sign() == 0 {
			return ErrDivisionByZero
		}
		z.Rem(x, y)
		return nil
	})
}

// Neg returns -a normalized under the type's overflow regime. Negating
// a non-zero unsigned value traps unless the regime says otherwise.
func Neg(a Value) (Value, error) {
	if !a.typ.IsNumeric() {
		return Value{}, fmt.Errorf("%w: cannot negate %v", ErrTypeMismatch, a.typ)
	}
	n, err := normalize(a.typ, new(big.Int).Neg(a.num))
	if err != nil {
		return Value{}, err
	}
	return Value{typ: a.typ, num: n}, nil
}

// Compare orders two numeric values, returning -1, 0 or +1.
func Compare(a, b Value) (int, error) {
	if !a.typ.IsNumeric() || !b.typ.IsNumeric() {
		return 0, fmt.Errorf("%w: cannot order %v and %v", ErrTypeMismatch, a.typ, b.typ)
	}
	if !a.typ.Equal(b.typ) {
		return 0, fmt.Errorf("%w: cannot order %v and %v", ErrTypeMismatch, a.typ, b.typ)
	}
	return a.num.Cmp(b.num), nil
}

func binop(a, b Value, op func(x, y, z *big.Int) error) (Value, error) {
	if !a.typ.IsNumeric() || !b.typ.IsNumeric() {
		return Value{}, fmt.Errorf("%w: arithmetic needs numeric operands, got %v and %v", ErrTypeMismatch, a.typ, b.typ)
	}
	if !a.typ.Equal(b.typ) {
		return Value{}, fmt.Errorf("%w: mixed operand types %v and %v", ErrTypeMismatch, a.typ, b.typ)
	}
	z := new(big.Int)
	if err := op(a.num, b.num, z); err != nil {
		return Value{}, err
	}
	n, err := normalize(a.typ, z)
	if err != nil {
		return Value{}, err
	}
	return Value{typ: a.typ, num: n}, nil
}

// normalize fits x into the range of t under t's overflow regime. The
// argument may be clobbered; the result aliases it.
func normalize(t Type, x *big.Int) (*big.Int, error) {
	if t.Bits == 0 {
		if t.Kind == KindUint && x.Sign() < 0 {
			// A widthless unsigned type has no modulus to wrap around,
			// so both Trap and Wrap report the underflow.
			if t.Mode == Saturate {
				return x.SetUint64(0), nil
			}
			return nil, fmt.Errorf("%w: negative result %v for %v", ErrOverflow, x, t)
		}
		return x, nil
	}

	modulus := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits))
	var lo, hi *big.Int // inclusive bounds
	if t.Kind == KindUint {
		lo = new(big.Int)
		hi = new(big.Int).Sub(modulus, big.NewInt(1))
	} else {
		half := new(big.Int).Rsh(modulus, 1)
		lo = new(big.Int).Neg(half)
		hi = new(big.Int).Sub(half, big.NewInt(1))
	}

	if x.Cmp(lo) >= 0 && x.Cmp(hi) <= 0 {
		return x, nil
	}

	switch t.Mode {
	case Wrap:
		x.Mod(x, modulus) // big.Int Mod is Euclidean, result in [0, modulus)
		if t.Kind == KindInt && x.Cmp(hi) > 0 {
			x.Sub(x, modulus)
		}
		return x, nil
	case Saturate:
		if x.Cmp(lo) < 0 {
			return x.Set(lo), nil
		}
		return x.Set(hi), nil
	default:
		return nil, fmt.Errorf("%w: result %v out of range for %v", ErrOverflow, x, t)
	}
}
