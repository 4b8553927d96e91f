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
	"fmt"
	"math/big"
	"strings"
)

// Kind enumerates the value categories storable in contract state.
type Kind byte

const (
	KindUint Kind = iota
	KindInt
	KindBool
	KindAddress
	KindBytes
	KindMapping
)

// Overflow selects the arithmetic regime applied to results of the
// numeric operators on values of a type. Specifications may describe
// contracts compiled under different overflow-checking regimes, so the
// regime is part of the declared field type rather than a global setting.
type Overflow byte

const (
	// Trap reports out-of-range results as arithmetic errors. This
	// matches checked arithmetic (Solidity >= 0.8) and is the default.
	Trap Overflow = iota
	// Wrap reduces results modulo the type width.
	Wrap
	// Saturate clamps results to the nearest representable bound.
	Saturate
)

// Type describes the shape of a single typed value. Numeric kinds carry
// a bit width; a width of zero means arbitrary precision. Types are
// plain values and are compared structurally.
type Type struct {
	Kind Kind
	Bits uint16 // 0 = arbitrary precision, numeric kinds only
	Mode Overflow

	// Key and Elem are set for KindMapping only.
	Key  *Type
	Elem *Type
}

var (
	Bool    = Type{Kind: KindBool}
	Address = Type{Kind: KindAddress}
	Bytes   = Type{Kind: KindBytes}
)

// Uint returns an unsigned integer type of the given width.
// Uint(0) is the arbitrary-precision non-negative integer.
func Uint(bits uint16) Type {
	return Type{Kind: KindUint, Bits: bits}
}

// Int returns a signed integer type of the given width.
// Int(0) is the arbitrary-precision integer.
func Int(bits uint16) Type {
	return Type{Kind: KindInt, Bits: bits}
}

// Mapping returns a mapping type from key to elem.
func Mapping(key, elem Type) Type {
	return Type{Kind: KindMapping, Key: &key, Elem: &elem}
}

// WithMode returns a copy of the type using the given overflow regime.
func (t Type) WithMode(m Overflow) Type {
	t.Mode = m
	return t
}

// IsNumeric reports whether values of the type support arithmetic.
func (t Type) IsNumeric() bool {
	return t.Kind == KindUint || t.Kind == KindInt
}

// Equal compares types structurally. The overflow regime is a property
// of how values are computed, not of what they are, and is ignored.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Bits != o.Bits {
		return false
	}
	if t.Kind != KindMapping {
		return true
	}
	return t.Key.Equal(*o.Key) && t.Elem.Equal(*o.Elem)
}

// Zero returns the default value of the type, mirroring default-valued
// contract storage: numeric zero, false, the zero address, empty bytes,
// or an empty mapping.
func (t Type) Zero() Value {
	switch t.Kind {
	case KindUint, KindInt:
		return Value{typ: t, num: new(big.Int)}
	case KindBool:
		return Value{typ: t}
	case KindAddress:
		return Value{typ: t}
	case KindBytes:
		return Value{typ: t, data: []byte{}}
	case KindMapping:
		return NewMap(t)
	}
	panic(fmt.Sprintf("unknown kind %d", t.Kind))
}

func (t Type) String() string {
	switch t.Kind {
	case KindUint:
		if t.Bits == 0 {
			return "uint"
		}
		return fmt.Sprintf("uint%d", t.Bits)
	case KindInt:
		if t.Bits == 0 {
			return "int"
		}
		return fmt.Sprintf("int%d", t.Bits)
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	case KindBytes:
		return "bytes"
	case KindMapping:
		return fmt.Sprintf("mapping(%v => %v)", t.Key, t.Elem)
	}
	return fmt.Sprintf("unknown(%d)", t.Kind)
}

// ParseType is the inverse of Type.String. It is used when re-reading
// persisted values whose types must be re-anchored in a schema registry.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "bool":
		return Bool, nil
	case s == "address":
		return Address, nil
	case s == "bytes":
		return Bytes, nil
	case strings.HasPrefix(s, "uint"):
		return parseWidth(s, "uint", KindUint)
	case strings.HasPrefix(s, "int"):
		return parseWidth(s, "int", KindInt)
	case strings.HasPrefix(s, "mapping(") && strings.HasSuffix(s, ")"):
		inner := s[len("mapping(") : len(s)-1]
		sep := topLevelArrow(inner)
		if sep < 0 {
			return Type{}, fmt.Errorf("malformed mapping type %q", s)
		}
		key, err := ParseType(inner[:sep])
		if err != nil {
			return Type{}, err
		}
		elem, err := ParseType(inner[sep+2:])
		if err != nil {
			return Type{}, err
		}
		return Mapping(key, elem), nil
	}
	return Type{}, fmt.Errorf("unknown type %q", s)
}

func parseWidth(s, prefix string, kind Kind) (Type, error) {
	rest := s[len(prefix):]
	if rest == "" {
		return Type{Kind: kind}, nil
	}
	var bits uint16
	if _, err := fmt.Sscanf(rest, "%d", &bits); err != nil || bits == 0 || bits > 256 {
		return Type{}, fmt.Errorf("invalid width in type %q", s)
	}
	return Type{Kind: kind, Bits: bits}, nil
}

// topLevelArrow locates the "=>" separating key and element types,
// skipping over nested mapping parentheses.
func topLevelArrow(s string) int {
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '=':
			if depth == 0 && s[i+1] == '>' {
				return i
			}
		}
	}
	return -1
}

// Adopt retypes a structurally compatible value with the receiver type,
// attaching the declared width and overflow regime. It is used when
// loading persisted values, whose serialized form does not carry the
// regime, back under their schema declaration.
func (t Type) Adopt(v Value) (Value, error) {
	if !t.Equal(v.typ) {
		return Value{}, fmt.Errorf("%w: cannot adopt %v as %v", ErrTypeMismatch, v.typ, t)
	}
	if t.Kind != KindMapping {
		v.typ = t
		return v, nil
	}
	adopted := NewMap(t)
	var err error
	v.ForEachEntry(func(key, val Value) {
		if err != nil {
			return
		}
		var k, e Value
		if k, err = t.Key.Adopt(key); err != nil {
			return
		}
		if e, err = t.Elem.Adopt(val); err != nil {
			return
		}
		adopted, err = adopted.WithEntry(k, e)
	})
	if err != nil {
		return Value{}, err
	}
	return adopted, nil
}
