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
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Value is an immutable typed value: an integer, boolean, address, byte
// sequence, or a mapping thereof. The zero Value is invalid; values are
// produced by the constructors below or by Type.Zero.
type Value struct {
	typ     Type
	num     *big.Int
	boolean bool
	addr    common.Address
	data    []byte
	entries map[string]mapEntry
}

type mapEntry struct {
	key Value
	val Value
}

// Integer creates a numeric value of the given type. The magnitude is
// validated against the type width under the type's overflow regime, so
// constructing an out-of-range trapping value fails rather than smuggling
// an unrepresentable quantity into a snapshot.
func Integer(t Type, x *big.Int) (Value, error) {
	if !t.IsNumeric() {
		return Value{}, fmt.Errorf("%w: %v is not numeric", ErrTypeMismatch, t)
	}
	n, err := normalize(t, new(big.Int).Set(x))
	if err != nil {
		return Value{}, err
	}
	return Value{typ: t, num: n}, nil
}

// Uint64 creates a numeric value from a machine word. It panics on
// out-of-range input and is intended for literals and tests.
func Uint64(t Type, x uint64) Value {
	v, err := Integer(t, new(big.Int).SetUint64(x))
	if err != nil {
		panic(err)
	}
	return v
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Value{typ: Bool, boolean: b}
}

// NewAddress creates an address value.
func NewAddress(a common.Address) Value {
	return Value{typ: Address, addr: a}
}

// NewBytes creates a byte-sequence value. The input is copied.
func NewBytes(b []byte) Value {
	data := make([]byte, len(b))
	copy(data, b)
	return Value{typ: Bytes, data: data}
}

// NewMap creates an empty mapping value of the given mapping type.
func NewMap(t Type) Value {
	if t.Kind != KindMapping {
		panic(fmt.Sprintf("NewMap called with non-mapping type %v", t))
	}
	return Value{typ: t, entries: map[string]mapEntry{}}
}

// WithEntry returns a copy of a mapping value with one entry replaced.
// The receiver is left untouched.
func (v Value) WithEntry(key, val Value) (Value, error) {
	if v.typ.Kind != KindMapping {
		return Value{}, fmt.Errorf("%w: cannot index %v", ErrTypeMismatch, v.typ)
	}
	if !key.typ.Equal(*v.typ.Key) {
		return Value{}, fmt.Errorf("%w: mapping key is %v, got %v", ErrTypeMismatch, v.typ.Key, key.typ)
	}
	if !val.typ.Equal(*v.typ.Elem) {
		return Value{}, fmt.Errorf("%w: mapping element is %v, got %v", ErrTypeMismatch, v.typ.Elem, val.typ)
	}
	entries := make(map[string]mapEntry, len(v.entries)+1)
	for k, e := range v.entries {
		entries[k] = e
	}
	entries[key.canonical()] = mapEntry{key: key, val: val}
	return Value{typ: v.typ, entries: entries}, nil
}

// Type returns the type of the value.
func (v Value) Type() Type {
	return v.typ
}

// Big returns a copy of the numeric payload.
func (v Value) Big() *big.Int {
	return new(big.Int).Set(v.num)
}

// Bool returns the boolean payload.
func (v Value) Bool() bool {
	return v.boolean
}

// Addr returns the address payload.
func (v Value) Addr() common.Address {
	return v.addr
}

// Data returns a copy of the byte-sequence payload.
func (v Value) Data() []byte {
	data := make([]byte, len(v.data))
	copy(data, v.data)
	return data
}

// At performs a mapping lookup. A key with no prior write yields the
// element type's zero value and false, mirroring default-valued storage.
func (v Value) At(key Value) (Value, bool) {
	if e, ok := v.entries[key.canonical()]; ok {
		return e.val, true
	}
	return v.typ.Elem.Zero(), false
}

// MapLen returns the number of explicitly written mapping entries.
func (v Value) MapLen() int {
	return len(v.entries)
}

// ForEachEntry iterates over the written entries of a mapping value in
// canonical key order.
func (v Value) ForEachEntry(h func(key, val Value)) {
	keys := make([]string, 0, len(v.entries))
	for k := range v.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := v.entries[k]
		h(e.key, e.val)
	}
}

// Equal compares two values semantically. Mapping entries holding the
// element's zero value are indistinguishable from absent entries, as in
// contract storage.
func (v Value) Equal(o Value) bool {
	if !v.typ.Equal(o.typ) {
		return false
	}
	switch v.typ.Kind {
	case KindUint, KindInt:
		return v.num.Cmp(o.num) == 0
	case KindBool:
		return v.boolean == o.boolean
	case KindAddress:
		return v.addr == o.addr
	case KindBytes:
		return string(v.data) == string(o.data)
	case KindMapping:
		equal := true
		check := func(a, b Value) func(key, _ Value) {
			return func(key, _ Value) {
				av, _ := a.At(key)
				bv, _ := b.At(key)
				if !av.Equal(bv) {
					equal = false
				}
			}
		}
		v.ForEachEntry(check(v, o))
		o.ForEachEntry(check(v, o))
		return equal
	}
	return false
}

// IsZero reports whether the value equals its type's zero value.
func (v Value) IsZero() bool {
	return v.Equal(v.typ.Zero())
}

func (v Value) String() string {
	switch v.typ.Kind {
	case KindUint, KindInt:
		return v.num.String()
	case KindBool:
		return fmt.Sprintf("%t", v.boolean)
	case KindAddress:
		return v.addr.Hex()
	case KindBytes:
		return fmt.Sprintf("0x%x", v.data)
	case KindMapping:
		builder := strings.Builder{}
		builder.WriteString("{")
		first := true
		v.ForEachEntry(func(key, val Value) {
			if !first {
				builder.WriteString(", ")
			}
			first = false
			builder.WriteString(fmt.Sprintf("%v: %v", key, val))
		})
		builder.WriteString("}")
		return builder.String()
	}
	return "<invalid>"
}

// canonical encodes a value as a deterministic mapping key.
func (v Value) canonical() string {
	switch v.typ.Kind {
	case KindUint, KindInt:
		return "n:" + v.num.String()
	case KindBool:
		return fmt.Sprintf("b:%t", v.boolean)
	case KindAddress:
		return "a:" + strings.ToLower(v.addr.Hex())
	case KindBytes:
		return fmt.Sprintf("d:%x", v.data)
	}
	panic(fmt.Sprintf("type %v is not usable as a mapping key", v.typ))
}
