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
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// The wire form used by the persistent trace store. Types are carried
// structurally (no overflow regime); the store re-anchors loaded values
// against the schema registry via Type.Adopt.
type encodedValue struct {
	Type    string         `json:"type"`
	Num     string         `json:"num,omitempty"`
	Bool    *bool          `json:"bool,omitempty"`
	Addr    string         `json:"addr,omitempty"`
	Data    string         `json:"data,omitempty"`
	Entries []encodedEntry `json:"entries,omitempty"`
}

type encodedEntry struct {
	Key encodedValue `json:"key"`
	Val encodedValue `json:"val"`
}

func (v Value) encode() encodedValue {
	e := encodedValue{Type: v.typ.String()}
	switch v.typ.Kind {
	case KindUint, KindInt:
		e.Num = v.num.String()
	case KindBool:
		b := v.boolean
		e.Bool = &b
	case KindAddress:
		e.Addr = v.addr.Hex()
	case KindBytes:
		e.Data = hexutil.Encode(v.data)
	case KindMapping:
		v.ForEachEntry(func(key, val Value) {
			e.Entries = append(e.Entries, encodedEntry{Key: key.encode(), Val: val.encode()})
		})
	}
	return e
}

func (e encodedValue) decode() (Value, error) {
	t, err := ParseType(e.Type)
	if err != nil {
		return Value{}, err
	}
	switch t.Kind {
	case KindUint, KindInt:
		n, ok := new(big.Int).SetString(e.Num, 10)
		if !ok {
			return Value{}, fmt.Errorf("malformed numeric payload %q", e.Num)
		}
		return Integer(t, n)
	case KindBool:
		if e.Bool == nil {
			return Value{}, fmt.Errorf("missing boolean payload")
		}
		return NewBool(*e.Bool), nil
	case KindAddress:
		if !common.IsHexAddress(e.Addr) {
			return Value{}, fmt.Errorf("malformed address payload %q", e.Addr)
		}
		return NewAddress(common.HexToAddress(e.Addr)), nil
	case KindBytes:
		data, err := hexutil.Decode(e.Data)
		if err != nil {
			return Value{}, fmt.Errorf("malformed bytes payload %q: %w", e.Data, err)
		}
		return NewBytes(data), nil
	case KindMapping:
		m := NewMap(t)
		for _, entry := range e.Entries {
			key, err := entry.Key.decode()
			if err != nil {
				return Value{}, err
			}
			val, err := entry.Val.decode()
			if err != nil {
				return Value{}, err
			}
			if m, err = m.WithEntry(key, val); err != nil {
				return Value{}, err
			}
		}
		return m, nil
	}
	return Value{}, fmt.Errorf("unknown type %q", e.Type)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.encode())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var e encodedValue
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	decoded, err := e.decode()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
