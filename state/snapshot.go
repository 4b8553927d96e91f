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

package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/schema"
)

var (
	// ErrUnknownContract reports a read against a contract absent from
	// the schema registry.
	ErrUnknownContract = errors.New("unknown contract")

	// ErrUnknownField reports a read of a field that is not part of the
	// target contract's declared schema. This is a specification error,
	// never a verification failure.
	ErrUnknownField = errors.New("unknown field")
)

// Snapshot represents blockchain-visible state at one point in time:
// native-token balances and contract storage fields. Snapshots are
// immutable value objects produced once by the execution environment
// and safely shared across concurrent statement checks.
type Snapshot interface {
	// BalanceOf returns the native-token balance of the given address.
	// Unknown accounts hold a zero balance.
	BalanceOf(addr common.Address) *big.Int

	// Read resolves a storage field of a contract, descending through
	// mapping levels with the given indices. Reads of undeclared fields
	// fail with ErrUnknownField; mapping lookups with no prior write
	// yield the element type's zero value, mirroring default-valued
	// storage.
	Read(contract, field string, indices ...schema.Value) (schema.Value, error)

	// ForEachBalance iterates over all accounts with an explicitly set
	// balance, in unspecified order.
	ForEachBalance(h func(addr common.Address, balance *big.Int))

	// ForEachField iterates over all explicitly written storage fields,
	// in unspecified order.
	ForEachField(h func(contract, field string, value schema.Value))

	// Equal checks whether two snapshots describe the same state.
	// Note: have a look at SnapshotEqual.
	Equal(Snapshot) bool

	// String returns a human-readable rendering of the snapshot.
	// Note: have a look at SnapshotString.
	String() string
}

type fieldKey struct {
	contract string
	field    string
}

type snapshot struct {
	reg      *schema.Registry
	balances map[common.Address]*big.Int
	fields   map[fieldKey]schema.Value
}

func (s *snapshot) BalanceOf(addr common.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (s *snapshot) Read(contract, field string, indices ...schema.Value) (schema.Value, error) {
	c, ok := s.reg.Contract(contract)
	if !ok {
		return schema.Value{}, fmt.Errorf("%w: %q", ErrUnknownContract, contract)
	}
	declared, ok := c.Field(field)
	if !ok {
		return schema.Value{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, contract, field)
	}

	value, ok := s.fields[fieldKey{contract, field}]
	if !ok {
		value = declared.Zero()
	}

	for i, index := range indices {
		t := value.Type()
		if t.Kind != schema.KindMapping {
			return schema.Value{}, fmt.Errorf("%w: %s.%s is %v, cannot index it", schema.ErrTypeMismatch, contract, field, t)
		}
		if !index.Type().Equal(*t.Key) {
			return schema.Value{}, fmt.Errorf("%w: index %d of %s.%s is %v, want %v",
				schema.ErrTypeMismatch, i, contract, field, index.Type(), t.Key)
		}
		value, _ = value.At(index)
	}
	return value, nil
}

func (s *snapshot) ForEachBalance(h func(addr common.Address, balance *big.Int)) {
	for addr, b := range s.balances {
		h(addr, new(big.Int).Set(b))
	}
}

func (s *snapshot) ForEachField(h func(contract, field string, value schema.Value)) {
	for key, value := range s.fields {
		h(key.contract, key.field, value)
	}
}

func (s *snapshot) Equal(o Snapshot) bool {
	return SnapshotEqual(s, o)
}

func (s *snapshot) String() string {
	return SnapshotString(s)
}

// SnapshotEqual compares two snapshots semantically: every balance and
// every explicitly written field of one must be present with an equal
// value in the other, with absent entries treated as zero.
func SnapshotEqual(x, y Snapshot) bool {
	if x == nil || y == nil {
		return x == y
	}

	equal := true
	checkBalances := func(a, b Snapshot) func(addr common.Address, _ *big.Int) {
		return func(addr common.Address, _ *big.Int) {
			if a.BalanceOf(addr).Cmp(b.BalanceOf(addr)) != 0 {
				equal = false
			}
		}
	}
	x.ForEachBalance(checkBalances(x, y))
	y.ForEachBalance(checkBalances(x, y))

	checkFields := func(a, b Snapshot) func(contract, field string, _ schema.Value) {
		return func(contract, field string, _ schema.Value) {
			av, aerr := a.Read(contract, field)
			bv, berr := b.Read(contract, field)
			if aerr != nil || berr != nil || !av.Equal(bv) {
				equal = false
			}
		}
	}
	x.ForEachField(checkFields(x, y))
	y.ForEachField(checkFields(x, y))

	return equal
}

// SnapshotString renders a snapshot deterministically, with accounts
// and fields in sorted order.
func SnapshotString(s Snapshot) string {
	builder := strings.Builder{}
	builder.WriteString("Snapshot {\n")

	var addresses []common.Address
	s.ForEachBalance(func(addr common.Address, _ *big.Int) {
		addresses = append(addresses, addr)
	})
	sort.Slice(addresses, func(i, j int) bool { return addresses[i].String() < addresses[j].String() })

	builder.WriteString("\tBalances:\n")
	for _, addr := range addresses {
		builder.WriteString(fmt.Sprintf("\t\t%x: %v\n", addr, s.BalanceOf(addr)))
	}

	var keys []fieldKey
	s.ForEachField(func(contract, field string, _ schema.Value) {
		keys = append(keys, fieldKey{contract, field})
	})
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].contract != keys[j].contract {
			return keys[i].contract < keys[j].contract
		}
		return keys[i].field < keys[j].field
	})

	builder.WriteString("\tFields:\n")
	for _, key := range keys {
		value, err := s.Read(key.contract, key.field)
		if err != nil {
			builder.WriteString(fmt.Sprintf("\t\t%s.%s: <%v>\n", key.contract, key.field, err))
			continue
		}
		builder.WriteString(fmt.Sprintf("\t\t%s.%s: %v\n", key.contract, key.field, value))
	}
	builder.WriteString("}")
	return builder.String()
}
