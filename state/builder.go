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
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/schema"
)

// Builder assembles a snapshot. It is the only mutable path into the
// state model; Build produces an immutable Snapshot and the builder may
// be reused afterwards without affecting built snapshots. Builders are
// driven by the execution environment (or tests), never by the engine.
type Builder struct {
	reg      *schema.Registry
	balances map[common.Address]*big.Int
	fields   map[fieldKey]schema.Value
	err      error
}

// NewBuilder creates an empty snapshot builder over a schema registry.
func NewBuilder(reg *schema.Registry) *Builder {
	return &Builder{
		reg:      reg,
		balances: map[common.Address]*big.Int{},
		fields:   map[fieldKey]schema.Value{},
	}
}

// Derive creates a builder pre-populated with the contents of an
// existing snapshot, the usual way an execution environment constructs
// a post-state from a pre-state.
func Derive(reg *schema.Registry, s Snapshot) *Builder {
	b := NewBuilder(reg)
	s.ForEachBalance(func(addr common.Address, balance *big.Int) {
		b.balances[addr] = balance
	})
	s.ForEachField(func(contract, field string, value schema.Value) {
		b.fields[fieldKey{contract, field}] = value
	})
	return b
}

// SetBalance sets the native-token balance of an account.
func (b *Builder) SetBalance(addr common.Address, balance *big.Int) *Builder {
	if b.err != nil {
		return b
	}
	if balance.Sign() < 0 {
		b.err = fmt.Errorf("negative balance %v for %x", balance, addr)
		return b
	}
	b.balances[addr] = new(big.Int).Set(balance)
	return b
}

// SetField writes a storage field. The value must match the field's
// declared type; the declared type (including its overflow regime) is
// adopted onto the stored value.
func (b *Builder) SetField(contract, field string, value schema.Value) *Builder {
	if b.err != nil {
		return b
	}
	declared, err := b.declared(contract, field)
	if err != nil {
		b.err = err
		return b
	}
	adopted, err := declared.Adopt(value)
	if err != nil {
		b.err = fmt.Errorf("cannot set %s.%s; %w", contract, field, err)
		return b
	}
	b.fields[fieldKey{contract, field}] = adopted
	return b
}

// SetMapping writes one entry of a mapping-typed storage field, leaving
// other entries of the field intact.
func (b *Builder) SetMapping(contract, field string, key, value schema.Value) *Builder {
	if b.err != nil {
		return b
	}
	declared, err := b.declared(contract, field)
	if err != nil {
		b.err = err
		return b
	}
	if declared.Kind != schema.KindMapping {
		b.err = fmt.Errorf("%w: %s.%s is %v, not a mapping", schema.ErrTypeMismatch, contract, field, declared)
		return b
	}

	current, ok := b.fields[fieldKey{contract, field}]
	if !ok {
		current = declared.Zero()
	}
	updated, err := current.WithEntry(key, value)
	if err != nil {
		b.err = fmt.Errorf("cannot set %s.%s[%v]; %w", contract, field, key, err)
		return b
	}
	b.fields[fieldKey{contract, field}] = updated
	return b
}

// Build returns the accumulated state as an immutable snapshot, or the
// first error recorded while assembling it.
func (b *Builder) Build() (Snapshot, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := &snapshot{
		reg:      b.reg,
		balances: make(map[common.Address]*big.Int, len(b.balances)),
		fields:   make(map[fieldKey]schema.Value, len(b.fields)),
	}
	for addr, balance := range b.balances {
		s.balances[addr] = new(big.Int).Set(balance)
	}
	for key, value := range b.fields {
		s.fields[key] = value
	}
	return s, nil
}

// MustBuild is Build for statically known inputs, mostly tests.
func (b *Builder) MustBuild() Snapshot {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Builder) declared(contract, field string) (schema.Type, error) {
	c, ok := b.reg.Contract(contract)
	if !ok {
		return schema.Type{}, fmt.Errorf("%w: %q", ErrUnknownContract, contract)
	}
	t, ok := c.Field(field)
	if !ok {
		return schema.Type{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, contract, field)
	}
	return t, nil
}
