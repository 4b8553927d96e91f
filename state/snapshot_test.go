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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/schema"
)

var (
	alice = common.Address{0x0a}
	bob   = common.Address{0x0b}
)

func testRegistry() *schema.Registry {
	game := schema.NewContract("Game").
		WithField("pot", schema.Uint(0)).
		WithField("started", schema.Bool).
		WithField("balances", schema.Mapping(schema.Address, schema.Uint(0)))
	return schema.NewRegistry(game)
}

func TestSnapshot_ReadReturnsWrittenFields(t *testing.T) {
	reg := testRegistry()
	snapshot := NewBuilder(reg).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 500)).
		SetField("Game", "started", schema.NewBool(true)).
		MustBuild()

	pot, err := snapshot.Read("Game", "pot")
	if err != nil {
		t.Fatalf("cannot read pot: %v", err)
	}
	if pot.String() != "500" {
		t.Errorf("unexpected pot, wanted 500, got %v", pot)
	}

	started, err := snapshot.Read("Game", "started")
	if err != nil {
		t.Fatalf("cannot read started: %v", err)
	}
	if !started.Bool() {
		t.Errorf("started must read back as true")
	}
}

func TestSnapshot_UnwrittenDeclaredFieldReadsAsZero(t *testing.T) {
	snapshot := NewBuilder(testRegistry()).MustBuild()

	pot, err := snapshot.Read("Game", "pot")
	if err != nil {
		t.Fatalf("reading an unwritten declared field must not fail: %v", err)
	}
	if !pot.IsZero() {
		t.Errorf("unwritten field must read as zero, got %v", pot)
	}
}

func TestSnapshot_UndeclaredReadsAreSpecificationErrors(t *testing.T) {
	snapshot := NewBuilder(testRegistry()).MustBuild()

	if _, err := snapshot.Read("Game", "jackpot"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected unknown field error, got %v", err)
	}
	if _, err := snapshot.Read("Casino", "pot"); !errors.Is(err, ErrUnknownContract) {
		t.Errorf("expected unknown contract error, got %v", err)
	}
}

func TestSnapshot_MappingReadsDescendWithTypedKeys(t *testing.T) {
	reg := testRegistry()
	snapshot := NewBuilder(reg).
		SetMapping("Game", "balances", schema.NewAddress(alice), schema.Uint64(schema.Uint(0), 42)).
		MustBuild()

	got, err := snapshot.Read("Game", "balances", schema.NewAddress(alice))
	if err != nil {
		t.Fatalf("cannot read balances[alice]: %v", err)
	}
	if got.String() != "42" {
		t.Errorf("unexpected entry, wanted 42, got %v", got)
	}

	// A key that was never written reads as the element type's zero.
	got, err = snapshot.Read("Game", "balances", schema.NewAddress(bob))
	if err != nil {
		t.Fatalf("cannot read balances[bob]: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("unwritten entry must read as zero, got %v", got)
	}

	if _, err := snapshot.Read("Game", "balances", schema.Uint64(schema.Uint(0), 1)); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("mis-typed mapping key must be rejected, got %v", err)
	}
	if _, err := snapshot.Read("Game", "pot", schema.NewAddress(alice)); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("indexing a scalar field must be rejected, got %v", err)
	}
}

func TestSnapshot_UnknownAccountsHoldZeroBalance(t *testing.T) {
	snapshot := NewBuilder(testRegistry()).
		SetBalance(alice, big.NewInt(1000)).
		MustBuild()

	if got := snapshot.BalanceOf(alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("unexpected balance for alice, wanted 1000, got %v", got)
	}
	if got := snapshot.BalanceOf(bob); got.Sign() != 0 {
		t.Errorf("unknown account must hold zero, got %v", got)
	}
}

func TestSnapshot_EqualTreatsAbsentAsZero(t *testing.T) {
	reg := testRegistry()
	bare := NewBuilder(reg).MustBuild()
	zeroed := NewBuilder(reg).
		SetBalance(alice, big.NewInt(0)).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 0)).
		MustBuild()

	if !SnapshotEqual(bare, zeroed) || !SnapshotEqual(zeroed, bare) {
		t.Errorf("explicit zeroes must not distinguish snapshots")
	}

	changed := NewBuilder(reg).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 1)).
		MustBuild()
	if SnapshotEqual(bare, changed) {
		t.Errorf("differing pot values must distinguish snapshots")
	}
}

func TestBuilder_DeriveCopiesAndDecouples(t *testing.T) {
	reg := testRegistry()
	pre := NewBuilder(reg).
		SetBalance(alice, big.NewInt(100)).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 5)).
		MustBuild()

	post := Derive(reg, pre).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 6)).
		MustBuild()

	if got, _ := pre.Read("Game", "pot"); got.String() != "5" {
		t.Errorf("deriving a post-state mutated the pre-state: pot = %v", got)
	}
	if got, _ := post.Read("Game", "pot"); got.String() != "6" {
		t.Errorf("unexpected pot in derived state, wanted 6, got %v", got)
	}
	if got := post.BalanceOf(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("derived state lost alice's balance, got %v", got)
	}
}

func TestBuilder_RejectsInvalidInput(t *testing.T) {
	reg := testRegistry()

	if _, err := NewBuilder(reg).SetBalance(alice, big.NewInt(-1)).Build(); err == nil {
		t.Errorf("negative balances must be rejected")
	}
	if _, err := NewBuilder(reg).SetField("Game", "jackpot", schema.Uint64(schema.Uint(0), 1)).Build(); !errors.Is(err, ErrUnknownField) {
		t.Errorf("undeclared field writes must be rejected, got %v", err)
	}
	if _, err := NewBuilder(reg).SetField("Game", "pot", schema.NewBool(true)).Build(); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("mis-typed field writes must be rejected, got %v", err)
	}
	if _, err := NewBuilder(reg).SetMapping("Game", "pot", schema.NewAddress(alice), schema.Uint64(schema.Uint(0), 1)).Build(); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("mapping writes to a scalar field must be rejected, got %v", err)
	}
}

func TestBuilder_ErrorLatchesAcrossCalls(t *testing.T) {
	builder := NewBuilder(testRegistry()).
		SetField("Game", "jackpot", schema.Uint64(schema.Uint(0), 1)).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 1))

	if _, err := builder.Build(); !errors.Is(err, ErrUnknownField) {
		t.Errorf("the first recorded error must survive later valid writes, got %v", err)
	}
}
