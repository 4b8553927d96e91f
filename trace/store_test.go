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

package trace

import (
	"testing"

	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/state"
)

func TestStore_PersistedTracesLoadBack(t *testing.T) {
	reg := testRegistry()
	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)
	txs := []*Transaction{
		playTx(0, 3, s0, s1),
		playTx(1, 5, s1, nil), // reverted, no post-state
	}

	store, err := OpenStore(t.TempDir(), reg)
	if err != nil {
		t.Fatalf("cannot open store: %v", err)
	}
	defer store.Close()

	for _, tx := range txs {
		if err := store.Put(tx); err != nil {
			t.Fatalf("cannot persist transaction #%d: %v", tx.Seq, err)
		}
	}

	repo := NewRepository()
	if err := repo.Load(store); err != nil {
		t.Fatalf("cannot load persisted trace: %v", err)
	}

	view := repo.View()
	if view.Len() != len(txs) {
		t.Fatalf("unexpected trace length, wanted %d, got %d", len(txs), view.Len())
	}
	for i, want := range txs {
		got := view.Get(i)
		if got.Seq != want.Seq || got.Outcome != want.Outcome {
			t.Errorf("transaction #%d changed identity: got %v", i, got)
		}
		if got.Call.Sender != want.Call.Sender ||
			got.Call.Contract != want.Call.Contract ||
			got.Call.Function != want.Call.Function ||
			got.Call.Value.Cmp(want.Call.Value) != 0 {
			t.Errorf("transaction #%d changed its call context: got %v", i, &got.Call)
		}
		if len(got.Call.Args) != len(want.Call.Args) || !got.Call.Args[0].Equal(want.Call.Args[0]) {
			t.Errorf("transaction #%d changed its arguments: got %v", i, got.Call.Args)
		}
		if !state.SnapshotEqual(got.Pre, want.Pre) {
			t.Errorf("transaction #%d changed its pre-state", i)
		}
		if want.Post != nil && !state.SnapshotEqual(got.Post, want.Post) {
			t.Errorf("transaction #%d changed its post-state", i)
		}
	}
}

func TestStore_RunRespectsRange(t *testing.T) {
	reg := testRegistry()
	store, err := OpenStore(t.TempDir(), reg)
	if err != nil {
		t.Fatalf("cannot open store: %v", err)
	}
	defer store.Close()

	prev := potState(t, reg, 0)
	for i := 0; i < 4; i++ {
		next := potState(t, reg, uint64(i+1)*10)
		if err := store.Put(playTx(uint64(i), uint64(i), prev, next)); err != nil {
			t.Fatalf("cannot persist: %v", err)
		}
		prev = next
	}

	var got []uint64
	err = store.Run(1, 3, func(info TxInfo) error {
		got = append(got, info.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("range run failed: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("unexpected sequence numbers for range [1,3), got %v", got)
	}
}

func TestStore_LoadedValuesCarryDeclaredTypes(t *testing.T) {
	reg := testRegistry()
	store, err := OpenStore(t.TempDir(), reg)
	if err != nil {
		t.Fatalf("cannot open store: %v", err)
	}
	defer store.Close()

	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)
	if err := store.Put(playTx(0, 3, s0, s1)); err != nil {
		t.Fatalf("cannot persist: %v", err)
	}

	var loaded *Transaction
	err = store.Run(0, -1, func(info TxInfo) error {
		loaded = info.Transaction
		return nil
	})
	if err != nil || loaded == nil {
		t.Fatalf("cannot read back transaction: %v", err)
	}

	pot, err := loaded.Post.Read("Game", "pot")
	if err != nil {
		t.Fatalf("cannot read pot of loaded post-state: %v", err)
	}
	declared, _ := mustContract(t, reg, "Game").Field("pot")
	if !pot.Type().Equal(declared) {
		t.Errorf("loaded pot has type %v, declared %v", pot.Type(), declared)
	}
}

func mustContract(t *testing.T, reg *schema.Registry, name string) *schema.Contract {
	t.Helper()
	c, ok := reg.Contract(name)
	if !ok {
		t.Fatalf("contract %q is not registered", name)
	}
	return c
}
