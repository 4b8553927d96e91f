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
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/state"
	"go.uber.org/mock/gomock"
)

var alice = common.Address{0x0a}

func testRegistry() *schema.Registry {
	game := schema.NewContract("Game").
		WithField("pot", schema.Uint(0)).
		WithFunction("play", schema.Param{Name: "guess", Type: schema.Uint(0)})
	return schema.NewRegistry(game)
}

// potState builds a snapshot with Game.pot set to the given amount.
func potState(t *testing.T, reg *schema.Registry, pot uint64) state.Snapshot {
	t.Helper()
	return state.NewBuilder(reg).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), pot)).
		MustBuild()
}

func playTx(seq uint64, guess uint64, pre, post state.Snapshot) *Transaction {
	tx := &Transaction{
		Seq: seq,
		Call: CallContext{
			Sender:   alice,
			Value:    big.NewInt(0),
			Contract: "Game",
			Function: "play",
			Args:     []schema.Value{schema.Uint64(schema.Uint(0), guess)},
		},
		Pre: pre,
	}
	if post != nil {
		tx.Outcome = Succeeded
		tx.Post = post
	}
	return tx
}

func TestRepository_AppendChainsTransactions(t *testing.T) {
	reg := testRegistry()
	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)
	s2 := potState(t, reg, 20)

	repo := NewRepository()
	if err := repo.Append(playTx(0, 3, s0, s1)); err != nil {
		t.Fatalf("cannot append first transaction: %v", err)
	}
	if err := repo.Append(playTx(1, 5, s1, s2)); err != nil {
		t.Fatalf("cannot append chained transaction: %v", err)
	}
	if err := repo.Append(playTx(2, 7, s2, nil)); err != nil {
		t.Fatalf("cannot append reverted transaction: %v", err)
	}

	view := repo.View()
	if view.Len() != 3 {
		t.Fatalf("unexpected trace length, wanted 3, got %d", view.Len())
	}
	if got := view.Get(2).Effective(); !state.SnapshotEqual(got, s2) {
		t.Errorf("a reverted transaction must leave its pre-state in effect")
	}
}

func TestRepository_AppendRejectsMalformedTransactions(t *testing.T) {
	reg := testRegistry()
	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)

	tests := map[string]struct {
		setup func(repo *Repository)
		tx    *Transaction
		want  string
	}{
		"missing pre-state": {
			tx:   &Transaction{Seq: 0, Outcome: Reverted},
			want: "no pre-state",
		},
		"succeeded without post-state": {
			tx: &Transaction{
				Seq:     0,
				Call:    CallContext{Contract: "Game", Function: "play", Value: big.NewInt(0)},
				Pre:     s0,
				Outcome: Succeeded,
			},
			want: "post-state presence",
		},
		"reverted with post-state": {
			tx: func() *Transaction {
				tx := playTx(0, 1, s0, s1)
				tx.Outcome = Reverted
				return tx
			}(),
			want: "post-state presence",
		},
		"sequence gap": {
			tx:   playTx(7, 1, s0, s1),
			want: "out of order",
		},
		"broken causal chain": {
			setup: func(repo *Repository) {
				if err := repo.Append(playTx(0, 1, s0, s1)); err != nil {
					t.Fatalf("setup append failed: %v", err)
				}
			},
			tx:   playTx(1, 2, s0, s1), // pre-state skips the effect of #0
			want: "breaks the trace",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewRepository()
			if test.setup != nil {
				test.setup(repo)
			}
			err := repo.Append(test.tx)
			if err == nil {
				t.Fatalf("append must fail")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("unexpected error %q, wanted one containing %q", err, test.want)
			}
		})
	}
}

func TestRepository_ViewsAreSnapshotIsolated(t *testing.T) {
	reg := testRegistry()
	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)
	s2 := potState(t, reg, 20)

	repo := NewRepository()
	if err := repo.Append(playTx(0, 3, s0, s1)); err != nil {
		t.Fatalf("cannot append: %v", err)
	}

	view := repo.View()
	if err := repo.Append(playTx(1, 5, s1, s2)); err != nil {
		t.Fatalf("cannot append: %v", err)
	}

	if view.Len() != 1 {
		t.Errorf("view observed an append made after its creation, len = %d", view.Len())
	}
	if repo.View().Len() != 2 {
		t.Errorf("a fresh view must observe the full trace")
	}
}

func TestRepository_LoadIngestsProviderInOrder(t *testing.T) {
	reg := testRegistry()
	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)
	txs := []*Transaction{playTx(0, 3, s0, s1), playTx(1, 5, s1, nil)}

	ctrl := gomock.NewController(t)
	provider := NewMockProvider(ctrl)
	provider.EXPECT().Run(0, -1, gomock.Any()).DoAndReturn(
		func(_, _ int, consume Consumer) error {
			for _, tx := range txs {
				if err := consume(TxInfo{Seq: tx.Seq, Transaction: tx}); err != nil {
					return err
				}
			}
			return nil
		})

	repo := NewRepository()
	if err := repo.Load(provider); err != nil {
		t.Fatalf("cannot load trace: %v", err)
	}
	if got := repo.View().Len(); got != 2 {
		t.Errorf("unexpected trace length after load, wanted 2, got %d", got)
	}
}

func TestRepository_LoadForwardsConsumerErrors(t *testing.T) {
	reg := testRegistry()
	s0 := potState(t, reg, 0)
	s1 := potState(t, reg, 10)

	ctrl := gomock.NewController(t)
	provider := NewMockProvider(ctrl)
	provider.EXPECT().Run(0, -1, gomock.Any()).DoAndReturn(
		func(_, _ int, consume Consumer) error {
			// Delivering the same position twice violates the append
			// contract and must surface through Load.
			tx := playTx(0, 3, s0, s1)
			if err := consume(TxInfo{Seq: tx.Seq, Transaction: tx}); err != nil {
				return err
			}
			return consume(TxInfo{Seq: tx.Seq, Transaction: tx})
		})

	repo := NewRepository()
	if err := repo.Load(provider); err == nil || !strings.Contains(err.Error(), "out of order") {
		t.Errorf("expected an out-of-order error, got %v", err)
	}
}

func TestView_ProviderDeliversRequestedRange(t *testing.T) {
	reg := testRegistry()
	repo := NewRepository()
	prev := potState(t, reg, 0)
	for i := 0; i < 5; i++ {
		next := potState(t, reg, uint64(i+1)*10)
		if err := repo.Append(playTx(uint64(i), uint64(i), prev, next)); err != nil {
			t.Fatalf("cannot append: %v", err)
		}
		prev = next
	}

	tests := map[string]struct {
		from, to int
		want     []uint64
	}{
		"full range":     {from: 0, to: -1, want: []uint64{0, 1, 2, 3, 4}},
		"inner window":   {from: 1, to: 3, want: []uint64{1, 2}},
		"clamped bounds": {from: -5, to: 100, want: []uint64{0, 1, 2, 3, 4}},
		"empty window":   {from: 3, to: 3, want: nil},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			provider := repo.View().Provider()
			defer provider.Close()

			var got []uint64
			err := provider.Run(test.from, test.to, func(info TxInfo) error {
				got = append(got, info.Seq)
				return nil
			})
			if err != nil {
				t.Fatalf("provider run failed: %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(test.want) {
				t.Errorf("unexpected sequence numbers, wanted %v, got %v", test.want, got)
			}
		})
	}
}
