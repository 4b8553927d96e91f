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
	"sync"

	"github.com/fidelio-tools/fidelio/state"
)

// Repository is the append-only ordered log of executed transactions.
// There is a single writer - the execution environment appends, the
// engine only reads. Readers operate on Views capturing the trace
// length at creation time, so aggregate scans stay reproducible while
// the trace keeps growing underneath them.
type Repository struct {
	mu  sync.RWMutex
	txs []*Transaction
}

// NewRepository creates an empty transaction trace.
func NewRepository() *Repository {
	return &Repository{}
}

// Append adds the next transaction to the trace. The transaction must
// carry the next sequence number, a pre-state snapshot, a post-state
// snapshot exactly when it succeeded, and a pre-state equal to the
// state the previous transaction left behind - the trace is causally
// ordered and gap-free.
func (r *Repository) Append(tx *Transaction) error {
	if tx.Pre == nil {
		return fmt.Errorf("transaction #%d carries no pre-state", tx.Seq)
	}
	if (tx.Outcome == Succeeded) != (tx.Post != nil) {
		return fmt.Errorf("transaction #%d is %v but post-state presence does not match", tx.Seq, tx.Outcome)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if want := uint64(len(r.txs)); tx.Seq != want {
		return fmt.Errorf("transaction out of order: got #%d, want #%d", tx.Seq, want)
	}
	if n := len(r.txs); n > 0 {
		if prev := r.txs[n-1].Effective(); !state.SnapshotEqual(prev, tx.Pre) {
			return fmt.Errorf("transaction #%d breaks the trace: its pre-state differs from the state left by #%d", tx.Seq, n-1)
		}
	}

	r.txs = append(r.txs, tx)
	return nil
}

// Load appends every transaction delivered by a provider, in order.
// This is the ingestion path for traces produced out-of-process.
func (r *Repository) Load(p Provider) error {
	return p.Run(0, -1, func(info TxInfo) error {
		return r.Append(info.Transaction)
	})
}

// View captures the current trace length and returns a read-only view
// over it. Appends after this call are invisible to the view.
func (r *Repository) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return View{txs: r.txs[:len(r.txs):len(r.txs)]}
}

// View is a snapshot-isolated, read-only slice of the trace. The zero
// View is valid and empty.
type View struct {
	txs []*Transaction
}

// Len returns the number of transactions visible to the view.
func (v View) Len() int {
	return len(v.txs)
}

// Get returns the i-th transaction of the view.
func (v View) Get(i int) *Transaction {
	return v.txs[i]
}

// Provider adapts the view to the provider interface consumed by
// downstream transaction processors.
func (v View) Provider() Provider {
	return viewProvider{v}
}

type viewProvider struct {
	view View
}

func (p viewProvider) Run(from, to int, consume Consumer) error {
	if from < 0 {
		from = 0
	}
	if to < 0 || to > p.view.Len() {
		to = p.view.Len()
	}
	for i := from; i < to; i++ {
		tx := p.view.Get(i)
		if err := consume(TxInfo{Seq: tx.Seq, Transaction: tx}); err != nil {
			return err
		}
	}
	return nil
}

func (p viewProvider) Close() {
	// nothing to do for in-memory views
}
