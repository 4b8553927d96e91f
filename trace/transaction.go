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

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/state"
)

// Outcome is the terminal status of an executed transaction.
type Outcome byte

const (
	Reverted Outcome = iota
	Succeeded
)

func (o Outcome) String() string {
	switch o {
	case Reverted:
		return "reverted"
	case Succeeded:
		return "succeeded"
	}
	return fmt.Sprintf("outcome(%d)", o)
}

// CallContext describes the call that started a transaction: who sent
// it, how much native token was attached, and which function of which
// contract was invoked with which arguments. It is immutable once the
// transaction begins.
type CallContext struct {
	Sender   common.Address
	Value    *big.Int
	Contract string
	Function string
	Args     []schema.Value
}

// Arg returns the i-th call argument.
func (c *CallContext) Arg(i int) (schema.Value, error) {
	if i < 0 || i >= len(c.Args) {
		return schema.Value{}, fmt.Errorf("call to %s.%s carries %d arguments, argument %d requested",
			c.Contract, c.Function, len(c.Args), i)
	}
	return c.Args[i], nil
}

func (c *CallContext) String() string {
	return fmt.Sprintf("%s.%s(%v) from %x with value %v", c.Contract, c.Function, c.Args, c.Sender, c.Value)
}

// Transaction is one executed transaction as reported by the external
// execution environment: its position in the trace, the call that
// triggered it, the state immediately before execution, the outcome,
// and - for succeeded transactions only - the state immediately after.
// Transactions are consumed read-only by the engine.
type Transaction struct {
	Seq     uint64
	Call    CallContext
	Pre     state.Snapshot
	Outcome Outcome
	Post    state.Snapshot // nil iff Outcome == Reverted
}

// Matches reports whether the transaction targets the given contract
// function.
func (t *Transaction) Matches(contract, function string) bool {
	return t.Call.Contract == contract && t.Call.Function == function
}

// Effective returns the state the transaction left the world in: the
// post-state of a succeeded transaction, or the unchanged pre-state of
// a reverted one.
func (t *Transaction) Effective() state.Snapshot {
	if t.Outcome == Succeeded {
		return t.Post
	}
	return t.Pre
}

func (t *Transaction) String() string {
	return fmt.Sprintf("tx #%d: %v -> %v", t.Seq, &t.Call, t.Outcome)
}
