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

// Package eval evaluates checked specification expressions against the
// snapshots and call context of one transaction, reaching into the
// trace for historical aggregates. Evaluation never mutates anything;
// the same expression evaluated twice over the same context yields the
// same value.
package eval

import (
	"fmt"

	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/spec"
	"github.com/fidelio-tools/fidelio/state"
	"github.com/fidelio-tools/fidelio/trace"
)

// Context bundles everything one expression evaluation may read: the
// current snapshot (the post-state of a postcondition, the pre-state of
// a predicate), the optional pre-state reachable through old(), the
// call context of the transaction under test, and an optional trace
// view for aggregates.
type Context struct {
	Current state.Snapshot
	Pre     state.Snapshot
	Call    *trace.CallContext

	// Trace is required only for expressions containing fsum. The view
	// is captured once by the caller, so aggregate results stay
	// reproducible while the trace keeps growing.
	Trace *trace.View

	// TargetContract and TargetFunction identify the statement's target,
	// which fsum matches historical calls against.
	TargetContract string
	TargetFunction string

	inOld bool
	hist  map[string]*trace.CallContext
}

// Evaluate computes the value of a checked expression. Every failure
// carries the offending sub-expression.
func Evaluate(e spec.Expr, ctx Context) (schema.Value, error) {
	switch n := e.(type) {
	case *spec.Literal:
		return n.Value, nil

	case *spec.FieldRef:
		return evalFieldRef(n, ctx)

	case *spec.CallVar:
		if n.Kind == spec.SenderVar {
			return schema.NewAddress(ctx.Call.Sender), nil
		}
		return schema.Integer(schema.Uint(0), ctx.Call.Value)

	case *spec.ArgRef:
		v, err := ctx.Call.Arg(n.Index)
		if err != nil {
			return schema.Value{}, &Error{Expr: n, Err: err}
		}
		return v, nil

	case *spec.BoundArgRef:
		call, ok := ctx.hist[n.Var]
		if !ok {
			return schema.Value{}, &Error{Expr: n, Err: fmt.Errorf("bound variable %s is not in scope", n.Var)}
		}
		v, err := call.Arg(n.Index)
		if err != nil {
			return schema.Value{}, &Error{Expr: n, Err: err}
		}
		return v, nil

	case *spec.BoundCallVar:
		call, ok := ctx.hist[n.Var]
		if !ok {
			return schema.Value{}, &Error{Expr: n, Err: fmt.Errorf("bound variable %s is not in scope", n.Var)}
		}
		if n.Kind == spec.SenderVar {
			return schema.NewAddress(call.Sender), nil
		}
		return schema.Integer(schema.Uint(0), call.Value)

	case *spec.Unary:
		return evalUnary(n, ctx)

	case *spec.Binary:
		return evalBinary(n, ctx)

	case *spec.Old:
		if ctx.Pre == nil {
			return schema.Value{}, &Error{Expr: n, Err: ErrOldUnavailable}
		}
		inner := ctx
		inner.inOld = true
		return Evaluate(n.X, inner)

	case *spec.Balance:
		addr, err := Evaluate(n.Addr, ctx)
		if err != nil {
			return schema.Value{}, err
		}
		balance := ctx.snapshot().BalanceOf(addr.Addr())
		return schema.Integer(schema.Uint(0), balance)

	case *spec.FSum:
		return evalFSum(n, ctx)
	}
	return schema.Value{}, &Error{Expr: e, Err: fmt.Errorf("unchecked expression reached the evaluator")}
}

// Bool evaluates a boolean expression.
func Bool(e spec.Expr, ctx Context) (bool, error) {
	v, err := Evaluate(e, ctx)
	if err != nil {
		return false, err
	}
	if v.Type().Kind != schema.KindBool {
		return false, &Error{Expr: e, Err: fmt.Errorf("%w: expected bool, got %v", schema.ErrTypeMismatch, v.Type())}
	}
	return v.Bool(), nil
}

// snapshot returns the snapshot the context currently reads from:
// the pre-state inside old(), the current one otherwise.
func (ctx Context) snapshot() state.Snapshot {
	if ctx.inOld {
		return ctx.Pre
	}
	return ctx.Current
}

func evalFieldRef(n *spec.FieldRef, ctx Context) (schema.Value, error) {
	indices := make([]schema.Value, len(n.Indices))
	for i, index := range n.Indices {
		v, err := Evaluate(index, ctx)
		if err != nil {
			return schema.Value{}, err
		}
		indices[i] = v
	}
	v, err := ctx.snapshot().Read(n.Contract, n.Field, indices...)
	if err != nil {
		return schema.Value{}, &Error{Expr: n, Err: err}
	}
	return v, nil
}

func evalUnary(n *spec.Unary, ctx Context) (schema.Value, error) {
	x, err := Evaluate(n.X, ctx)
	if err != nil {
		return schema.Value{}, err
	}
	switch n.Op {
	case spec.OpNot:
		return schema.NewBool(!x.Bool()), nil
	case spec.OpNeg:
		v, err := schema.Neg(x)
		if err != nil {
			return schema.Value{}, &Error{Expr: n, Err: err}
		}
		return v, nil
	}
	return schema.Value{}, &Error{Expr: n, Err: fmt.Errorf("unexpected operator %v", n.Op)}
}

func evalBinary(n *spec.Binary, ctx Context) (schema.Value, error) {
	// The logical operators short-circuit, so a guarded division like
	// x != 0 && y/x > 1 never traps on the guard's behalf.
	if n.Op == spec.OpAnd || n.Op == spec.OpOr {
		x, err := Bool(n.X, ctx)
		if err != nil {
			return schema.Value{}, err
		}
		if (n.Op == spec.OpAnd && !x) || (n.Op == spec.OpOr && x) {
			return schema.NewBool(x), nil
		}
		y, err := Bool(n.Y, ctx)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.NewBool(y), nil
	}

	x, err := Evaluate(n.X, ctx)
	if err != nil {
		return schema.Value{}, err
	}
	y, err := Evaluate(n.Y, ctx)
	if err != nil {
		return schema.Value{}, err
	}

	switch n.Op {
	case spec.OpEq:
		return schema.NewBool(x.Equal(y)), nil
	case spec.OpNe:
		return schema.NewBool(!x.Equal(y)), nil

	case spec.OpLt, spec.OpLe, spec.OpGt, spec.OpGe:
		order, err := schema.Compare(x, y)
		if err != nil {
			return schema.Value{}, &Error{Expr: n, Err: err}
		}
		switch n.Op {
		case spec.OpLt:
			return schema.NewBool(order < 0), nil
		case spec.OpLe:
			return schema.NewBool(order <= 0), nil
		case spec.OpGt:
			return schema.NewBool(order > 0), nil
		default:
			return schema.NewBool(order >= 0), nil
		}
	}

	var v schema.Value
	switch n.Op {
	case spec.OpAdd:
		v, err = schema.Add(x, y)
	case spec.OpSub:
		v, err = schema.Sub(x, y)
	case spec.OpMul:
		v, err = schema.Mul(x, y)
	case spec.OpDiv:
		v, err = schema.Div(x, y)
	case spec.OpMod:
		v, err = schema.Mod(x, y)
	default:
		err = fmt.Errorf("unexpected operator %v", n.Op)
	}
	if err != nil {
		return schema.Value{}, &Error{Expr: n, Err: err}
	}
	return v, nil
}

// evalFSum folds the element expression over all succeeded historical
// calls to the statement's target function, in trace sequence order.
// The fold is pure: the accumulator is local, the trace is read-only,
// and the sum over an empty matching set is the element type's zero.
func evalFSum(n *spec.FSum, ctx Context) (schema.Value, error) {
	if ctx.Trace == nil {
		return schema.Value{}, &Error{Expr: n, Err: ErrNoTrace}
	}

	sum := n.Type().Zero()
	view := *ctx.Trace
	for i := 0; i < view.Len(); i++ {
		tx := view.Get(i)
		if tx.Outcome != trace.Succeeded || !tx.Matches(ctx.TargetContract, ctx.TargetFunction) {
			continue
		}

		inner := ctx
		inner.hist = make(map[string]*trace.CallContext, len(ctx.hist)+1)
		for k, v := range ctx.hist {
			inner.hist[k] = v
		}
		inner.hist[n.Bound] = &tx.Call

		selected, err := Bool(n.Filter, inner)
		if err != nil {
			return schema.Value{}, fmt.Errorf("fsum filter at transaction #%d; %w", tx.Seq, err)
		}
		if !selected {
			continue
		}

		element, err := Evaluate(n.Elem, inner)
		if err != nil {
			return schema.Value{}, fmt.Errorf("fsum element at transaction #%d; %w", tx.Seq, err)
		}
		if sum, err = schema.Add(sum, element); err != nil {
			return schema.Value{}, fmt.Errorf("fsum accumulation at transaction #%d; %w", tx.Seq, &Error{Expr: n, Err: err})
		}
	}
	return sum, nil
}
