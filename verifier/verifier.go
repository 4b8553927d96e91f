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

package verifier

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fidelio-tools/fidelio/eval"
	"github.com/fidelio-tools/fidelio/logger"
	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/spec"
	"github.com/fidelio-tools/fidelio/trace"
	"github.com/fidelio-tools/fidelio/utils"
)

// Params summarizes input parameters for one verification run.
type Params struct {
	// From and To bound the window of trace positions to check,
	// [From, To). A negative To means the end of the view.
	From int
	To   int

	// NumWorkers is the number of goroutines verifying statements
	// concurrently. Statements are independent and snapshots immutable,
	// so any number <= 1 is simply sequential.
	NumWorkers int

	// ReportAll collects every failing transaction of a statement
	// instead of stopping at the earliest counterexample.
	ReportAll bool
}

// ParamsFromConfig derives run parameters from a session config.
func ParamsFromConfig(cfg *utils.Config) Params {
	return Params{
		From:       0,
		To:         -1,
		NumWorkers: cfg.Workers,
		ReportAll:  cfg.ReportAll,
	}
}

// Verifier decides statements against transaction traces. It holds no
// mutable state of its own; verifying the same statement against the
// same view twice yields identical verdicts.
type Verifier struct {
	log logger.Logger
}

// New creates a verifier logging through the given logger.
func New(log logger.Logger) *Verifier {
	return &Verifier{log: log}
}

// MakeVerifier creates a verifier configured from a session config.
func MakeVerifier(cfg *utils.Config) *Verifier {
	return New(logger.NewLogger(cfg.LogLevel, "verifier"))
}

// Run verifies every statement against all matching transactions in
// the view and returns one verdict per statement, in input order.
// Verification failures are collected in the verdicts; the returned
// error reports only an internal fault of the run itself.
func (v *Verifier) Run(params Params, view trace.View, statements []*spec.Statement) (*Report, error) {
	report := &Report{Verdicts: make([]*StatementVerdict, len(statements))}
	v.log.Noticef("verifying %d statements over %d transactions", len(statements), view.Len())

	if params.NumWorkers <= 1 {
		for i, st := range statements {
			report.Verdicts[i] = v.verifyStatement(params, view, st)
		}
	} else if err := v.runParallel(params, view, statements, report); err != nil {
		return nil, err
	}

	passed := 0
	for _, verdict := range report.Verdicts {
		if verdict.Passed() {
			passed++
		}
	}
	v.log.Noticef("verification finished: %d of %d statements passed", passed, len(statements))
	return report, nil
}

// runParallel fans the statements out to NumWorkers goroutines. Each
// statement writes only its own verdict slot, so no synchronization is
// needed beyond the work queue itself. Panics of workers are forwarded
// to the caller after all workers drained.
func (v *Verifier) runParallel(params Params, view trace.View, statements []*spec.Statement, report *Report) error {
	abort := utils.MakeEvent()
	work := make(chan int, len(statements))
	for i := range statements {
		work <- i
	}
	close(work)

	var cachedPanic atomic.Value
	var wg sync.WaitGroup
	wg.Add(params.NumWorkers)
	for w := 0; w < params.NumWorkers; w++ {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					abort.Signal() // stop other workers too
					cachedPanic.Store(r)
				}
			}()
			defer wg.Done()
			for {
				select {
				case i, ok := <-work:
					if !ok {
						return
					}
					report.Verdicts[i] = v.verifyStatement(params, view, statements[i])
				case <-abort.Wait():
					return
				}
			}
		}()
	}
	wg.Wait()

	if r := cachedPanic.Load(); r != nil {
		panic(r)
	}
	for i := range report.Verdicts {
		if report.Verdicts[i] == nil {
			return fmt.Errorf("verification aborted before statement %d was checked", i)
		}
	}
	return nil
}

// verifyStatement folds the per-transaction check over every matching
// transaction of the view, in sequence order. The earliest failing
// transaction is always reported first; report-all mode keeps scanning
// after a failure.
func (v *Verifier) verifyStatement(params Params, view trace.View, st *spec.Statement) *StatementVerdict {
	verdict := &StatementVerdict{Statement: st.Source()}

	to := params.To
	if to < 0 || to > view.Len() {
		to = view.Len()
	}
	for i := params.From; i < to; i++ {
		tx := view.Get(i)
		if !tx.Matches(st.Subject(), st.Function()) {
			continue
		}

		result, err := v.Check(st, tx, view)
		if err != nil {
			verdict.Err = fmt.Errorf("statement %q cannot be verified at transaction #%d; %w", st, tx.Seq, err)
			v.log.Errorf("%v", verdict.Err)
			return verdict
		}

		verdict.Checked++
		switch result.Status {
		case StatusNotApplicable:
			verdict.NotApplicable++
		case StatusFailed:
			v.log.Warningf("counterexample: %v", result.Counterexample)
			verdict.Failures = append(verdict.Failures, result.Counterexample)
			if !params.ReportAll {
				return verdict
			}
		}
	}
	v.log.Debugf("statement %q: %d transactions checked, %d not applicable, %d counterexamples",
		st, verdict.Checked, verdict.NotApplicable, len(verdict.Failures))
	return verdict
}

// Check decides one statement against one transaction. Transactions
// not matching the statement's target make no claim. The returned
// error reports a defect of the statement, not of the contract; it is
// fatal to the statement's verification and never a counterexample.
func (v *Verifier) Check(st *spec.Statement, tx *trace.Transaction, view trace.View) (Result, error) {
	result := Result{Statement: st.Source(), Seq: tx.Seq}
	if !tx.Matches(st.Subject(), st.Function()) {
		result.Status = StatusNotApplicable
		return result, nil
	}

	switch st.Kind() {
	case spec.KindReverted:
		return v.checkReverted(st, tx, view)
	case spec.KindFinished:
		return v.checkFinished(st, tx, view)
	}
	return Result{}, fmt.Errorf("unknown statement kind %d", st.Kind())
}

// checkReverted implements the reverted state machine: a true predicate
// demands a revert; under the biconditional reading a false predicate
// additionally demands success.
func (v *Verifier) checkReverted(st *spec.Statement, tx *trace.Transaction, view trace.View) (Result, error) {
	result := Result{Statement: st.Source(), Seq: tx.Seq}

	ctx := eval.Context{
		Current:        tx.Pre,
		Call:           &tx.Call,
		Trace:          &view,
		TargetContract: st.Subject(),
		TargetFunction: st.Function(),
	}
	holds, err := eval.Bool(st.Pred(), ctx)
	if err != nil {
		return Result{}, err
	}

	if holds {
		if tx.Outcome == trace.Reverted {
			result.Status = StatusPass
			return result, nil
		}
		result.Status = StatusFailed
		result.Counterexample = &Counterexample{
			Statement: st.Source(),
			Seq:       tx.Seq,
			Kind:      ExpectedRevertButSucceeded,
			Conjuncts: []Conjunct{{Source: st.Pred().String()}},
		}
		return result, nil
	}

	if st.Polarity() == spec.OneDirectional {
		// No claim when the predicate is false.
		result.Status = StatusNotApplicable
		return result, nil
	}

	if tx.Outcome == trace.Succeeded {
		result.Status = StatusPass
		return result, nil
	}
	result.Status = StatusFailed
	result.Counterexample = &Counterexample{
		Statement: st.Source(),
		Seq:       tx.Seq,
		Kind:      ExpectedSuccessButReverted,
		Conjuncts: []Conjunct{{Source: st.Pred().String()}},
	}
	return result, nil
}

// checkFinished implements the finished state machine: a false
// precondition satisfies the statement vacuously; a true precondition
// promises success and the postcondition over the post-state, with
// pre-state values reachable through old().
func (v *Verifier) checkFinished(st *spec.Statement, tx *trace.Transaction, view trace.View) (Result, error) {
	result := Result{Statement: st.Source(), Seq: tx.Seq}

	preCtx := eval.Context{
		Current:        tx.Pre,
		Call:           &tx.Call,
		Trace:          &view,
		TargetContract: st.Subject(),
		TargetFunction: st.Function(),
	}
	holds, err := eval.Bool(st.Pre(), preCtx)
	if err != nil {
		return Result{}, err
	}
	if !holds {
		result.Status = StatusNotApplicable
		return result, nil
	}

	if tx.Outcome == trace.Reverted {
		result.Status = StatusFailed
		result.Counterexample = &Counterexample{
			Statement: st.Source(),
			Seq:       tx.Seq,
			Kind:      ExpectedSuccess,
			Conjuncts: []Conjunct{{Source: st.Pre().String()}},
		}
		return result, nil
	}

	postCtx := eval.Context{
		Current:        tx.Post,
		Pre:            tx.Pre,
		Call:           &tx.Call,
		Trace:          &view,
		TargetContract: st.Subject(),
		TargetFunction: st.Function(),
	}

	var failed []Conjunct
	for _, conjunct := range st.PostConjuncts() {
		holds, err := eval.Bool(conjunct, postCtx)
		if err != nil {
			return Result{}, err
		}
		if holds {
			continue
		}
		failed = append(failed, describeConjunct(conjunct, postCtx))
	}

	if len(failed) == 0 {
		result.Status = StatusPass
		return result, nil
	}
	result.Status = StatusFailed
	result.Counterexample = &Counterexample{
		Statement: st.Source(),
		Seq:       tx.Seq,
		Kind:      PostconditionViolated,
		Conjuncts: failed,
	}
	return result, nil
}

// describeConjunct renders a failed conjunct with the concrete values
// of both sides when it is a comparison.
func describeConjunct(conjunct spec.Expr, ctx eval.Context) Conjunct {
	described := Conjunct{Source: conjunct.String()}

	binary, ok := conjunct.(*spec.Binary)
	if !ok {
		return described
	}
	switch binary.Op {
	case spec.OpEq, spec.OpNe, spec.OpLt, spec.OpLe, spec.OpGt, spec.OpGe:
	default:
		return described
	}

	// The conjunct already evaluated to false without error, so both
	// sides evaluate cleanly.
	left, err := eval.Evaluate(binary.X, ctx)
	if err != nil {
		return described
	}
	right, err := eval.Evaluate(binary.Y, ctx)
	if err != nil {
		return described
	}
	described.Left = valueRef(left)
	described.Right = valueRef(right)
	return described
}

func valueRef(v schema.Value) *schema.Value {
	return &v
}
