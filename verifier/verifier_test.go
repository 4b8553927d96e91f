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
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/logger"
	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/spec"
	"github.com/fidelio-tools/fidelio/state"
	"github.com/fidelio-tools/fidelio/trace"
)

var (
	alice = common.Address{0x0a}
	bob   = common.Address{0x0b}
)

func testRegistry() *schema.Registry {
	game := schema.NewContract("Game").
		WithField("started", schema.Bool).
		WithField("cost", schema.Uint(0)).
		WithField("value", schema.Uint(0)).
		WithField("pot", schema.Uint(0)).
		WithField("goalReached", schema.Bool).
		WithField("isFinalized", schema.Bool).
		WithFunction("play", schema.Param{Name: "guess", Type: schema.Uint(0)}).
		WithFunction("refund").
		WithFunction("finalize")
	return schema.NewRegistry(game)
}

func testVerifier() *Verifier {
	return New(logger.NewLogger("critical", "verifier-test"))
}

func parseStatement(t *testing.T, src string) *spec.Statement {
	t.Helper()
	st, err := spec.Parse(src, "Game", testRegistry())
	if err != nil {
		t.Fatalf("cannot parse %q: %v", src, err)
	}
	return st
}

func playCall(sender common.Address, value int64, guess uint64) trace.CallContext {
	return trace.CallContext{
		Sender:   sender,
		Value:    big.NewInt(value),
		Contract: "Game",
		Function: "play",
		Args:     []schema.Value{schema.Uint64(schema.Uint(0), guess)},
	}
}

func refundCall(sender common.Address) trace.CallContext {
	return trace.CallContext{
		Sender:   sender,
		Value:    big.NewInt(0),
		Contract: "Game",
		Function: "refund",
	}
}

func singleTxView(t *testing.T, tx *trace.Transaction) trace.View {
	t.Helper()
	repo := trace.NewRepository()
	if err := repo.Append(tx); err != nil {
		t.Fatalf("cannot append transaction: %v", err)
	}
	return repo.View()
}

// TestVerifier_FinishedStatement walks the finished state machine: the
// happy path, a vacuous precondition, an unexpected revert, and a
// violated postcondition with its concrete counterexample values.
func TestVerifier_FinishedStatement(t *testing.T) {
	reg := testRegistry()
	st := parseStatement(t, "finished(play(), started && value > cost |=> this.value == old(this.value) + guess)")

	pre := state.NewBuilder(reg).
		SetField("Game", "started", schema.NewBool(true)).
		SetField("Game", "cost", schema.Uint64(schema.Uint(0), 5)).
		SetField("Game", "value", schema.Uint64(schema.Uint(0), 10)).
		MustBuild()
	postAt := func(value uint64) state.Snapshot {
		return state.Derive(reg, pre).
			SetField("Game", "value", schema.Uint64(schema.Uint(0), value)).
			MustBuild()
	}

	t.Run("postcondition holds", func(t *testing.T) {
		tx := &trace.Transaction{Call: playCall(alice, 6, 7), Pre: pre, Outcome: trace.Succeeded, Post: postAt(17)}
		result, err := testVerifier().Check(st, tx, singleTxView(t, tx))
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if result.Status != StatusPass {
			t.Errorf("expected a pass, got %v", result.Status)
		}
	})

	t.Run("false precondition makes no claim", func(t *testing.T) {
		// Attached value below cost, so the statement does not apply.
		tx := &trace.Transaction{Call: playCall(alice, 3, 7), Pre: pre, Outcome: trace.Reverted}
		result, err := testVerifier().Check(st, tx, singleTxView(t, tx))
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if result.Status != StatusNotApplicable {
			t.Errorf("expected not applicable, got %v", result.Status)
		}
	})

	t.Run("unexpected revert", func(t *testing.T) {
		tx := &trace.Transaction{Call: playCall(alice, 6, 7), Pre: pre, Outcome: trace.Reverted}
		result, err := testVerifier().Check(st, tx, singleTxView(t, tx))
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if result.Status != StatusFailed || result.Counterexample == nil {
			t.Fatalf("expected a counterexample, got %v", result.Status)
		}
		if result.Counterexample.Kind != ExpectedSuccess {
			t.Errorf("unexpected cause %v", result.Counterexample.Kind)
		}
	})

	t.Run("violated postcondition carries concrete values", func(t *testing.T) {
		tx := &trace.Transaction{Call: playCall(alice, 6, 7), Pre: pre, Outcome: trace.Succeeded, Post: postAt(16)}
		result, err := testVerifier().Check(st, tx, singleTxView(t, tx))
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if result.Status != StatusFailed || result.Counterexample == nil {
			t.Fatalf("expected a counterexample, got %v", result.Status)
		}
		ce := result.Counterexample
		if ce.Kind != PostconditionViolated || len(ce.Conjuncts) != 1 {
			t.Fatalf("unexpected counterexample %v", ce)
		}
		conjunct := ce.Conjuncts[0]
		if conjunct.Left == nil || conjunct.Left.String() != "16" {
			t.Errorf("unexpected left-hand value %v, wanted 16", conjunct.Left)
		}
		if conjunct.Right == nil || conjunct.Right.String() != "17" {
			t.Errorf("unexpected right-hand value %v, wanted 17", conjunct.Right)
		}
	})
}

// TestVerifier_RevertedStatement exercises the full predicate/outcome
// matrix of both polarities.
func TestVerifier_RevertedStatement(t *testing.T) {
	reg := testRegistry()
	st := parseStatement(t, "reverted(refund(), goalReached() || !isFinalized)")

	predTrue := state.NewBuilder(reg).
		SetField("Game", "goalReached", schema.NewBool(true)).
		SetField("Game", "isFinalized", schema.NewBool(true)).
		MustBuild()
	predFalse := state.NewBuilder(reg).
		SetField("Game", "goalReached", schema.NewBool(false)).
		SetField("Game", "isFinalized", schema.NewBool(true)).
		MustBuild()

	tests := map[string]struct {
		statement *spec.Statement
		pre       state.Snapshot
		outcome   trace.Outcome
		status    Status
		cause     CauseKind
	}{
		"true predicate, reverted": {
			statement: st, pre: predTrue, outcome: trace.Reverted, status: StatusPass,
		},
		"true predicate, succeeded": {
			statement: st, pre: predTrue, outcome: trace.Succeeded,
			status: StatusFailed, cause: ExpectedRevertButSucceeded,
		},
		"false predicate, succeeded": {
			statement: st, pre: predFalse, outcome: trace.Succeeded, status: StatusPass,
		},
		"false predicate, reverted": {
			statement: st, pre: predFalse, outcome: trace.Reverted,
			status: StatusFailed, cause: ExpectedSuccessButReverted,
		},
		"one-directional ignores false predicates": {
			statement: st.WithPolarity(spec.OneDirectional),
			pre:       predFalse, outcome: trace.Reverted, status: StatusNotApplicable,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			tx := &trace.Transaction{Call: refundCall(alice), Pre: test.pre, Outcome: test.outcome}
			if test.outcome == trace.Succeeded {
				tx.Post = test.pre
			}
			result, err := testVerifier().Check(test.statement, tx, singleTxView(t, tx))
			if err != nil {
				t.Fatalf("check failed: %v", err)
			}
			if result.Status != test.status {
				t.Fatalf("unexpected status, wanted %v, got %v", test.status, result.Status)
			}
			if test.status == StatusFailed && result.Counterexample.Kind != test.cause {
				t.Errorf("unexpected cause, wanted %v, got %v", test.cause, result.Counterexample.Kind)
			}
		})
	}
}

// constantWorldTrace builds a trace over an unchanging world state with
// the given calls, all succeeded.
func constantWorldTrace(t *testing.T, world state.Snapshot, calls []trace.CallContext) trace.View {
	t.Helper()
	repo := trace.NewRepository()
	for i, call := range calls {
		tx := &trace.Transaction{Seq: uint64(i), Call: call, Pre: world, Outcome: trace.Succeeded, Post: world}
		if err := repo.Append(tx); err != nil {
			t.Fatalf("cannot append transaction #%d: %v", i, err)
		}
	}
	return repo.View()
}

func TestVerifier_AggregateOverTheWholeTrace(t *testing.T) {
	reg := testRegistry()
	world := state.NewBuilder(reg).MustBuild()
	view := constantWorldTrace(t, world, []trace.CallContext{
		playCall(alice, 1, 3),
		refundCall(bob), // not a play call, must not count
		playCall(bob, 1, 5),
	})

	st := parseStatement(t, "finished(play(), true |=> fsum(guess, true, guess) == 8)")
	report, err := testVerifier().Run(Params{To: -1, NumWorkers: 1}, view, []*spec.Statement{st})
	if err != nil {
		t.Fatalf("verification run failed: %v", err)
	}
	if !report.Passed() {
		t.Errorf("the guess sum must be 8 at every matching transaction: %+v", report.Verdicts[0])
	}
	if got := report.Verdicts[0].Checked; got != 2 {
		t.Errorf("both play transactions must be checked, got %d", got)
	}
}

func TestVerifier_EarliestCounterexampleUnlessReportAll(t *testing.T) {
	reg := testRegistry()
	world := state.NewBuilder(reg).
		SetField("Game", "value", schema.Uint64(schema.Uint(0), 1)).
		MustBuild()
	view := constantWorldTrace(t, world, []trace.CallContext{
		playCall(alice, 1, 3),
		playCall(bob, 1, 5),
	})

	// The field stays 1, so this fails at every play transaction.
	st := parseStatement(t, "finished(play(), true |=> this.value == 0)")

	report, err := testVerifier().Run(Params{To: -1, NumWorkers: 1}, view, []*spec.Statement{st})
	if err != nil {
		t.Fatalf("verification run failed: %v", err)
	}
	failures := report.Verdicts[0].Failures
	if len(failures) != 1 || failures[0].Seq != 0 {
		t.Fatalf("expected only the earliest counterexample, got %v", failures)
	}

	report, err = testVerifier().Run(Params{To: -1, NumWorkers: 1, ReportAll: true}, view, []*spec.Statement{st})
	if err != nil {
		t.Fatalf("verification run failed: %v", err)
	}
	failures = report.Verdicts[0].Failures
	if len(failures) != 2 || failures[0].Seq != 0 || failures[1].Seq != 1 {
		t.Fatalf("report-all must keep scanning, got %v", failures)
	}
}

func TestVerifier_WindowRestrictsCheckedTransactions(t *testing.T) {
	reg := testRegistry()
	world := state.NewBuilder(reg).
		SetField("Game", "value", schema.Uint64(schema.Uint(0), 1)).
		MustBuild()
	view := constantWorldTrace(t, world, []trace.CallContext{
		playCall(alice, 1, 3),
		playCall(bob, 1, 5),
	})

	st := parseStatement(t, "finished(play(), true |=> this.value == 0)")
	report, err := testVerifier().Run(Params{From: 1, To: -1, NumWorkers: 1, ReportAll: true}, view, []*spec.Statement{st})
	if err != nil {
		t.Fatalf("verification run failed: %v", err)
	}
	verdict := report.Verdicts[0]
	if verdict.Checked != 1 || len(verdict.Failures) != 1 || verdict.Failures[0].Seq != 1 {
		t.Errorf("the window must exclude transaction #0: %+v", verdict)
	}
}

func TestVerifier_EvaluationErrorsAreFatalToTheStatement(t *testing.T) {
	reg := testRegistry()
	world := state.NewBuilder(reg).
		SetField("Game", "pot", schema.Uint64(schema.Uint(0), 7)).
		MustBuild() // cost stays zero
	view := constantWorldTrace(t, world, []trace.CallContext{playCall(alice, 1, 3)})

	st := parseStatement(t, "reverted(play(), pot / cost > 0)")
	report, err := testVerifier().Run(Params{To: -1, NumWorkers: 1}, view, []*spec.Statement{st})
	if err != nil {
		t.Fatalf("the run itself must survive a defective statement: %v", err)
	}
	verdict := report.Verdicts[0]
	if verdict.Err == nil || !errors.Is(verdict.Err, schema.ErrDivisionByZero) {
		t.Errorf("expected a division by zero verdict error, got %v", verdict.Err)
	}
	if verdict.Passed() {
		t.Errorf("a statement with an evaluation error must not pass")
	}
	if report.Passed() {
		t.Errorf("the report must reflect the defective statement")
	}
}

func TestVerifier_RunsAreIdempotentAndModeAgnostic(t *testing.T) {
	reg := testRegistry()
	world := state.NewBuilder(reg).
		SetField("Game", "started", schema.NewBool(true)).
		SetField("Game", "isFinalized", schema.NewBool(true)).
		MustBuild()
	view := constantWorldTrace(t, world, []trace.CallContext{
		playCall(alice, 1, 3),
		refundCall(bob),
		playCall(bob, 1, 5),
	})

	statements := []*spec.Statement{
		parseStatement(t, "finished(play(), started |=> fsum(guess, true, guess) == 8)"),
		parseStatement(t, "reverted(refund(), goalReached() || !isFinalized)"),
		parseStatement(t, "finished(play(), true |=> this.value == 0)"),
		parseStatement(t, "finished(finalize(), true |=> isFinalized)"), // never matched
	}

	verify := func(workers int) *Report {
		report, err := testVerifier().Run(Params{To: -1, NumWorkers: workers, ReportAll: true}, view, statements)
		if err != nil {
			t.Fatalf("verification run failed: %v", err)
		}
		return report
	}

	first := verify(1)
	second := verify(1)
	parallel := verify(4)

	for i := range statements {
		for name, other := range map[string]*Report{"repeated": second, "parallel": parallel} {
			a, b := first.Verdicts[i], other.Verdicts[i]
			if a.Checked != b.Checked || a.NotApplicable != b.NotApplicable || len(a.Failures) != len(b.Failures) {
				t.Errorf("%s run diverged on statement %d: %+v vs %+v", name, i, a, b)
			}
		}
	}
	if verdict := first.Verdicts[3]; verdict.Checked != 0 || !verdict.Passed() {
		t.Errorf("a never-matched statement holds vacuously: %+v", verdict)
	}
}
