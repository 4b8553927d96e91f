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
	"strings"

	"github.com/fidelio-tools/fidelio/schema"
)

// Status is the outcome of checking one statement against one
// transaction.
type Status int

const (
	// StatusPass means the statement holds for the transaction.
	StatusPass Status = iota
	// StatusNotApplicable means the transaction makes no claim: the
	// precondition was false, or a one-directional reverted-statement
	// saw a false predicate. Not a pass, not a failure.
	StatusNotApplicable
	// StatusFailed means the transaction is a counterexample.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusNotApplicable:
		return "not applicable"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", s)
}

// CauseKind classifies a counterexample.
type CauseKind int

const (
	// ExpectedRevertButSucceeded: the revert predicate held, yet the
	// transaction succeeded.
	ExpectedRevertButSucceeded CauseKind = iota
	// ExpectedSuccessButReverted: the revert predicate was false under
	// the biconditional reading, yet the transaction reverted.
	ExpectedSuccessButReverted
	// ExpectedSuccess: the precondition of a finished-statement held,
	// yet the transaction reverted.
	ExpectedSuccess
	// PostconditionViolated: precondition held, the call succeeded, and
	// at least one postcondition conjunct is false over the post-state.
	PostconditionViolated
)

func (k CauseKind) String() string {
	switch k {
	case ExpectedRevertButSucceeded:
		return "expected revert but succeeded"
	case ExpectedSuccessButReverted:
		return "expected success but reverted"
	case ExpectedSuccess:
		return "expected success"
	case PostconditionViolated:
		return "postcondition violated"
	}
	return fmt.Sprintf("cause(%d)", k)
}

// Conjunct is one failing sub-expression of a counterexample. For
// comparisons, Left and Right carry the concrete evaluated values of
// both sides.
type Conjunct struct {
	Source string
	Left   *schema.Value
	Right  *schema.Value
}

func (c Conjunct) String() string {
	if c.Left == nil || c.Right == nil {
		return c.Source
	}
	return fmt.Sprintf("%s (left: %v, right: %v)", c.Source, c.Left, c.Right)
}

// Counterexample is a concrete transaction demonstrating a statement's
// violation, with enough evaluated data to reproduce and debug it.
type Counterexample struct {
	Statement string
	Seq       uint64
	Kind      CauseKind
	Conjuncts []Conjunct
}

func (c *Counterexample) String() string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%v at transaction #%d for statement %q", c.Kind, c.Seq, c.Statement))
	for _, conjunct := range c.Conjuncts {
		builder.WriteString(fmt.Sprintf("\n\t%v", conjunct))
	}
	return builder.String()
}

// Result is the verdict for one (statement, transaction) pair.
type Result struct {
	Statement string
	Seq       uint64
	Status    Status

	// Counterexample is set iff Status is StatusFailed.
	Counterexample *Counterexample
}

// StatementVerdict aggregates the per-transaction results of one
// statement over a trace view.
type StatementVerdict struct {
	Statement     string
	Checked       int // matching transactions examined
	NotApplicable int // of which made no claim

	// Failures lists counterexamples in trace order. Unless running in
	// report-all mode it holds at most the earliest one.
	Failures []*Counterexample

	// Err is set when the statement could not be verified at all, e.g.
	// a specification error only detectable during evaluation. It is
	// fatal to this statement, never to the run.
	Err error
}

// Passed reports whether every examined transaction passed or made no
// claim.
func (v *StatementVerdict) Passed() bool {
	return v.Err == nil && len(v.Failures) == 0
}

// Report is the outcome of verifying a set of statements over a trace
// view, one verdict per statement, in input order.
type Report struct {
	Verdicts []*StatementVerdict
}

// Passed reports whether all statements passed.
func (r *Report) Passed() bool {
	for _, v := range r.Verdicts {
		if !v.Passed() {
			return false
		}
	}
	return true
}
