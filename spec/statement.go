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

package spec

import (
	"strings"

	"github.com/fidelio-tools/fidelio/schema"
)

// StatementKind distinguishes the two first-class statement forms.
type StatementKind int

const (
	// KindReverted asserts a relation between a predicate over the
	// pre-state and the transaction reverting.
	KindReverted StatementKind = iota
	// KindFinished asserts a postcondition over the post-state whenever
	// a precondition held over the pre-state and the call succeeded.
	KindFinished
)

// Polarity selects the reading of a reverted-statement.
type Polarity int

const (
	// Biconditional reads "reverts if and only if the predicate holds".
	// It is the stronger and more useful property and the default.
	Biconditional Polarity = iota
	// OneDirectional reads "reverts whenever the predicate holds" and
	// makes no claim about transactions with a false predicate.
	OneDirectional
)

// Statement is a single formal assertion about the transactional
// behavior of a contract function. Statements are authored once, are
// immutable, and are stateless during verification.
type Statement struct {
	src       string
	subject   string
	function  string
	kind      StatementKind
	polarity  Polarity
	pred      Expr
	pre       Expr
	post      Expr
	conjuncts []Expr
}

// Parse parses and statically checks one statement against the schema
// registry. The subject contract provides the binding for bare field
// references. Supported forms:
//
//	reverted(fn(), <predicate>)
//	onlyif reverted(fn(), <predicate>)
//	finished(fn(), <precondition> |=> <postcondition>)
//
// Any unknown identifier, type mismatch, or old() outside the
// postcondition is reported here, before any trace is scanned.
func Parse(src, subject string, reg *schema.Registry) (*Statement, error) {
	subjectSchema, ok := reg.Contract(subject)
	if !ok {
		return nil, errorf(0, ErrUnknownContract, "contract %q is not registered", subject)
	}

	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	st := &Statement{src: strings.TrimSpace(src), subject: subject}

	head, err := p.expect(tokIdent, "reverted or finished")
	if err != nil {
		return nil, err
	}
	if head.text == "onlyif" {
		st.polarity = OneDirectional
		if head, err = p.expect(tokIdent, "reverted"); err != nil {
			return nil, err
		}
		if head.text != "reverted" {
			return nil, errorf(head.pos, ErrSyntax, "onlyif can only prefix reverted, got %q", head.text)
		}
	}

	switch head.text {
	case "reverted":
		st.kind = KindReverted
	case "finished":
		st.kind = KindFinished
	default:
		return nil, errorf(head.pos, ErrSyntax, "expected reverted or finished, got %q", head.text)
	}

	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	target, err := p.expect(tokIdent, "target function")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}

	fn, ok := subjectSchema.Function(target.text)
	if !ok {
		return nil, errorf(target.pos, ErrUnknownFunction, "contract %s declares no function %q", subject, target.text)
	}
	st.function = fn.Name

	sc := &scope{reg: reg, subject: subjectSchema, fn: fn, bound: map[string]bool{}}

	switch st.kind {
	case KindReverted:
		pred, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if st.pred, err = resolveBool(pred, sc, "predicate"); err != nil {
			return nil, err
		}

	case KindFinished:
		pre, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokImply, "|=>"); err != nil {
			return nil, err
		}
		post, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if st.pre, err = resolveBool(pre, sc, "precondition"); err != nil {
			return nil, err
		}
		postScope := sc.child()
		postScope.allowOld = true
		if st.post, err = resolveBool(post, postScope, "postcondition"); err != nil {
			return nil, err
		}
		st.conjuncts = splitConjuncts(st.post)
	}

	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errorf(t.pos, ErrSyntax, "trailing input %v", t)
	}
	return st, nil
}

func resolveBool(e Expr, sc *scope, role string) (Expr, error) {
	resolved, err := resolve(e, sc)
	if err != nil {
		return nil, err
	}
	if resolved.Type().Kind != schema.KindBool {
		return nil, errorf(resolved.Pos(), schema.ErrTypeMismatch,
			"%s %v has type %v, want bool", role, resolved, resolved.Type())
	}
	return resolved, nil
}

// splitConjuncts flattens top-level && so partial postcondition
// failures can be reported per conjunct.
func splitConjuncts(e Expr) []Expr {
	if b, ok := e.(*Binary); ok && b.Op == OpAnd {
		return append(splitConjuncts(b.X), splitConjuncts(b.Y)...)
	}
	return []Expr{e}
}

// Source returns the trimmed statement source, which doubles as the
// statement identity in verdicts.
func (s *Statement) Source() string {
	return s.src
}

// Subject returns the contract bare field references bind to.
func (s *Statement) Subject() string {
	return s.subject
}

// Function returns the target function name.
func (s *Statement) Function() string {
	return s.function
}

// Kind returns the statement form.
func (s *Statement) Kind() StatementKind {
	return s.kind
}

// Polarity returns the reading of a reverted-statement.
func (s *Statement) Polarity() Polarity {
	return s.polarity
}

// WithPolarity derives a statement with the given polarity, leaving the
// receiver untouched.
func (s *Statement) WithPolarity(p Polarity) *Statement {
	derived := *s
	derived.polarity = p
	return &derived
}

// Pred returns the predicate of a reverted-statement.
func (s *Statement) Pred() Expr {
	return s.pred
}

// Pre returns the precondition of a finished-statement.
func (s *Statement) Pre() Expr {
	return s.pre
}

// Post returns the postcondition of a finished-statement.
func (s *Statement) Post() Expr {
	return s.post
}

// PostConjuncts returns the postcondition split on top-level &&.
func (s *Statement) PostConjuncts() []Expr {
	return s.conjuncts
}

func (s *Statement) String() string {
	return s.src
}
