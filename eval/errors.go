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

package eval

import (
	"errors"
	"fmt"

	"github.com/fidelio-tools/fidelio/spec"
)

var (
	// ErrOldUnavailable reports old() evaluated in a context with no
	// pre-state bound, e.g. inside a bare precondition.
	ErrOldUnavailable = errors.New("old value unavailable: no pre-state bound")

	// ErrNoTrace reports an aggregate evaluated in a context with no
	// trace view bound.
	ErrNoTrace = errors.New("aggregate requires a trace view")
)

// Error is an evaluation failure annotated with the offending
// sub-expression. The cause remains reachable through errors.Is, e.g.
// schema.ErrDivisionByZero or state.ErrUnknownField.
type Error struct {
	Expr spec.Expr
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot evaluate %v; %v", e.Expr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
