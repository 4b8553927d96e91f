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
	"errors"
	"fmt"
)

// Specification errors are detected statically, before any trace is
// scanned. They are fatal to the affected statement and reported once,
// as opposed to verification failures which are reported per
// transaction and never abort a run.
var (
	ErrSyntax            = errors.New("syntax error")
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrUnknownContract   = errors.New("unknown contract")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrOldScope          = errors.New("old is only available in postconditions")
)

// Error is a specification error located in the statement source.
type Error struct {
	Position Pos
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Position, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(pos Pos, sentinel error, format string, args ...interface{}) error {
	return &Error{
		Position: pos,
		Msg:      fmt.Sprintf(format, args...),
		Err:      sentinel,
	}
}
