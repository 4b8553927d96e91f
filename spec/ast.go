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
	"fmt"
	"strings"

	"github.com/fidelio-tools/fidelio/schema"
)

// Pos is a byte offset into the statement source, kept on every node
// for diagnosable specification errors.
type Pos int

// Expr is a node of a specification expression. Expressions leave the
// static checker fully resolved: no identifier remains unbound, and
// every node carries its type. They are immutable afterwards and owned
// exclusively by the statement containing them.
type Expr interface {
	Pos() Pos
	Type() schema.Type
	String() string
	exprNode()
}

// Op enumerates the operators of the expression language.
type Op int

const (
	OpOr Op = iota
	OpAnd
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
)

func (op Op) String() string {
	switch op {
	case OpOr:
		return "||"
	case OpAnd:
		return "&&"
	case OpNot, OpNeg:
		if op == OpNot {
			return "!"
		}
		return "-"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	}
	return fmt.Sprintf("op(%d)", op)
}

// CallVarKind selects one of the call-context variables.
type CallVarKind int

const (
	SenderVar CallVarKind = iota
	ValueVar
)

// Literal is a constant value.
type Literal struct {
	position Pos
	Value    schema.Value
}

// FieldRef reads a declared storage field of a contract, optionally
// descending through mapping indices. The contract binding is always
// explicit after checking; bare field names are bound to the
// statement's subject contract.
type FieldRef struct {
	position Pos
	Contract string
	Field    string
	Indices  []Expr
	typ      schema.Type
	explicit bool // written as this.<field> in the source
	getter   bool // written as <field>() in the source
}

// CallVar reads sender or value of the transaction under test. These
// always resolve to the checked transaction's call context, never to a
// historical one.
type CallVar struct {
	position Pos
	Kind     CallVarKind
}

// ArgRef reads a named argument of the call under test, resolved to its
// position in the target function's signature.
type ArgRef struct {
	position Pos
	Name     string
	Index    int
	typ      schema.Type
}

// BoundArgRef reads an argument of the historical call bound by an
// enclosing fsum.
type BoundArgRef struct {
	position Pos
	Var      string
	Name     string
	Index    int
	typ      schema.Type
	bare     bool // written as the bare bound variable, not var.name
}

// BoundCallVar reads sender or value of the historical call bound by an
// enclosing fsum, written as var.sender or var.value.
type BoundCallVar struct {
	position Pos
	Var      string
	Kind     CallVarKind
}

// Unary applies ! or unary - to a single operand.
type Unary struct {
	position Pos
	Op       Op
	X        Expr
	typ      schema.Type
}

// Binary applies a binary operator.
type Binary struct {
	position Pos
	Op       Op
	X, Y     Expr
	typ      schema.Type
}

// Old evaluates its operand against the pre-state snapshot instead of
// the current one.
type Old struct {
	position Pos
	X        Expr
}

// Balance reads the native-token balance of the evaluated address from
// the contextually current snapshot.
type Balance struct {
	position Pos
	Addr     Expr
}

// FSum sums Elem over all succeeded historical calls to the statement's
// target function for which Filter holds, binding Bound per call. The
// sum over an empty matching set is the zero of the element type.
type FSum struct {
	position Pos
	Bound    string
	Elem     Expr
	Filter   Expr
}

// Ident is an unresolved identifier. It only exists between parsing and
// checking; checked expressions contain none.
type Ident struct {
	position Pos
	Name     string
	getter   bool
	Indices  []Expr
	explicit bool // this.<name>
}

// Member is an unresolved member access (base.sel). It only exists
// between parsing and checking.
type Member struct {
	position Pos
	Base     string
	Sel      string
}

func (e *Literal) Pos() Pos      { return e.position }
func (e *FieldRef) Pos() Pos     { return e.position }
func (e *CallVar) Pos() Pos      { return e.position }
func (e *ArgRef) Pos() Pos       { return e.position }
func (e *BoundArgRef) Pos() Pos  { return e.position }
func (e *BoundCallVar) Pos() Pos { return e.position }
func (e *Unary) Pos() Pos        { return e.position }
func (e *Binary) Pos() Pos       { return e.position }
func (e *Old) Pos() Pos          { return e.position }
func (e *Balance) Pos() Pos      { return e.position }
func (e *FSum) Pos() Pos         { return e.position }
func (e *Ident) Pos() Pos        { return e.position }
func (e *Member) Pos() Pos       { return e.position }

func (e *Literal) Type() schema.Type      { return e.Value.Type() }
func (e *FieldRef) Type() schema.Type     { return e.typ }
func (e *CallVar) Type() schema.Type      { return callVarType(e.Kind) }
func (e *ArgRef) Type() schema.Type       { return e.typ }
func (e *BoundArgRef) Type() schema.Type  { return e.typ }
func (e *BoundCallVar) Type() schema.Type { return callVarType(e.Kind) }
func (e *Unary) Type() schema.Type        { return e.typ }
func (e *Binary) Type() schema.Type       { return e.typ }
func (e *Old) Type() schema.Type          { return e.X.Type() }
func (e *Balance) Type() schema.Type      { return schema.Uint(0) }
func (e *FSum) Type() schema.Type         { return e.Elem.Type() }
func (e *Ident) Type() schema.Type        { return schema.Type{} }
func (e *Member) Type() schema.Type       { return schema.Type{} }

func callVarType(k CallVarKind) schema.Type {
	if k == SenderVar {
		return schema.Address
	}
	return schema.Uint(0)
}

func (e *Literal) String() string { return e.Value.String() }

func (e *FieldRef) String() string {
	builder := strings.Builder{}
	if e.explicit {
		builder.WriteString("this.")
	}
	builder.WriteString(e.Field)
	if e.getter {
		builder.WriteString("()")
	}
	for _, index := range e.Indices {
		builder.WriteString(fmt.Sprintf("[%v]", index))
	}
	return builder.String()
}

func (e *CallVar) String() string {
	if e.Kind == SenderVar {
		return "sender"
	}
	return "value"
}

func (e *ArgRef) String() string { return e.Name }

func (e *BoundArgRef) String() string {
	if e.bare {
		return e.Var
	}
	return e.Var + "." + e.Name
}

func (e *BoundCallVar) String() string {
	if e.Kind == SenderVar {
		return e.Var + ".sender"
	}
	return e.Var + ".value"
}

func (e *Unary) String() string {
	return fmt.Sprintf("%v%v", e.Op, operand(e.X))
}

func (e *Binary) String() string {
	return fmt.Sprintf("%v %v %v", operand(e.X), e.Op, operand(e.Y))
}

func (e *Old) String() string {
	return fmt.Sprintf("old(%v)", e.X)
}

func (e *Balance) String() string {
	return fmt.Sprintf("balance(%v)", e.Addr)
}

func (e *FSum) String() string {
	return fmt.Sprintf("fsum(%v, %v, %s)", e.Elem, e.Filter, e.Bound)
}

func (e *Ident) String() string {
	builder := strings.Builder{}
	if e.explicit {
		builder.WriteString("this.")
	}
	builder.WriteString(e.Name)
	if e.getter {
		builder.WriteString("()")
	}
	for _, index := range e.Indices {
		builder.WriteString(fmt.Sprintf("[%v]", index))
	}
	return builder.String()
}

func (e *Member) String() string { return e.Base + "." + e.Sel }

// operand parenthesizes composite sub-expressions when rendering.
func operand(e Expr) string {
	switch e.(type) {
	case *Binary, *Unary:
		return fmt.Sprintf("(%v)", e)
	}
	return e.String()
}

func (e *Literal) exprNode()      {}
func (e *FieldRef) exprNode()     {}
func (e *CallVar) exprNode()      {}
func (e *ArgRef) exprNode()       {}
func (e *BoundArgRef) exprNode()  {}
func (e *BoundCallVar) exprNode() {}
func (e *Unary) exprNode()        {}
func (e *Binary) exprNode()       {}
func (e *Old) exprNode()          {}
func (e *Balance) exprNode()      {}
func (e *FSum) exprNode()         {}
func (e *Ident) exprNode()        {}
func (e *Member) exprNode()       {}
