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
	"github.com/fidelio-tools/fidelio/schema"
)

// scope carries the naming environment of the static check: the subject
// contract for bare field references, the target function for argument
// references, and the bound variables of enclosing fsum expressions.
// Resolution order for a bare identifier is fixed: fsum bound variable,
// then target function parameter, then subject storage field.
type scope struct {
	reg      *schema.Registry
	subject  *schema.Contract
	fn       schema.Function
	allowOld bool
	inOld    bool
	bound    map[string]bool
}

func (sc *scope) child() *scope {
	c := *sc
	c.bound = make(map[string]bool, len(sc.bound)+1)
	for k := range sc.bound {
		c.bound[k] = true
	}
	return &c
}

// resolve rewrites a raw parsed expression into a fully bound, typed
// one. After it returns without error, the tree contains no Ident or
// Member nodes and every node answers Type.
func resolve(e Expr, sc *scope) (Expr, error) {
	switch n := e.(type) {
	case *Literal, *CallVar:
		return e, nil

	case *Ident:
		return resolveIdent(n, sc)

	case *Member:
		return resolveMember(n, sc)

	case *Unary:
		return resolveUnary(n, sc)

	case *Binary:
		return resolveBinary(n, sc)

	case *Old:
		if !sc.allowOld {
			return nil, errorf(n.position, ErrOldScope, "old(%v) outside a postcondition", n.X)
		}
		if sc.inOld {
			return nil, errorf(n.position, ErrSyntax, "old cannot be nested")
		}
		inner := sc.child()
		inner.inOld = true
		x, err := resolve(n.X, inner)
		if err != nil {
			return nil, err
		}
		return &Old{position: n.position, X: x}, nil

	case *Balance:
		addr, err := resolve(n.Addr, sc)
		if err != nil {
			return nil, err
		}
		if addr.Type().Kind != schema.KindAddress {
			return nil, errorf(n.position, schema.ErrTypeMismatch, "balance expects an address, got %v of type %v", addr, addr.Type())
		}
		return &Balance{position: n.position, Addr: addr}, nil

	case *FSum:
		inner := sc.child()
		inner.bound[n.Bound] = true
		elem, err := resolve(n.Elem, inner)
		if err != nil {
			return nil, err
		}
		if !elem.Type().IsNumeric() {
			return nil, errorf(n.position, schema.ErrTypeMismatch, "fsum element %v has type %v, want a numeric type", elem, elem.Type())
		}
		filter, err := resolve(n.Filter, inner)
		if err != nil {
			return nil, err
		}
		if filter.Type().Kind != schema.KindBool {
			return nil, errorf(n.position, schema.ErrTypeMismatch, "fsum filter %v has type %v, want bool", filter, filter.Type())
		}
		return &FSum{position: n.position, Bound: n.Bound, Elem: elem, Filter: filter}, nil
	}
	return nil, errorf(e.Pos(), ErrSyntax, "unexpected expression %v", e)
}

func resolveIdent(n *Ident, sc *scope) (Expr, error) {
	if !n.explicit && sc.bound[n.Name] {
		if n.getter || len(n.Indices) > 0 {
			return nil, errorf(n.position, ErrSyntax, "bound variable %s cannot be called or indexed", n.Name)
		}
		index, param, ok := sc.fn.Param(n.Name)
		if !ok {
			return nil, errorf(n.position, ErrUnknownIdentifier,
				"bound variable %s does not name a parameter of %s; use %s.sender, %s.value or %s.<parameter>",
				n.Name, sc.fn.Name, n.Name, n.Name, n.Name)
		}
		return &BoundArgRef{position: n.position, Var: n.Name, Name: n.Name, Index: index, typ: param.Type, bare: true}, nil
	}

	if !n.explicit && !n.getter && len(n.Indices) == 0 {
		if index, param, ok := sc.fn.Param(n.Name); ok {
			return &ArgRef{position: n.position, Name: n.Name, Index: index, typ: param.Type}, nil
		}
	}

	declared, ok := sc.subject.Field(n.Name)
	if !ok {
		return nil, errorf(n.position, ErrUnknownIdentifier,
			"%s is neither a parameter of %s nor a declared field of contract %s", n.Name, sc.fn.Name, sc.subject.Name())
	}

	typ := declared
	indices := make([]Expr, 0, len(n.Indices))
	for _, raw := range n.Indices {
		if typ.Kind != schema.KindMapping {
			return nil, errorf(raw.Pos(), schema.ErrTypeMismatch, "%s.%s: cannot index into %v", sc.subject.Name(), n.Name, typ)
		}
		index, err := resolve(raw, sc)
		if err != nil {
			return nil, err
		}
		index = coerceLiteral(index, *typ.Key)
		if !index.Type().Equal(*typ.Key) {
			return nil, errorf(index.Pos(), schema.ErrTypeMismatch,
				"index %v has type %v, %s.%s expects %v", index, index.Type(), sc.subject.Name(), n.Name, typ.Key)
		}
		indices = append(indices, index)
		typ = *typ.Elem
	}

	return &FieldRef{
		position: n.position,
		Contract: sc.subject.Name(),
		Field:    n.Name,
		Indices:  indices,
		typ:      typ,
		explicit: n.explicit,
		getter:   n.getter,
	}, nil
}

func resolveMember(n *Member, sc *scope) (Expr, error) {
	if !sc.bound[n.Base] {
		return nil, errorf(n.position, ErrUnknownIdentifier, "%s is not a bound variable in scope", n.Base)
	}
	switch n.Sel {
	case "sender":
		return &BoundCallVar{position: n.position, Var: n.Base, Kind: SenderVar}, nil
	case "value":
		return &BoundCallVar{position: n.position, Var: n.Base, Kind: ValueVar}, nil
	}
	index, param, ok := sc.fn.Param(n.Sel)
	if !ok {
		return nil, errorf(n.position, ErrUnknownIdentifier,
			"%s.%s: %s names no parameter of %s and is not sender or value", n.Base, n.Sel, n.Sel, sc.fn.Name)
	}
	return &BoundArgRef{position: n.position, Var: n.Base, Name: n.Sel, Index: index, typ: param.Type}, nil
}

func resolveUnary(n *Unary, sc *scope) (Expr, error) {
	x, err := resolve(n.X, sc)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpNot:
		if x.Type().Kind != schema.KindBool {
			return nil, errorf(n.position, schema.ErrTypeMismatch, "! expects bool, got %v of type %v", x, x.Type())
		}
		return &Unary{position: n.position, Op: OpNot, X: x, typ: schema.Bool}, nil
	case OpNeg:
		if lit, ok := x.(*Literal); ok && lit.Value.Type().IsNumeric() {
			// Fold negated literals into signed constants so -1 does not
			// trap as an unsigned underflow.
			v, err := schema.Integer(schema.Int(0), lit.Value.Big().Neg(lit.Value.Big()))
			if err != nil {
				return nil, errorf(n.position, schema.ErrTypeMismatch, "cannot negate %v; %v", lit, err)
			}
			return &Literal{position: n.position, Value: v}, nil
		}
		if !x.Type().IsNumeric() {
			return nil, errorf(n.position, schema.ErrTypeMismatch, "unary - expects a numeric operand, got %v of type %v", x, x.Type())
		}
		return &Unary{position: n.position, Op: OpNeg, X: x, typ: x.Type()}, nil
	}
	return nil, errorf(n.position, ErrSyntax, "unexpected unary operator %v", n.Op)
}

func resolveBinary(n *Binary, sc *scope) (Expr, error) {
	x, err := resolve(n.X, sc)
	if err != nil {
		return nil, err
	}
	y, err := resolve(n.Y, sc)
	if err != nil {
		return nil, err
	}
	x, y = coercePair(x, y)

	switch n.Op {
	case OpOr, OpAnd:
		if x.Type().Kind != schema.KindBool || y.Type().Kind != schema.KindBool {
			return nil, errorf(n.position, schema.ErrTypeMismatch,
				"%v expects bool operands, got %v and %v", n.Op, x.Type(), y.Type())
		}
		return &Binary{position: n.position, Op: n.Op, X: x, Y: y, typ: schema.Bool}, nil

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		if !x.Type().IsNumeric() || !x.Type().Equal(y.Type()) {
			return nil, errorf(n.position, schema.ErrTypeMismatch,
				"%v %v %v: operands must share a numeric type, got %v and %v", x, n.Op, y, x.Type(), y.Type())
		}
		return &Binary{position: n.position, Op: n.Op, X: x, Y: y, typ: x.Type()}, nil

	case OpLt, OpLe, OpGt, OpGe:
		if !x.Type().IsNumeric() || !x.Type().Equal(y.Type()) {
			return nil, errorf(n.position, schema.ErrTypeMismatch,
				"%v %v %v: ordering needs a shared numeric type, got %v and %v", x, n.Op, y, x.Type(), y.Type())
		}
		return &Binary{position: n.position, Op: n.Op, X: x, Y: y, typ: schema.Bool}, nil

	case OpEq, OpNe:
		if x.Type().Kind == schema.KindMapping || !x.Type().Equal(y.Type()) {
			return nil, errorf(n.position, schema.ErrTypeMismatch,
				"%v %v %v: cannot compare %v and %v", x, n.Op, y, x.Type(), y.Type())
		}
		return &Binary{position: n.position, Op: n.Op, X: x, Y: y, typ: schema.Bool}, nil
	}
	return nil, errorf(n.position, ErrSyntax, "unexpected binary operator %v", n.Op)
}

// coercePair retypes an untyped numeric literal to its non-literal
// peer's numeric type, so "value > 10" compares under value's type.
// Out-of-range literals are left alone and surface as type mismatches.
func coercePair(x, y Expr) (Expr, Expr) {
	if lx, ok := x.(*Literal); ok {
		if _, yLit := y.(*Literal); !yLit {
			x = coerceLiteralValue(lx, y.Type())
		}
	}
	if ly, ok := y.(*Literal); ok {
		if _, xLit := x.(*Literal); !xLit {
			y = coerceLiteralValue(ly, x.Type())
		}
	}
	return x, y
}

func coerceLiteral(e Expr, t schema.Type) Expr {
	if lit, ok := e.(*Literal); ok {
		return coerceLiteralValue(lit, t)
	}
	return e
}

func coerceLiteralValue(lit *Literal, t schema.Type) Expr {
	if !lit.Value.Type().IsNumeric() || !t.IsNumeric() {
		return lit
	}
	v, err := schema.Integer(t, lit.Value.Big())
	if err != nil {
		return lit
	}
	return &Literal{position: lit.position, Value: v}
}
