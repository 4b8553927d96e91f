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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fidelio-tools/fidelio/schema"
)

// parser turns a token stream into a raw expression tree. Identifier
// binding and typing happen in the subsequent check pass, because the
// bound variable of an fsum is only known after its body was parsed.
type parser struct {
	toks []token
	i    int
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks}, nil
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, errorf(t.pos, ErrSyntax, "expected %s, got %v", what, t)
	}
	return t, nil
}

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		pos := p.next().pos
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = &Binary{position: pos, Op: OpOr, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseAnd() (Expr, error) {
	x, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		pos := p.next().pos
		y, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		x = &Binary{position: pos, Op: OpAnd, X: x, Y: y}
	}
	return x, nil
}

var comparisonOps = map[tokenKind]Op{
	tokEq: OpEq,
	tokNe: OpNe,
	tokLt: OpLt,
	tokLe: OpLe,
	tokGt: OpGt,
	tokGe: OpGe,
}

func (p *parser) parseComparison() (Expr, error) {
	x, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := comparisonOps[p.peek().kind]
	if !ok {
		return x, nil
	}
	pos := p.next().pos
	y, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Binary{position: pos, Op: op, X: x, Y: y}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	x, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op Op
		switch p.peek().kind {
		case tokPlus:
			op = OpAdd
		case tokMinus:
			op = OpSub
		default:
			return x, nil
		}
		pos := p.next().pos
		y, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		x = &Binary{position: pos, Op: op, X: x, Y: y}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op Op
		switch p.peek().kind {
		case tokStar:
			op = OpMul
		case tokSlash:
			op = OpDiv
		case tokPercent:
			op = OpMod
		default:
			return x, nil
		}
		pos := p.next().pos
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &Binary{position: pos, Op: op, X: x, Y: y}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.peek().kind {
	case tokNot:
		pos := p.next().pos
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{position: pos, Op: OpNot, X: x}, nil
	case tokMinus:
		pos := p.next().pos
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{position: pos, Op: OpNeg, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().kind {
		case tokLParen:
			// Zero-arg getter syntax: goalReached() reads the field.
			ident, ok := x.(*Ident)
			if !ok || ident.getter || len(ident.Indices) > 0 {
				return nil, errorf(p.peek().pos, ErrSyntax, "%v is not callable", x)
			}
			p.next()
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
			ident.getter = true

		case tokLBrack:
			ident, ok := x.(*Ident)
			if !ok || ident.getter {
				return nil, errorf(p.peek().pos, ErrSyntax, "%v is not indexable", x)
			}
			p.next()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBrack, "]"); err != nil {
				return nil, err
			}
			ident.Indices = append(ident.Indices, index)

		case tokDot:
			ident, ok := x.(*Ident)
			if !ok || ident.getter || ident.explicit || len(ident.Indices) > 0 {
				return nil, errorf(p.peek().pos, ErrSyntax, "%v has no members", x)
			}
			p.next()
			sel, err := p.expect(tokIdent, "member name")
			if err != nil {
				return nil, err
			}
			x = &Member{position: ident.position, Base: ident.Name, Sel: sel.text}

		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		n, ok := new(big.Int).SetString(t.text, 10)
		if !ok {
			return nil, errorf(t.pos, ErrSyntax, "malformed number %q", t.text)
		}
		v, err := schema.Integer(schema.Uint(0), n)
		if err != nil {
			return nil, errorf(t.pos, ErrSyntax, "malformed number %q", t.text)
		}
		return &Literal{position: t.pos, Value: v}, nil

	case tokHex:
		// A 20-byte hex literal is an address, anything else raw bytes.
		if common.IsHexAddress(t.text) {
			return &Literal{position: t.pos, Value: schema.NewAddress(common.HexToAddress(t.text))}, nil
		}
		data, err := hexutil.Decode(t.text)
		if err != nil {
			return nil, errorf(t.pos, ErrSyntax, "malformed hex literal %q", t.text)
		}
		return &Literal{position: t.pos, Value: schema.NewBytes(data)}, nil

	case tokLParen:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return x, nil

	case tokIdent:
		switch t.text {
		case "true":
			return &Literal{position: t.pos, Value: schema.NewBool(true)}, nil
		case "false":
			return &Literal{position: t.pos, Value: schema.NewBool(false)}, nil
		case "sender":
			return &CallVar{position: t.pos, Kind: SenderVar}, nil
		case "value":
			return &CallVar{position: t.pos, Kind: ValueVar}, nil
		case "this":
			if _, err := p.expect(tokDot, "'.' after this"); err != nil {
				return nil, err
			}
			field, err := p.expect(tokIdent, "field name")
			if err != nil {
				return nil, err
			}
			return &Ident{position: t.pos, Name: field.text, explicit: true}, nil
		case "old":
			x, err := p.parseParenArg()
			if err != nil {
				return nil, err
			}
			return &Old{position: t.pos, X: x}, nil
		case "balance":
			x, err := p.parseParenArg()
			if err != nil {
				return nil, err
			}
			return &Balance{position: t.pos, Addr: x}, nil
		case "fsum":
			return p.parseFSum(t.pos)
		}
		return &Ident{position: t.pos, Name: t.text}, nil
	}
	return nil, errorf(t.pos, ErrSyntax, "unexpected %v", t)
}

func (p *parser) parseParenArg() (Expr, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return x, nil
}

func (p *parser) parseFSum(pos Pos) (Expr, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	elem, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}
	filter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}
	bound, err := p.expect(tokIdent, "bound variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return &FSum{position: pos, Bound: bound.text, Elem: elem, Filter: filter}, nil
}
