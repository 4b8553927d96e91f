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

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokHex
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokComma
	tokDot
	tokOr      // ||
	tokAnd     // &&
	tokNot     // !
	tokEq      // ==
	tokNe      // !=
	tokLt      // <
	tokLe      // <=
	tokGt      // >
	tokGe      // >=
	tokPlus    // +
	tokMinus   // -
	tokStar    // *
	tokSlash   // /
	tokPercent // %
	tokImply   // |=>
)

type token struct {
	kind tokenKind
	pos  Pos
	text string
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of statement"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex tokenizes a whole statement up front; the grammar is small enough
// that streaming buys nothing.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	emit := func(kind tokenKind, start, end int) {
		toks = append(toks, token{kind: kind, pos: Pos(start), text: src[start:end]})
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			emit(tokIdent, start, i)

		case c >= '0' && c <= '9':
			start := i
			if c == '0' && i+1 < len(src) && (src[i+1] == 'x' || src[i+1] == 'X') {
				i += 2
				for i < len(src) && isHexDigit(src[i]) {
					i++
				}
				if i == start+2 {
					return nil, errorf(Pos(start), ErrSyntax, "malformed hex literal")
				}
				emit(tokHex, start, i)
				break
			}
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			emit(tokNumber, start, i)

		default:
			kind, width, err := lexOperator(src, i)
			if err != nil {
				return nil, err
			}
			emit(kind, i, i+width)
			i += width
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: Pos(len(src))})
	return toks, nil
}

func lexOperator(src string, i int) (tokenKind, int, error) {
	two := ""
	if i+1 < len(src) {
		two = src[i : i+2]
	}
	switch two {
	case "||":
		return tokOr, 2, nil
	case "&&":
		return tokAnd, 2, nil
	case "==":
		return tokEq, 2, nil
	case "!=":
		return tokNe, 2, nil
	case "<=":
		return tokLe, 2, nil
	case ">=":
		return tokGe, 2, nil
	}
	if i+2 < len(src) && src[i:i+3] == "|=>" {
		return tokImply, 3, nil
	}

	switch src[i] {
	case '(':
		return tokLParen, 1, nil
	case ')':
		return tokRParen, 1, nil
	case '[':
		return tokLBrack, 1, nil
	case ']':
		return tokRBrack, 1, nil
	case ',':
		return tokComma, 1, nil
	case '.':
		return tokDot, 1, nil
	case '!':
		return tokNot, 1, nil
	case '<':
		return tokLt, 1, nil
	case '>':
		return tokGt, 1, nil
	case '+':
		return tokPlus, 1, nil
	case '-':
		return tokMinus, 1, nil
	case '*':
		return tokStar, 1, nil
	case '/':
		return tokSlash, 1, nil
	case '%':
		return tokPercent, 1, nil
	}
	return tokEOF, 0, errorf(Pos(i), ErrSyntax, "unexpected character %q", src[i])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
