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

package schema

import (
	"strings"
	"testing"
)

const gameSchema = `{
  "contracts": [{
    "name": "Game",
    "fields": [
      {"name": "pot", "type": "uint"},
      {"name": "level", "type": "uint8", "mode": "wrap"},
      {"name": "balances", "type": "mapping(address => uint)"}
    ],
    "functions": [
      {"name": "play", "params": [{"name": "guess", "type": "uint"}]},
      {"name": "refund"}
    ]
  }]
}`

func TestParseRegistry_DecodesContracts(t *testing.T) {
	reg, err := ParseRegistry([]byte(gameSchema))
	if err != nil {
		t.Fatalf("cannot parse schema: %v", err)
	}

	game, ok := reg.Contract("Game")
	if !ok {
		t.Fatalf("contract Game is missing")
	}

	pot, ok := game.Field("pot")
	if !ok || !pot.Equal(Uint(0)) {
		t.Errorf("unexpected pot type %v", pot)
	}
	level, ok := game.Field("level")
	if !ok || !level.Equal(Uint(8)) || level.Mode != Wrap {
		t.Errorf("unexpected level type %v with mode %v", level, level.Mode)
	}
	balances, ok := game.Field("balances")
	if !ok || !balances.Equal(Mapping(Address, Uint(0))) {
		t.Errorf("unexpected balances type %v", balances)
	}

	play, ok := game.Function("play")
	if !ok || len(play.Params) != 1 || play.Params[0].Name != "guess" {
		t.Errorf("unexpected play signature %+v", play)
	}
	if _, ok := game.Function("refund"); !ok {
		t.Errorf("refund is missing")
	}
}

func TestParseRegistry_RejectsMalformedDeclarations(t *testing.T) {
	tests := map[string]string{
		"not json":           `{`,
		"no contracts":       `{"contracts": []}`,
		"nameless contract":  `{"contracts": [{"fields": []}]}`,
		"duplicate contract": `{"contracts": [{"name": "A"}, {"name": "A"}]}`,
		"duplicate field":    `{"contracts": [{"name": "A", "fields": [{"name": "x", "type": "uint"}, {"name": "x", "type": "bool"}]}]}`,
		"unknown type":       `{"contracts": [{"name": "A", "fields": [{"name": "x", "type": "float"}]}]}`,
		"unknown mode":       `{"contracts": [{"name": "A", "fields": [{"name": "x", "type": "uint", "mode": "clamp"}]}]}`,
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRegistry([]byte(src)); err == nil {
				t.Errorf("parsing %s must fail", strings.ReplaceAll(name, " ", "-"))
			}
		})
	}
}
