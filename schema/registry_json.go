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
	"encoding/json"
	"fmt"
)

// The JSON schema format lets execution drivers declare contracts
// out-of-process:
//
//	{
//	  "contracts": [{
//	    "name": "Game",
//	    "fields": [
//	      {"name": "pot", "type": "uint"},
//	      {"name": "balances", "type": "mapping(address => uint)"}
//	    ],
//	    "functions": [
//	      {"name": "play", "params": [{"name": "guess", "type": "uint"}]}
//	    ]
//	  }]
//	}
//
// Types use the textual form produced by Type.String.
type registryDecl struct {
	Contracts []contractDecl `json:"contracts"`
}

type contractDecl struct {
	Name      string         `json:"name"`
	Fields    []fieldDecl    `json:"fields,omitempty"`
	Functions []functionDecl `json:"functions,omitempty"`
}

type fieldDecl struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Mode string `json:"mode,omitempty"` // trap (default), wrap, saturate
}

type functionDecl struct {
	Name   string      `json:"name"`
	Params []fieldDecl `json:"params,omitempty"`
}

// ParseRegistry decodes a JSON contract schema declaration into a
// registry.
func ParseRegistry(data []byte) (*Registry, error) {
	var decl registryDecl
	if err := json.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("malformed schema declaration; %w", err)
	}
	if len(decl.Contracts) == 0 {
		return nil, fmt.Errorf("schema declaration contains no contracts")
	}

	contracts := make([]*Contract, 0, len(decl.Contracts))
	seen := map[string]bool{}
	for _, c := range decl.Contracts {
		if c.Name == "" {
			return nil, fmt.Errorf("contract declaration without a name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("contract %q declared twice", c.Name)
		}
		seen[c.Name] = true

		contract := NewContract(c.Name)
		declaredFields := map[string]bool{}
		for _, f := range c.Fields {
			if declaredFields[f.Name] {
				return nil, fmt.Errorf("field %s.%s declared twice", c.Name, f.Name)
			}
			declaredFields[f.Name] = true
			t, err := f.resolve()
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", c.Name, f.Name, err)
			}
			contract.WithField(f.Name, t)
		}

		declaredFunctions := map[string]bool{}
		for _, fn := range c.Functions {
			if declaredFunctions[fn.Name] {
				return nil, fmt.Errorf("function %s.%s declared twice", c.Name, fn.Name)
			}
			declaredFunctions[fn.Name] = true
			params := make([]Param, 0, len(fn.Params))
			for _, p := range fn.Params {
				t, err := p.resolve()
				if err != nil {
					return nil, fmt.Errorf("parameter %s of %s.%s: %w", p.Name, c.Name, fn.Name, err)
				}
				params = append(params, Param{Name: p.Name, Type: t})
			}
			contract.WithFunction(fn.Name, params...)
		}
		contracts = append(contracts, contract)
	}
	return NewRegistry(contracts...), nil
}

func (f fieldDecl) resolve() (Type, error) {
	t, err := ParseType(f.Type)
	if err != nil {
		return Type{}, err
	}
	switch f.Mode {
	case "", "trap":
		return t, nil
	case "wrap":
		return t.WithMode(Wrap), nil
	case "saturate":
		return t.WithMode(Saturate), nil
	}
	return Type{}, fmt.Errorf("unknown overflow mode %q", f.Mode)
}
