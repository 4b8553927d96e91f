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

import "fmt"

// Param is a single named function parameter.
type Param struct {
	Name string
	Type Type
}

// Function declares the callable surface of a contract function: its
// name and its ordered, named, typed parameters. Parameter names let
// specifications reference call arguments directly.
type Function struct {
	Name   string
	Params []Param
}

// Param locates a parameter by name, returning its position.
func (f Function) Param(name string) (int, Param, bool) {
	for i, p := range f.Params {
		if p.Name == name {
			return i, p, true
		}
	}
	return 0, Param{}, false
}

// Contract is the declared schema of one contract: its storage fields
// and function signatures. Every field reference in a specification must
// resolve against it; unresolved references are specification errors.
type Contract struct {
	name       string
	fieldOrder []string
	fields     map[string]Type
	functions  map[string]Function
}

// NewContract creates an empty contract schema.
func NewContract(name string) *Contract {
	return &Contract{
		name:      name,
		fields:    map[string]Type{},
		functions: map[string]Function{},
	}
}

// WithField declares a storage field. Redeclaring a field panics; a
// schema is authored once, before any verification starts.
func (c *Contract) WithField(name string, t Type) *Contract {
	if _, ok := c.fields[name]; ok {
		panic(fmt.Sprintf("field %q redeclared on contract %q", name, c.name))
	}
	c.fieldOrder = append(c.fieldOrder, name)
	c.fields[name] = t
	return c
}

// WithFunction declares a function signature.
func (c *Contract) WithFunction(name string, params ...Param) *Contract {
	if _, ok := c.functions[name]; ok {
		panic(fmt.Sprintf("function %q redeclared on contract %q", name, c.name))
	}
	c.functions[name] = Function{Name: name, Params: params}
	return c
}

// Name returns the contract identity.
func (c *Contract) Name() string {
	return c.name
}

// Field resolves a declared storage field.
func (c *Contract) Field(name string) (Type, bool) {
	t, ok := c.fields[name]
	return t, ok
}

// Function resolves a declared function signature.
func (c *Contract) Function(name string) (Function, bool) {
	f, ok := c.functions[name]
	return f, ok
}

// ForEachField iterates over declared fields in declaration order.
func (c *Contract) ForEachField(h func(name string, t Type)) {
	for _, name := range c.fieldOrder {
		h(name, c.fields[name])
	}
}

// Registry holds the schemas of all contracts a verification session
// may reference. It is immutable after construction and safe for
// concurrent use.
type Registry struct {
	contracts map[string]*Contract
}

// NewRegistry creates a registry over the given contract schemas.
func NewRegistry(contracts ...*Contract) *Registry {
	r := &Registry{contracts: make(map[string]*Contract, len(contracts))}
	for _, c := range contracts {
		if _, ok := r.contracts[c.name]; ok {
			panic(fmt.Sprintf("contract %q registered twice", c.name))
		}
		r.contracts[c.name] = c
	}
	return r
}

// Contract resolves a contract schema by name.
func (r *Registry) Contract(name string) (*Contract, bool) {
	c, ok := r.contracts[name]
	return c, ok
}
