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

// ParseSource parses a statement collection: one statement per line in
// the form "<contract>: <statement>". Blank lines and lines starting
// with # are ignored. The first defective line aborts the parse; a
// collection is authored as a unit and a half-loaded one would silently
// weaken verification.
func ParseSource(src string, reg *schema.Registry) ([]*Statement, error) {
	var statements []*Statement
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		subject, stmt, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("line %d: expected \"<contract>: <statement>\", got %q", i+1, line)
		}
		st, err := Parse(strings.TrimSpace(stmt), strings.TrimSpace(subject), reg)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		statements = append(statements, st)
	}
	return statements, nil
}
