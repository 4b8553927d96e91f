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

package utils

import "github.com/urfave/cli/v2"

var (
	// WorkersFlag defines the number of goroutines verifying statements
	// concurrently. Any value <= 1 means sequential verification.
	WorkersFlag = cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Usage:   "Number of statements verified in parallel",
		Value:   1,
	}

	// ReportAllFlag makes the verifier collect every failing transaction of
	// a statement instead of stopping at the earliest counterexample.
	ReportAllFlag = cli.BoolFlag{
		Name:  "report-all",
		Usage: "Collect all counterexamples of a statement, not just the earliest one",
		Value: false,
	}

	// OneDirectionalRevertsFlag weakens every reverted-statement to the
	// "predicate implies revert" reading, making no claim about
	// transactions for which the predicate is false.
	OneDirectionalRevertsFlag = cli.BoolFlag{
		Name:  "one-directional-reverts",
		Usage: "Check reverted-statements one-directionally instead of as biconditionals",
		Value: false,
	}

	// TraceDbFlag points at a persistent trace repository created by an
	// execution driver.
	TraceDbFlag = cli.PathFlag{
		Name:  "trace-db",
		Usage: "Path to the persistent transaction trace database",
	}
)
