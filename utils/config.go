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

import (
	"fmt"

	"github.com/fidelio-tools/fidelio/logger"
	"github.com/urfave/cli/v2"
)

// Config collects all run parameters of a verification session. It is
// produced once from CLI flags by the external driver and treated as
// read-only afterwards.
type Config struct {
	LogLevel string // level of the log (critical, error, warning, notice, info, debug)
	Workers  int    // number of statements verified in parallel

	// ReportAll collects every counterexample of a statement instead of
	// stopping at the earliest failing transaction.
	ReportAll bool

	// OneDirectionalReverts globally weakens reverted-statements to the
	// "predicate implies revert" reading.
	OneDirectionalReverts bool

	// TraceDb is the optional path to a persistent trace repository.
	TraceDb string
}

// NewConfig creates a config from the flags of the invoking command.
func NewConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{
		LogLevel:              ctx.String(logger.LogLevelFlag.Name),
		Workers:               ctx.Int(WorkersFlag.Name),
		ReportAll:             ctx.Bool(ReportAllFlag.Name),
		OneDirectionalReverts: ctx.Bool(OneDirectionalRevertsFlag.Name),
		TraceDb:               ctx.Path(TraceDbFlag.Name),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Workers < 0 {
		return fmt.Errorf("invalid number of workers %d; must be >= 0", cfg.Workers)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return nil
}
