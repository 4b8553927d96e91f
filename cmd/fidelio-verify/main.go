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

package main

import (
	"fmt"
	"os"

	"github.com/fidelio-tools/fidelio/logger"
	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/spec"
	"github.com/fidelio-tools/fidelio/trace"
	"github.com/fidelio-tools/fidelio/utils"
	"github.com/fidelio-tools/fidelio/verifier"
	"github.com/urfave/cli/v2"
)

// VerifyApp checks a set of behavioral statements against a recorded
// transaction trace.
var VerifyApp = cli.App{
	Name:      "fidelio-verify",
	HelpName:  "fidelio-verify",
	Usage:     "verifies behavioral statements against a transaction trace",
	Copyright: "(c) 2025 The Fidelio Authors",
	ArgsUsage: "<schema.json> <statements.fsp>",
	Action:    RunVerify,
	Flags: []cli.Flag{
		&utils.TraceDbFlag,
		&utils.WorkersFlag,
		&utils.ReportAllFlag,
		&utils.OneDirectionalRevertsFlag,
		&logger.LogLevelFlag,
	},
}

func main() {
	if err := VerifyApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RunVerify loads the contract schemas, the statements and the recorded
// trace, runs the verifier and reports the outcome. A counterexample
// makes the command fail, so drivers can gate on the exit code.
func RunVerify(ctx *cli.Context) error {
	cfg, err := utils.NewConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.Args().Len() != 2 {
		return fmt.Errorf("expected <schema.json> and <statements.fsp> arguments, got %d", ctx.Args().Len())
	}
	if cfg.TraceDb == "" {
		return fmt.Errorf("no trace database given; use --%s", utils.TraceDbFlag.Name)
	}

	log := logger.NewLogger(cfg.LogLevel, "fidelio-verify")

	reg, err := loadRegistry(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	statements, err := loadStatements(ctx.Args().Get(1), reg, cfg)
	if err != nil {
		return err
	}
	log.Infof("loaded %d statements", len(statements))

	store, err := trace.OpenStore(cfg.TraceDb, reg)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := trace.NewRepository()
	if err := repo.Load(store); err != nil {
		return fmt.Errorf("cannot load trace from %v; %w", cfg.TraceDb, err)
	}

	report, err := verifier.MakeVerifier(cfg).Run(verifier.ParamsFromConfig(cfg), repo.View(), statements)
	if err != nil {
		return err
	}

	failed := 0
	for _, verdict := range report.Verdicts {
		if verdict.Passed() {
			log.Noticef("PASS %s", verdict.Statement)
			continue
		}
		failed++
		if verdict.Err != nil {
			log.Errorf("FAIL %s; %v", verdict.Statement, verdict.Err)
			continue
		}
		for _, ce := range verdict.Failures {
			log.Errorf("FAIL %v", ce)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(report.Verdicts))
	}
	return nil
}

func loadRegistry(path string) (*schema.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read schema file; %w", err)
	}
	reg, err := schema.ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse schema file %v; %w", path, err)
	}
	return reg, nil
}

// loadStatements reads a statement file: one statement per line in the
// form "<contract>: <statement>", with #-comments and blank lines
// ignored.
func loadStatements(path string, reg *schema.Registry, cfg *utils.Config) ([]*spec.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read statement file; %w", err)
	}

	statements, err := spec.ParseSource(string(data), reg)
	if err != nil {
		return nil, fmt.Errorf("cannot parse statement file %v; %w", path, err)
	}
	if cfg.OneDirectionalReverts {
		for i, st := range statements {
			if st.Kind() == spec.KindReverted {
				statements[i] = st.WithPolarity(spec.OneDirectional)
			}
		}
	}
	return statements, nil
}
