// Copyright 2026 The Vifei Authors
// This file is part of Vifei.
//
// Vifei is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vifei is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vifei. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
	"github.com/yuan-cloud/vifei-suite-public/internal/config"
)

var (
	flagRobot   bool
	flagDataDir string
	flagConfig  string
)

// diagnosticError carries a fully-formed Diagnostic out of a subcommand's
// RunE so root's error handling can render it without reconstructing the
// cause from a bare error string.
type diagnosticError struct {
	d cliio.Diagnostic
}

func (e *diagnosticError) Error() string { return e.d.Message }

func diagFail(code string, exitCode int, message string, suggestions ...string) error {
	return &diagnosticError{d: cliio.Diagnostic{
		OK:          false,
		Code:        code,
		Message:     message,
		Suggestions: suggestions,
		ExitCode:    exitCode,
	}}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vifei",
		Short:         "local-first flight recorder for AI-agent runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flagRobot, "robot", false, "emit the machine-readable JSON envelope instead of human text")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override the configured data directory")
	root.PersistentFlags().StringVar(&flagConfig, "config", "vifei.toml", "path to vifei.toml")

	root.AddCommand(newImportCmd())
	root.AddCommand(newViewCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newTourCmd())
	root.AddCommand(newReindexCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return cfg, nil
}

// Execute runs the command tree and returns the process exit code -
// §6's non-zero exit codes are the single source of truth for machine
// callers, so every path here funnels through one rendering point.
func Execute() int {
	root := newRootCmd()
	err := root.Execute()
	if err == nil {
		if flagRobot {
			_ = cliio.WriteRobot(os.Stdout, cliio.Diagnostic{OK: true, ExitCode: cliio.ExitSuccess})
		}
		return cliio.ExitSuccess
	}

	var de *diagnosticError
	var d cliio.Diagnostic
	if errors.As(err, &de) {
		d = de.d
	} else {
		d = cliio.Diagnostic{
			OK:       false,
			Code:     "runtime-error",
			Message:  err.Error(),
			ExitCode: cliio.ExitRuntime,
		}
	}

	var renderErr error
	if flagRobot {
		renderErr = cliio.WriteRobot(os.Stdout, d)
	} else {
		renderErr = cliio.WriteHuman(os.Stderr, d)
	}
	if renderErr != nil {
		fmt.Fprintln(os.Stderr, renderErr)
	}
	return d.ExitCode
}
