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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
	"github.com/yuan-cloud/vifei-suite-public/internal/harness"
)

func newTourCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "tour <fixture.jsonl>",
		Short: "drive a fixture through the full pipeline and emit proof artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTour(args[0], outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "./vifei-tour", "directory to write proof artifacts into")
	return cmd
}

func runTour(fixturePath, outDir string) error {
	if _, err := os.Stat(fixturePath); os.IsNotExist(err) {
		return diagFail("fixture-not-found", cliio.ExitNotFound,
			fmt.Sprintf("fixture %q does not exist", fixturePath))
	}

	dataDir := filepath.Join(outDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %q", dataDir)
	}

	res, err := harness.Run(context.Background(), fixturePath, dataDir)
	if err != nil {
		return diagFail("tour-run-failed", cliio.ExitRuntime, err.Error())
	}

	metricsBytes, err := json.MarshalIndent(res.Metrics, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metrics")
	}
	if err := os.WriteFile(filepath.Join(outDir, "metrics.json"), metricsBytes, 0o644); err != nil {
		return errors.Wrap(err, "write metrics.json")
	}

	if err := os.WriteFile(filepath.Join(outDir, "viewmodel.hash"), []byte(res.ViewModelHash+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "write viewmodel.hash")
	}

	if err := os.WriteFile(filepath.Join(outDir, "ansi.capture"), []byte(res.AnsiCapture), 0o644); err != nil {
		return errors.Wrap(err, "write ansi.capture")
	}

	travelBytes, err := json.MarshalIndent(res.TimeTravel, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal timetravel.capture")
	}
	if err := os.WriteFile(filepath.Join(outDir, "timetravel.capture"), travelBytes, 0o644); err != nil {
		return errors.Wrap(err, "write timetravel.capture")
	}

	if flagRobot {
		return cliio.WriteRobot(os.Stdout, cliio.Diagnostic{
			OK:       true,
			Message:  "tour complete",
			ExitCode: cliio.ExitSuccess,
			Data:     map[string]any{"viewmodel_hash": res.ViewModelHash, "out_dir": outDir},
		})
	}
	fmt.Printf("wrote proof artifacts to %s (viewmodel_hash %s)\n", outDir, res.ViewModelHash)
	return nil
}
