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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yuan-cloud/vifei-suite-public/internal/checkpoint"
	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
	"github.com/yuan-cloud/vifei-suite-public/internal/hud"
	"github.com/yuan-cloud/vifei-suite-public/internal/projection"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "replay the committed log and show the current cockpit view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView()
		},
	}
}

func runView() error {
	cfg, err := loadConfig()
	if err != nil {
		return diagFail("config-invalid", cliio.ExitUsage, err.Error())
	}

	logPath := filepath.Join(cfg.DataDir, "events.jsonl")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return diagFail("run-not-found", cliio.ExitNotFound,
			fmt.Sprintf("no event log at %q", logPath),
			"run `vifei import` first")
	}

	reader := eventlog.NewReader(logPath)
	events, err := reader.All()
	if err != nil {
		return errors.Wrap(err, "read event log")
	}

	state, err := reducer.ReplayAll(events)
	if err != nil {
		return diagFail("replay-failed", cliio.ExitRuntime, err.Error())
	}
	vm := projection.Project(state, projection.ControllerView{}, projection.Default())

	if flagRobot {
		vmHash, err := vm.HashHex()
		if err != nil {
			return errors.Wrap(err, "hash viewmodel")
		}
		b, err := json.Marshal(vm)
		if err != nil {
			return errors.Wrap(err, "marshal viewmodel")
		}
		var data map[string]any
		if err := json.Unmarshal(b, &data); err != nil {
			return errors.Wrap(err, "unmarshal viewmodel for envelope")
		}
		return cliio.WriteRobot(os.Stdout, cliio.Diagnostic{
			OK:       true,
			Message:  "viewmodel_hash " + vmHash,
			ExitCode: cliio.ExitSuccess,
			Data:     data,
		})
	}

	w := hud.NewWriter(os.Stdout)
	w.RenderHeader(vm)
	w.RenderEvents(events)
	fmt.Printf("%d events until next checkpoint\n", checkpoint.EventsUntilNext(state.EventCountTotal))
	return nil
}
