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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
	"github.com/yuan-cloud/vifei-suite-public/internal/derivedcache"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the ancillary SQLite index from the committed log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex()
		},
	}
}

func runReindex() error {
	cfg, err := loadConfig()
	if err != nil {
		return diagFail("config-invalid", cliio.ExitUsage, err.Error())
	}

	logPath := filepath.Join(cfg.DataDir, "events.jsonl")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return diagFail("run-not-found", cliio.ExitNotFound,
			fmt.Sprintf("no event log at %q", logPath))
	}

	events, err := eventlog.NewReader(logPath).All()
	if err != nil {
		return errors.Wrap(err, "read event log")
	}

	cachePath := filepath.Join(cfg.DataDir, "derived.sqlite")
	cache, err := derivedcache.Open(cachePath)
	if err != nil {
		return errors.Wrap(err, "open derived cache")
	}
	defer cache.Close()

	if err := cache.Rebuild(events); err != nil {
		return diagFail("reindex-failed", cliio.ExitRuntime, err.Error())
	}

	if flagRobot {
		return cliio.WriteRobot(os.Stdout, cliio.Diagnostic{
			OK:       true,
			Message:  fmt.Sprintf("reindexed %d events", len(events)),
			ExitCode: cliio.ExitSuccess,
			Data:     map[string]any{"events_indexed": len(events)},
		})
	}
	fmt.Printf("reindexed %d events into %s\n", len(events), cachePath)
	return nil
}
