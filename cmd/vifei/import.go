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

	"github.com/yuan-cloud/vifei-suite-public/internal/blobstore"
	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
	"github.com/yuan-cloud/vifei-suite-public/internal/importer/jsonl"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <fixture.jsonl>",
		Short: "append a JSON-Lines fixture of uncommitted events to the log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args[0])
		},
	}
}

func runImport(fixturePath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return diagFail("config-invalid", cliio.ExitUsage, err.Error())
	}

	f, err := os.Open(fixturePath)
	if err != nil {
		if os.IsNotExist(err) {
			return diagFail("fixture-not-found", cliio.ExitNotFound,
				fmt.Sprintf("fixture %q does not exist", fixturePath),
				"check the path and try again")
		}
		return errors.Wrapf(err, "open fixture %q", fixturePath)
	}
	defer f.Close()

	blobs, err := blobstore.New(filepath.Join(cfg.DataDir, "blobs"), cfg.VerifyBlobsOnRead)
	if err != nil {
		return errors.Wrap(err, "open blob store")
	}
	w, err := eventlog.Open(filepath.Join(cfg.DataDir, "events.jsonl"), blobs)
	if err != nil {
		return errors.Wrap(err, "open event log")
	}
	defer w.Close()

	src := jsonl.New(f)
	var count int
	for {
		u, ok, err := src.Next()
		if err != nil {
			return diagFail("import-decode-failed", cliio.ExitRuntime, err.Error())
		}
		if !ok {
			break
		}
		if _, err := w.Append(u); err != nil {
			return diagFail("import-append-failed", cliio.ExitRuntime, err.Error())
		}
		count++
	}

	if flagRobot {
		return cliio.WriteRobot(os.Stdout, cliio.Diagnostic{
			OK:       true,
			Message:  fmt.Sprintf("imported %d events", count),
			ExitCode: cliio.ExitSuccess,
			Data:     map[string]any{"events_imported": count},
		})
	}
	fmt.Printf("imported %d events from %s\n", count, fixturePath)
	return nil
}
