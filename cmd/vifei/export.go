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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yuan-cloud/vifei-suite-public/internal/blobstore"
	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
	"github.com/yuan-cloud/vifei-suite-public/internal/shareexport"
)

func newExportCmd() *cobra.Command {
	var shareSafe bool
	cmd := &cobra.Command{
		Use:   "export <out.tar.zst>",
		Short: "scan the committed log for secrets and bundle it for sharing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !shareSafe {
				return diagFail("share-safe-flag-required", cliio.ExitUsage,
					"export requires --share-safe to acknowledge the run passed the secret scan",
					"re-run with --share-safe")
			}
			return runExport(args[0])
		},
	}
	cmd.Flags().BoolVar(&shareSafe, "share-safe", false, "acknowledge that this export must pass the secret scanner")
	return cmd
}

func runExport(outPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return diagFail("config-invalid", cliio.ExitUsage, err.Error())
	}

	logPath := filepath.Join(cfg.DataDir, "events.jsonl")
	reader := eventlog.NewReader(logPath)
	events, err := reader.All()
	if err != nil {
		return errors.Wrap(err, "read event log")
	}

	blobs, err := blobstore.New(filepath.Join(cfg.DataDir, "blobs"), cfg.VerifyBlobsOnRead)
	if err != nil {
		return errors.Wrap(err, "open blob store")
	}

	pack, err := shareexport.LoadRulePack(cfg.ScannerRulePackPath)
	if err != nil {
		return errors.Wrap(err, "load scanner rule pack")
	}
	scanner := shareexport.NewScanner(pack, blobs)
	report, err := scanner.Scan(context.Background(), logPath, events)
	if err != nil {
		return errors.Wrap(err, "scan for secrets")
	}

	if !report.Safe {
		reportPath := filepath.Join(cfg.DataDir, "refusal-report.json")
		if err := shareexport.WriteReport(reportPath, report); err != nil {
			return errors.Wrap(err, "write refusal report")
		}
		return diagFail("export-refused", cliio.ExitExportRefused,
			fmt.Sprintf("export refused: %d blocked item(s) found", len(report.BlockedItems)),
			fmt.Sprintf("inspect %s for details", reportPath))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "create %q", outPath)
	}
	defer out.Close()

	bundleHash, err := shareexport.BuildBundle(out, []shareexport.BundleFile{
		{Name: "events.jsonl", Path: logPath},
	})
	if err != nil {
		return errors.Wrap(err, "build bundle")
	}

	if flagRobot {
		return cliio.WriteRobot(os.Stdout, cliio.Diagnostic{
			OK:       true,
			Message:  "export complete",
			ExitCode: cliio.ExitSuccess,
			Data:     map[string]any{"bundle_hash": bundleHash, "path": outPath},
		})
	}
	fmt.Printf("wrote %s (bundle_hash %s)\n", outPath, bundleHash)
	return nil
}
