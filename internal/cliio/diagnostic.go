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

// Package cliio renders one Diagnostic two ways - a human-readable
// paragraph or a robot-mode JSON envelope - so the two presentations can
// never drift out of sync with each other.
package cliio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// SchemaVersion is the robot envelope's schema tag.
const SchemaVersion = "vifei-cli-v0.1"

// Exit codes, per spec.md §6's CLI surface contract.
const (
	ExitSuccess       = 0
	ExitNotFound      = 1
	ExitUsage         = 2
	ExitExportRefused = 3
	ExitRuntime       = 4
	ExitDiffFound     = 5
)

// Diagnostic is the one shape every CLI outcome renders from. Code is a
// stable machine-readable reason code (e.g. "FM-APPEND-FAIL",
// "export-refused"); Suggestions are operator-actionable next steps.
type Diagnostic struct {
	OK          bool     `json:"ok"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	ExitCode    int      `json:"exit_code"`
	Data        any      `json:"data,omitempty"`
	Notes       []string `json:"notes,omitempty"`
}

// envelope is the on-the-wire robot-mode shape, adding the schema tag
// Diagnostic itself does not carry.
type envelope struct {
	SchemaVersion string   `json:"schema_version"`
	OK            bool     `json:"ok"`
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	Suggestions   []string `json:"suggestions,omitempty"`
	ExitCode      int      `json:"exit_code"`
	Data          any      `json:"data,omitempty"`
	Notes         []string `json:"notes,omitempty"`
}

// WriteRobot renders d as the robot-mode JSON envelope from spec.md §6.
func WriteRobot(w io.Writer, d Diagnostic) error {
	env := envelope{
		SchemaVersion: SchemaVersion,
		OK:            d.OK,
		Code:          d.Code,
		Message:       d.Message,
		Suggestions:   d.Suggestions,
		ExitCode:      d.ExitCode,
		Data:          d.Data,
		Notes:         d.Notes,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("cliio: encode robot envelope: %w", err)
	}
	return nil
}

// WriteHuman renders d as a one-paragraph cause plus suggested recovery.
// Byte sizes embedded in Data (if any, under a "bytes" key) are rendered
// human-readable via go-humanize rather than a raw integer.
func WriteHuman(w io.Writer, d Diagnostic) error {
	status := "ok"
	if !d.OK {
		status = "error"
	}
	if _, err := fmt.Fprintf(w, "%s: %s\n", status, d.Message); err != nil {
		return err
	}
	if m, ok := d.Data.(map[string]any); ok {
		if b, ok := m["bytes"].(int64); ok {
			if _, err := fmt.Fprintf(w, "  size: %s\n", humanize.Bytes(uint64(b))); err != nil {
				return err
			}
		}
	}
	for _, s := range d.Suggestions {
		if _, err := fmt.Fprintf(w, "  suggestion: %s\n", s); err != nil {
			return err
		}
	}
	return nil
}
