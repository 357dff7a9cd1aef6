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

package cliio

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteRobotIncludesSchemaVersion(t *testing.T) {
	var buf bytes.Buffer
	d := Diagnostic{
		OK:          false,
		Code:        "export-refused",
		Message:     "export refused: 2 blocked items",
		Suggestions: []string{"inspect refusal-report.json"},
		ExitCode:    ExitExportRefused,
	}
	require.NoError(t, WriteRobot(&buf, d))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, SchemaVersion, got["schema_version"])
	require.Equal(t, false, got["ok"])
	require.Equal(t, "export-refused", got["code"])
	require.Equal(t, float64(ExitExportRefused), got["exit_code"])
}

func TestWriteHumanRendersSuggestions(t *testing.T) {
	var buf bytes.Buffer
	d := Diagnostic{
		OK:          true,
		Message:     "import complete",
		Suggestions: []string{"run vifei view to inspect the run"},
		ExitCode:    ExitSuccess,
	}
	require.NoError(t, WriteHuman(&buf, d))

	out := buf.String()
	require.Contains(t, out, "ok: import complete")
	require.Contains(t, out, "suggestion: run vifei view to inspect the run")
}

func TestWriteHumanRendersByteSizeHumanely(t *testing.T) {
	var buf bytes.Buffer
	d := Diagnostic{
		OK:      true,
		Message: "blob written",
		Data:    map[string]any{"bytes": int64(2_097_152)},
	}
	require.NoError(t, WriteHuman(&buf, d))
	require.Contains(t, buf.String(), "size: 2.1 MB")
}
