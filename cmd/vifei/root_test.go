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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/cliio"
)

func TestRootCommandRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"import", "view", "export", "tour", "reindex"} {
		require.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestExportWithoutShareSafeFlagIsRefused(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"export", "out.tar.zst"})
	err := root.Execute()
	require.Error(t, err)

	var de *diagnosticError
	require.ErrorAs(t, err, &de)
	require.Equal(t, cliio.ExitUsage, de.d.ExitCode)
}
