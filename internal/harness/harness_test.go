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

package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.jsonl")
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `{"run_id":"run-1","source_id":"agent-1","timestamp_ns":%d,"tier":"A","payload":{"type":"RunStart"}}`+"\n", int64(i)*1_000_000)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func TestRunProducesDeterministicViewModelHash(t *testing.T) {
	fixture := writeFixture(t, 50)

	dir1 := t.TempDir()
	res1, err := Run(context.Background(), fixture, dir1)
	require.NoError(t, err)

	dir2 := t.TempDir()
	res2, err := Run(context.Background(), fixture, dir2)
	require.NoError(t, err)

	require.Equal(t, res1.ViewModelHash, res2.ViewModelHash)
	require.Equal(t, res1.Metrics.EventCountTotal, uint64(50))
	require.Equal(t, uint64(0), res1.Metrics.TierADrops)
}

func TestRunAnsiCaptureContainsViewModelHash(t *testing.T) {
	fixture := writeFixture(t, 5)
	dir := t.TempDir()
	res, err := Run(context.Background(), fixture, dir)
	require.NoError(t, err)
	require.Contains(t, res.AnsiCapture, res.ViewModelHash)
}

func TestRunTimetravelFinalSeekMatchesEventCount(t *testing.T) {
	fixture := writeFixture(t, 10)
	dir := t.TempDir()
	res, err := Run(context.Background(), fixture, dir)
	require.NoError(t, err)

	require.NotEmpty(t, res.TimeTravel.SeekPoints)
	final := res.TimeTravel.SeekPoints[len(res.TimeTravel.SeekPoints)-1]
	require.Equal(t, res.Metrics.EventCountTotal-1, final.CommitIndex)
	require.Equal(t, res.ViewModelHash, final.ViewModelHash)
}
