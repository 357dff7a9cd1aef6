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

package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/blobstore"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

func TestReaderAllReturnsCommittedOrder(t *testing.T) {
	w, logPath := newTestWriter(t)
	for i := 0; i < 5; i++ {
		_, err := w.Append(event.Uncommitted{
			RunID: "r", SourceID: "s", TimestampNs: int64(i + 1), Tier: event.TierA,
			Payload: event.RunStart{Agent: "a"},
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.file.Sync())

	r := NewReader(logPath)
	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, c := range all {
		require.EqualValues(t, i, c.CommitIndex)
	}
}

func TestReaderAllStopsAtTrailingPartialLine(t *testing.T) {
	w, logPath := newTestWriter(t)
	_, err := w.Append(event.Uncommitted{RunID: "r", SourceID: "s", TimestampNs: 1, Tier: event.TierA, Payload: event.RunStart{}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"commit_index":1,"run_id":"r"`) // deliberately truncated, no trailing newline
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := NewReader(logPath)
	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 1, "trailing partial line must not be surfaced")
}

func TestRecoverTailTruncatesPartialLineOnReopen(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blobstore.New(filepath.Join(dir, "blobs"), false)
	require.NoError(t, err)
	logPath := filepath.Join(dir, "events.jsonl")

	w, err := Open(logPath, blobs)
	require.NoError(t, err)
	_, err = w.Append(event.Uncommitted{RunID: "r", SourceID: "s", TimestampNs: 1, Tier: event.TierA, Payload: event.RunStart{}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	goodSize := info.Size()

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"commit_index":1,"run_id"`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := Open(logPath, blobs)
	require.NoError(t, err)
	defer w2.Close()
	require.EqualValues(t, 1, w2.NextIndex(), "recovery must still see the one well-formed event")

	info2, err := os.Stat(logPath)
	require.NoError(t, err)
	require.Equal(t, goodSize, info2.Size(), "trailing partial line must be truncated away")
}
