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

package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

func buildEvents(n int) []event.Committed {
	events := make([]event.Committed, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, event.Committed{
			CommitIndex: uint64(i),
			RunID:       "r",
			SourceID:    "s",
			TimestampNs: int64(i + 1),
			Tier:        event.TierB,
			Payload:     event.RunStart{Agent: "a"},
		})
	}
	return events
}

func TestCheckpointEqualsReplayAtBoundary(t *testing.T) {
	dir := t.TempDir()
	mgr, err := New(dir)
	require.NoError(t, err)

	k := Interval - 1 // commit_index of the Interval-th event (0-based)
	events := buildEvents(Interval + 5)

	state, err := reducer.ReplayAll(events[:k+1])
	require.NoError(t, err)
	require.NoError(t, mgr.Write(uint64(k), state))

	snap, err := mgr.Load(uint64(k))
	require.NoError(t, err)

	fullReplay, err := reducer.ReplayAll(events[:k+1])
	require.NoError(t, err)
	wantHash, err := fullReplay.HashHex()
	require.NoError(t, err)

	require.Equal(t, wantHash, snap.StateHash)
	gotHash, err := snap.State.HashHex()
	require.NoError(t, err)
	require.Equal(t, wantHash, gotHash)
}

func TestCheckpointPlusSuffixEqualsFullReplay(t *testing.T) {
	events := buildEvents(20)
	k := 10

	checkpointed, err := reducer.ReplayAll(events[:k+1])
	require.NoError(t, err)
	for _, e := range events[k+1:] {
		reducer.ReduceInPlace(checkpointed, e)
	}
	fromCheckpointHash, err := checkpointed.HashHex()
	require.NoError(t, err)

	full, err := reducer.ReplayAll(events)
	require.NoError(t, err)
	fullHash, err := full.HashHex()
	require.NoError(t, err)

	require.Equal(t, fullHash, fromCheckpointHash)
}

func TestLatestReportsHighestCommitIndex(t *testing.T) {
	dir := t.TempDir()
	mgr, err := New(dir)
	require.NoError(t, err)

	_, ok, err := mgr.Latest()
	require.NoError(t, err)
	require.False(t, ok)

	state := reducer.New()
	require.NoError(t, mgr.Write(4999, state))
	require.NoError(t, mgr.Write(9999, state))

	latest, ok, err := mgr.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 9999, latest)
}

func TestPruneKeepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	mgr, err := New(dir)
	require.NoError(t, err)

	state := reducer.New()
	for _, idx := range []uint64{4999, 9999, 14999} {
		require.NoError(t, mgr.Write(idx, state))
	}
	require.NoError(t, mgr.Prune(1))

	latest, ok, err := mgr.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 14999, latest)

	_, err = mgr.Load(4999)
	require.Error(t, err)
	_, err = mgr.Load(9999)
	require.Error(t, err)
}

func TestShouldCheckpointBoundary(t *testing.T) {
	require.False(t, ShouldCheckpoint(Interval-2))
	require.True(t, ShouldCheckpoint(Interval-1))
	require.False(t, ShouldCheckpoint(Interval))
}

func TestEventsUntilNext(t *testing.T) {
	require.Equal(t, Interval, EventsUntilNext(0))
	require.Equal(t, 1, EventsUntilNext(Interval-1))
	require.Equal(t, Interval, EventsUntilNext(Interval))
}
