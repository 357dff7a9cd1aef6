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

package reducer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

func committed(idx uint64, sourceID string, ts int64, p event.Payload) event.Committed {
	return event.Committed{
		CommitIndex: idx,
		RunID:       "r",
		SourceID:    sourceID,
		TimestampNs: ts,
		Tier:        event.TierA,
		Payload:     p,
	}
}

func TestReduceCountsByType(t *testing.T) {
	state := New()
	ReduceInPlace(state, committed(0, "s", 1, event.RunStart{Agent: "a"}))
	ReduceInPlace(state, committed(1, "s", 2, event.RunStart{Agent: "a"}))
	ReduceInPlace(state, committed(2, "s", 3, event.RunEnd{ExitReason: "ok"}))

	require.EqualValues(t, 3, state.EventCountTotal)
	v, ok := state.EventCountByType.Get(string(event.PayloadRunStart))
	require.True(t, ok)
	require.EqualValues(t, 2, v)
	v, ok = state.EventCountByType.Get(string(event.PayloadRunEnd))
	require.True(t, ok)
	require.EqualValues(t, 1, v)
	require.Zero(t, state.TierADrops)
}

func TestReduceToolCallCorrelation(t *testing.T) {
	state := New()
	ReduceInPlace(state, committed(0, "s", 1, event.ToolCall{ToolName: "grep", CallID: "c1", ArgsDigest: "d1"}))
	ReduceInPlace(state, committed(1, "s", 2, event.ToolResult{CallID: "c1", Status: "ok", ResultDigest: "d2"}))

	v, ok := state.ToolCalls.Get("c1")
	require.True(t, ok)
	rec := v.(ToolCallRecord)
	require.True(t, rec.Resolved)
	require.Equal(t, "ok", rec.ResultStatus)
	require.Equal(t, "grep", rec.ToolName)
}

func TestReducePolicyDecisionAndSkew(t *testing.T) {
	state := New()
	ReduceInPlace(state, committed(0, "s", 1, event.PolicyDecision{
		FromLevel: "L0", ToLevel: "L1", Trigger: "queue_pressure", QueuePressureE6: 850000,
	}))
	require.Equal(t, "L1", state.LastDegradationLevel)
	require.NotNil(t, state.LastPolicyDecision)
	require.EqualValues(t, 850000, state.LastPolicyDecision.QueuePressureE6)

	ReduceInPlace(state, committed(1, "s", 2, event.ClockSkewDetected{SourceID: "s", DeltaNs: 100}))
	require.EqualValues(t, 1, state.SkewEventsTotal)
	v, ok := state.SourceStats.Get("s")
	require.True(t, ok)
	require.EqualValues(t, 1, v.(SourceStats).SkewEvents)
}

func TestReduceIsDeterministicAcrossRuns(t *testing.T) {
	events := []event.Committed{
		committed(0, "s", 1, event.RunStart{Agent: "a", Model: "m", Cwd: "/"}),
		committed(1, "s", 2, event.ToolCall{ToolName: "grep", CallID: "c1"}),
		committed(2, "s", 3, event.ToolResult{CallID: "c1", Status: "ok"}),
		committed(3, "s", 4, event.RunEnd{ExitReason: "done", DurationNs: 10}),
	}

	var hashes []string
	for i := 0; i < 10; i++ {
		state, err := ReplayAll(events)
		require.NoError(t, err)
		h, err := state.HashHex()
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	for i := 1; i < len(hashes); i++ {
		require.Equal(t, hashes[0], hashes[i], "state_hash must be stable across independent runs")
	}
}

func TestReplayAllRejectsNonContiguousIndex(t *testing.T) {
	events := []event.Committed{
		committed(0, "s", 1, event.RunStart{}),
		committed(2, "s", 2, event.RunStart{}),
	}
	_, err := ReplayAll(events)
	require.Error(t, err)
}

func committedWithSeq(idx uint64, sourceID string, seq uint64, p event.Payload) event.Committed {
	c := committed(idx, sourceID, int64(idx), p)
	c.SourceSeq = &seq
	return c
}

func TestReduceTracksSourceSeqGaps(t *testing.T) {
	state := New()
	ReduceInPlace(state, committedWithSeq(0, "s", 1, event.RunStart{}))
	ReduceInPlace(state, committedWithSeq(1, "s", 2, event.ToolCall{CallID: "c1"}))
	ReduceInPlace(state, committedWithSeq(2, "s", 5, event.ToolResult{CallID: "c1"}))

	v, ok := state.SourceStats.Get("s")
	require.True(t, ok)
	ss := v.(SourceStats)
	require.EqualValues(t, 2, ss.SeqGapTotal)
	require.NotNil(t, ss.LastSourceSeq)
	require.EqualValues(t, 5, *ss.LastSourceSeq)
}

func TestReduceDoesNotMutateOriginal(t *testing.T) {
	state := New()
	ReduceInPlace(state, committed(0, "s", 1, event.RunStart{}))
	next := Reduce(state, committed(1, "s", 2, event.RunStart{}))

	require.EqualValues(t, 1, state.EventCountTotal)
	require.EqualValues(t, 2, next.EventCountTotal)
}
