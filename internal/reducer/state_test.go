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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

func TestStateRoundTripsThroughJSONWithMatchingHash(t *testing.T) {
	seq := uint64(2)
	state := New()
	ReduceInPlace(state, committed(0, "agent-1", 1, event.ToolCall{ToolName: "grep", CallID: "c1", ArgsDigest: "d1"}))
	ReduceInPlace(state, committed(1, "agent-1", 2, event.ToolResult{CallID: "c1", Status: "ok", ResultDigest: "d2"}))
	state.SourceStats.Set("agent-1", SourceStats{
		EventCount:      2,
		LastTimestampNs: 2,
		LastSourceSeq:   &seq,
		SeqGapTotal:     1,
	})

	wantHash, err := state.HashHex()
	require.NoError(t, err)

	b, err := json.Marshal(state)
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, json.Unmarshal(b, loaded))

	gotHash, err := loaded.HashHex()
	require.NoError(t, err)
	require.Equal(t, wantHash, gotHash)

	v, ok := loaded.SourceStats.Get("agent-1")
	require.True(t, ok)
	ss, ok := v.(SourceStats)
	require.True(t, ok, "source_stats entry must decode back into a typed SourceStats, not a bare map")
	require.EqualValues(t, 1, ss.SeqGapTotal)
	require.NotNil(t, ss.LastSourceSeq)
	require.EqualValues(t, 2, *ss.LastSourceSeq)

	tv, ok := loaded.ToolCalls.Get("c1")
	require.True(t, ok)
	rec, ok := tv.(ToolCallRecord)
	require.True(t, ok, "tool_calls entry must decode back into a typed ToolCallRecord, not a bare map")
	require.True(t, rec.Resolved)
	require.Equal(t, "grep", rec.ToolName)
}
