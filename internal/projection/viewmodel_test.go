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

package projection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

func TestProjectIsDeterministic(t *testing.T) {
	state := reducer.New()
	reducer.ReduceInPlace(state, event.Committed{
		CommitIndex: 0, RunID: "r", SourceID: "s", TimestampNs: 1, Tier: event.TierA,
		Payload: event.ToolCall{ToolName: "grep", CallID: "c1"},
	})
	reducer.ReduceInPlace(state, event.Committed{
		CommitIndex: 1, RunID: "r", SourceID: "s", TimestampNs: 2, Tier: event.TierA,
		Payload: event.ToolResult{CallID: "c1", Status: "ok"},
	})

	ctl := ControllerView{AggregationMode: "bin", BinSize: 10, QueuePressureE6: 500000, ExportSafetyState: ExportSafetyClean}

	var hashes []string
	for i := 0; i < 5; i++ {
		vm := Project(state, ctl, Default())
		h, err := vm.HashHex()
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	for _, h := range hashes[1:] {
		require.Equal(t, hashes[0], h)
	}
}

func TestProjectConfessesHUDFields(t *testing.T) {
	state := reducer.New()
	vm := Project(state, ControllerView{}, Default())

	require.Equal(t, InvariantsVersion, vm.ProjectionInvariantsVersion)
	require.Equal(t, ExportSafetyUnknown, vm.ExportSafetyState)
	require.Zero(t, vm.TierADrops)
	require.Equal(t, "none", vm.AggregationMode)
}

func TestProjectCarriesToolCallView(t *testing.T) {
	state := reducer.New()
	reducer.ReduceInPlace(state, event.Committed{
		CommitIndex: 0, RunID: "r", SourceID: "s", TimestampNs: 1, Tier: event.TierA,
		Payload: event.ToolCall{ToolName: "grep", CallID: "c1"},
	})
	vm := Project(state, ControllerView{}, Default())
	v, ok := vm.ToolCalls.Get("c1")
	require.True(t, ok)
	require.Equal(t, "grep", v.(ToolCallView).ToolName)
	require.False(t, v.(ToolCallView).Resolved)
}
