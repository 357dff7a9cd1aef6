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

package hud

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/projection"
)

func TestRenderHeaderConfessesAllFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlainWriter(&buf)

	vm := &projection.ViewModel{
		EventCountByType:  canon.NewSortedMap(),
		ToolCalls:         canon.NewSortedMap(),
		DegradationLevel:  "L2",
		AggregationMode:   "bin-1s",
		BinSize:           1000,
		QueuePressureE6:   650000,
		TierADrops:        0,
		ExportSafetyState: projection.ExportSafetyDirty,
	}
	w.RenderHeader(vm)

	out := buf.String()
	require.Contains(t, out, "L2")
	require.Contains(t, out, "bin-1s")
	require.Contains(t, out, "0.6500")
	require.Contains(t, out, "DIRTY")
}

func TestRenderEventsMarksSynthesizedRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlainWriter(&buf)

	events := []event.Committed{
		{CommitIndex: 0, Tier: event.TierA, SourceID: "agent-1", Payload: event.RunStart{}, Synthesized: false},
		{CommitIndex: 1, Tier: event.TierB, SourceID: "agent-1", Payload: event.ToolCall{CallID: "c1"}, Synthesized: true},
	}
	w.RenderEvents(events)

	out := buf.String()
	require.Contains(t, out, "agent-1")
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(syntheticGlyph)))
}
