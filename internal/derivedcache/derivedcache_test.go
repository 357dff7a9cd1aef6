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

package derivedcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

func sampleEvents() []event.Committed {
	return []event.Committed{
		{CommitIndex: 0, RunID: "r1", SourceID: "s", Tier: event.TierA, Payload: event.RunStart{}},
		{CommitIndex: 1, RunID: "r1", SourceID: "s", Tier: event.TierB, Payload: event.ToolCall{CallID: "c1"}},
		{CommitIndex: 2, RunID: "r2", SourceID: "s", Tier: event.TierA, Payload: event.RunStart{}},
	}
}

func TestRebuildAndFilterByRunID(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Rebuild(sampleEvents()))

	idxs, err := c.CommitIndices(Filter{RunID: "r1"})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, idxs)
}

func TestFilterByTierAndPayloadType(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Rebuild(sampleEvents()))

	idxs, err := c.CommitIndices(Filter{Tier: "A"})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2}, idxs)

	idxs, err = c.CommitIndices(Filter{PayloadType: string(event.PayloadToolCall)})
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, idxs)
}

func TestResetClearsCache(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Rebuild(sampleEvents()))
	require.NoError(t, c.Reset())

	idxs, err := c.CommitIndices(Filter{})
	require.NoError(t, err)
	require.Empty(t, idxs)
}
