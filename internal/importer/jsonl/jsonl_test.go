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

package jsonl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsInOrder(t *testing.T) {
	input := strings.Join([]string{
		`{"run_id":"r","source_id":"s1","timestamp_ns":1,"tier":"A","payload":{"type":"RunStart","agent":"a","model":"m","cwd":"/"}}`,
		`{"run_id":"r","source_id":"s1","timestamp_ns":2,"tier":"A","payload":{"type":"RunEnd","exit_reason":"ok","duration_ns":5}}`,
	}, "\n")

	src := New(strings.NewReader(input))
	u1, ok, err := src.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "s1", u1.SourceID)
	require.EqualValues(t, 1, u1.TimestampNs)

	u2, ok, err := src.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, u2.TimestampNs)

	_, ok, err = src.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSourceSynthesizesMissingSourceID(t *testing.T) {
	input := `{"run_id":"r","timestamp_ns":1,"tier":"B","payload":{"type":"RunStart","agent":"a","model":"m","cwd":"/"}}`
	src := New(strings.NewReader(input))
	u, ok, err := src.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, u.SourceID)
	require.True(t, u.Synthesized)
}

func TestSourceRejectsCommitIndexField(t *testing.T) {
	input := `{"commit_index":3,"run_id":"r","source_id":"s","timestamp_ns":1,"tier":"A","payload":{"type":"RunStart"}}`
	src := New(strings.NewReader(input))
	_, _, err := src.Next()
	require.Error(t, err)
}
