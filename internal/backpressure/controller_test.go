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

package backpressure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

type fakeAppender struct {
	committed []event.Uncommitted
}

func (f *fakeAppender) Append(u event.Uncommitted) ([]event.Committed, error) {
	f.committed = append(f.committed, u)
	return []event.Committed{{CommitIndex: uint64(len(f.committed) - 1), Payload: u.Payload, Tier: u.Tier}}, nil
}

func TestEvaluateEscalatesOneLevelAtATime(t *testing.T) {
	w := &fakeAppender{}
	c := New(w, "r", "s")

	require.NoError(t, c.Evaluate(95, 100)) // pressure 0.95 >= 0.80
	require.Equal(t, L1Aggregate, c.Level())
	require.Len(t, w.committed, 1)

	pd := w.committed[0].Payload.(event.PolicyDecision)
	require.Equal(t, "L0", pd.FromLevel)
	require.Equal(t, "L1", pd.ToLevel)

	require.NoError(t, c.Evaluate(95, 100))
	require.Equal(t, L2Collapse, c.Level(), "escalation moves only one level per evaluation")
}

func TestEvaluateDoesNotDeescalateBeforeDwell(t *testing.T) {
	w := &fakeAppender{}
	c := New(w, "r", "s")
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Evaluate(95, 100))
	require.Equal(t, L1Aggregate, c.Level())

	now = now.Add(1 * time.Second)
	require.NoError(t, c.Evaluate(10, 100)) // pressure 0.10 <= 0.50
	require.Equal(t, L1Aggregate, c.Level(), "must not recover before 2s dwell")

	now = now.Add(1500 * time.Millisecond)
	require.NoError(t, c.Evaluate(10, 100))
	require.Equal(t, L0Normal, c.Level(), "recovers one level after 2s continuous dwell below clear threshold")
}

func TestForceSafeStopJumpsDirectly(t *testing.T) {
	w := &fakeAppender{}
	c := New(w, "r", "s")
	require.NoError(t, c.ForceSafeStop("fatal_storage_failure"))
	require.Equal(t, L5SafeStop, c.Level())
	pd := w.committed[0].Payload.(event.PolicyDecision)
	require.Equal(t, "L5", pd.ToLevel)
}

func TestEveryTransitionIsTierA(t *testing.T) {
	w := &fakeAppender{}
	c := New(w, "r", "s")
	require.NoError(t, c.Evaluate(95, 100))
	require.Equal(t, event.TierA, w.committed[0].Tier)
}
