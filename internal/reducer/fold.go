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
	"fmt"

	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/mathutil"
)

// ReduceInPlace folds one committed event into state, mutating it. It never
// performs I/O, touches the wall clock, or consults any source of
// randomness - every field it writes is a pure function of state and e.
func ReduceInPlace(state *State, e event.Committed) {
	state.LastCommitIndex = e.CommitIndex
	if sum, overflowed := mathutil.SafeAdd(state.EventCountTotal, 1); !overflowed {
		state.EventCountTotal = sum
	}

	var kind string
	if e.Payload != nil {
		kind = string(e.Payload.Type())
	} else {
		kind = "offloaded"
	}
	bumpCount(state.EventCountByType, kind)

	if e.SourceID != "" {
		stats, _ := state.SourceStats.Get(e.SourceID)
		ss, _ := stats.(SourceStats)
		ss.EventCount++
		ss.LastTimestampNs = e.TimestampNs
		if e.SourceSeq != nil {
			if ss.LastSourceSeq != nil {
				expected := *ss.LastSourceSeq + 1
				if *e.SourceSeq != expected {
					ss.SeqGapTotal += mathutil.AbsoluteDifference(*e.SourceSeq, expected)
				}
			}
			seq := *e.SourceSeq
			ss.LastSourceSeq = &seq
		}
		state.SourceStats.Set(e.SourceID, ss)
	}

	// TierADrops has no increment path: the append writer never drops a Tier
	// A event (it fails the whole append instead), so the counter stays at
	// its initial 0 for the lifetime of a well-formed log. It is carried in
	// State so a guardrail test can assert it never moves.

	switch p := e.Payload.(type) {
	case event.ToolCall:
		state.ToolCalls.Set(p.CallID, ToolCallRecord{
			ToolName:   p.ToolName,
			CallID:     p.CallID,
			ArgsDigest: p.ArgsDigest,
		})
	case event.ToolResult:
		if existing, ok := state.ToolCalls.Get(p.CallID); ok {
			rec, _ := existing.(ToolCallRecord)
			rec.ResultStatus = p.Status
			rec.ResultDigest = p.ResultDigest
			rec.Resolved = true
			state.ToolCalls.Set(p.CallID, rec)
		} else {
			state.ToolCalls.Set(p.CallID, ToolCallRecord{
				CallID:       p.CallID,
				ResultStatus: p.Status,
				ResultDigest: p.ResultDigest,
				Resolved:     true,
			})
		}
	case event.PolicyDecision:
		state.LastDegradationLevel = p.ToLevel
		state.LastPolicyDecision = &LastPolicyDecision{
			FromLevel:       p.FromLevel,
			ToLevel:         p.ToLevel,
			Trigger:         p.Trigger,
			QueuePressureE6: p.QueuePressureE6,
			AtCommitIndex:   e.CommitIndex,
		}
	case event.ClockSkewDetected:
		state.SkewEventsTotal++
		if stats, ok := state.SourceStats.Get(p.SourceID); ok {
			ss, _ := stats.(SourceStats)
			ss.SkewEvents++
			state.SourceStats.Set(p.SourceID, ss)
		} else {
			state.SourceStats.Set(p.SourceID, SourceStats{SkewEvents: 1})
		}
	}
}

// Reduce folds e into a copy of state and returns the copy, leaving state
// untouched - the composable counterpart to ReduceInPlace, for callers that
// want to chain folds without mutating a shared value.
func Reduce(state *State, e event.Committed) *State {
	next := state.Clone()
	ReduceInPlace(next, e)
	return next
}

// ReplayAll folds a full ordered sequence of committed events into a fresh
// State, verifying strict commit_index contiguity as it goes - a cheap
// correctness guard the reducer can offer for free since it already visits
// every event in order.
func ReplayAll(events []event.Committed) (*State, error) {
	state := New()
	var expect uint64
	for _, e := range events {
		if e.CommitIndex != expect {
			return nil, fmt.Errorf("reducer: non-contiguous commit_index: expected %d, got %d", expect, e.CommitIndex)
		}
		ReduceInPlace(state, e)
		expect++
	}
	return state, nil
}

func bumpCount(m *canon.SortedMap, kind string) {
	var count uint64
	if v, ok := m.Get(kind); ok {
		if c, ok := v.(uint64); ok {
			count = c
		}
	}
	if sum, overflowed := mathutil.SafeAdd(count, 1); !overflowed {
		m.Set(kind, sum)
	}
}
