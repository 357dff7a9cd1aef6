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

// Package reducer folds committed events into State. The fold is pure: no
// I/O, no wall clock, no randomness, no suspension. Two entry points exist
// for the same fold - ReduceInPlace mutates, Reduce composes - matching the
// spec's "reduce_in_place / reduce" pair.
package reducer

import (
	"encoding/json"
	"fmt"

	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
)

// Version is the reducer's version tag, folded into state_hash so a
// behavioural change in the fold is never silently compatible with an old
// checkpoint.
const Version = "reducer-v0.1"

// SourceStats tracks per-source sequence and skew bookkeeping.
type SourceStats struct {
	EventCount      uint64  `json:"event_count"`
	LastTimestampNs int64   `json:"last_timestamp_ns"`
	SkewEvents      uint64  `json:"skew_events"`
	LastSourceSeq   *uint64 `json:"last_source_seq,omitempty"`
	SeqGapTotal     uint64  `json:"seq_gap_total"`
}

// ToolCallRecord correlates a ToolCall with its eventual ToolResult.
type ToolCallRecord struct {
	ToolName     string `json:"tool_name"`
	CallID       string `json:"call_id"`
	ArgsDigest   string `json:"args_digest"`
	ResultStatus string `json:"result_status,omitempty"`
	ResultDigest string `json:"result_digest,omitempty"`
	Resolved     bool   `json:"resolved"`
}

// LastPolicyDecision is the most recently folded PolicyDecision, carried
// forward verbatim in State so the reducer need not re-derive it.
type LastPolicyDecision struct {
	FromLevel       string `json:"from_level"`
	ToLevel         string `json:"to_level"`
	Trigger         string `json:"trigger"`
	QueuePressureE6 uint64 `json:"queue_pressure_e6"`
	AtCommitIndex   uint64 `json:"at_commit_index"`
}

// State is the reducer's fold result: a structurally sorted record. Every
// dynamic-key collection is a canon.SortedMap; every sequence is ordered by
// commit_index, never by timestamp or insertion accident.
type State struct {
	LastCommitIndex     uint64                     `json:"last_commit_index"`
	EventCountTotal      uint64                     `json:"event_count_total"`
	EventCountByType     *canon.SortedMap           `json:"event_count_by_type"`
	SourceStats          *canon.SortedMap           `json:"source_stats"`
	TierADrops           uint64                     `json:"tier_a_drops"`
	LastDegradationLevel string                     `json:"last_degradation_level"`
	ToolCalls            *canon.SortedMap           `json:"tool_calls"`
	LastPolicyDecision   *LastPolicyDecision        `json:"last_policy_decision,omitempty"`
	SkewEventsTotal      uint64                     `json:"skew_events_total"`
}

// New returns a zero-valued State ready to be folded from commit_index 0.
func New() *State {
	return &State{
		LastDegradationLevel: "L0",
		EventCountByType:     canon.NewSortedMap(),
		SourceStats:          canon.NewSortedMap(),
		ToolCalls:            canon.NewSortedMap(),
	}
}

// Hash returns state_hash = BLAKE3(reducer_version || canonical_bytes(State)).
func (s *State) Hash() ([32]byte, error) {
	return canon.Hash(Version, s)
}

// HashHex is the hex-encoded form of Hash.
func (s *State) HashHex() (string, error) {
	return canon.HashHex(Version, s)
}

// Clone returns a deep-enough copy of s suitable for checkpoint snapshotting:
// the sorted maps are rebuilt entry by entry so later mutation of s does not
// retroactively change a snapshot already taken.
func (s *State) Clone() *State {
	clone := &State{
		LastCommitIndex:      s.LastCommitIndex,
		EventCountTotal:       s.EventCountTotal,
		TierADrops:            s.TierADrops,
		LastDegradationLevel:  s.LastDegradationLevel,
		SkewEventsTotal:       s.SkewEventsTotal,
		EventCountByType:      canon.NewSortedMap(),
		SourceStats:           canon.NewSortedMap(),
		ToolCalls:             canon.NewSortedMap(),
	}
	s.EventCountByType.Range(func(k string, v any) bool {
		clone.EventCountByType.Set(k, v)
		return true
	})
	s.SourceStats.Range(func(k string, v any) bool {
		if stats, ok := v.(SourceStats); ok {
			clone.SourceStats.Set(k, stats)
		} else {
			clone.SourceStats.Set(k, v)
		}
		return true
	})
	s.ToolCalls.Range(func(k string, v any) bool {
		if rec, ok := v.(ToolCallRecord); ok {
			clone.ToolCalls.Set(k, rec)
		} else {
			clone.ToolCalls.Set(k, v)
		}
		return true
	})
	if s.LastPolicyDecision != nil {
		cp := *s.LastPolicyDecision
		clone.LastPolicyDecision = &cp
	}
	return clone
}

// UnmarshalJSON decodes a State, then rebuilds SourceStats and
// ToolCallRecord values typed rather than left as the bare
// map[string]interface{} SortedMap.UnmarshalJSON produces for any
// struct-valued entry. Without this, a loaded checkpoint's state_hash would
// either fail to compute (canon.Marshal rejects a bare map) or, if it were
// allowed, diverge from a from-scratch replay's hash, since json.Marshal
// orders map keys alphabetically but struct fields by declaration order.
func (s *State) UnmarshalJSON(data []byte) error {
	type alias State
	aux := (*alias)(s)
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("reducer: decode state: %w", err)
	}

	if s.SourceStats != nil {
		rebuilt := canon.NewSortedMap()
		var decodeErr error
		s.SourceStats.Range(func(k string, v any) bool {
			var ss SourceStats
			if err := remarshalInto(v, &ss); err != nil {
				decodeErr = fmt.Errorf("reducer: decode source_stats[%q]: %w", k, err)
				return false
			}
			rebuilt.Set(k, ss)
			return true
		})
		if decodeErr != nil {
			return decodeErr
		}
		s.SourceStats = rebuilt
	}

	if s.ToolCalls != nil {
		rebuilt := canon.NewSortedMap()
		var decodeErr error
		s.ToolCalls.Range(func(k string, v any) bool {
			var rec ToolCallRecord
			if err := remarshalInto(v, &rec); err != nil {
				decodeErr = fmt.Errorf("reducer: decode tool_calls[%q]: %w", k, err)
				return false
			}
			rebuilt.Set(k, rec)
			return true
		})
		if decodeErr != nil {
			return decodeErr
		}
		s.ToolCalls = rebuilt
	}

	return nil
}

// remarshalInto re-encodes v (typically a map[string]interface{} decoded by
// SortedMap.UnmarshalJSON) and decodes it into target, recovering the
// struct type a SortedMap entry had before it crossed JSON.
func remarshalInto(v any, target any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}
