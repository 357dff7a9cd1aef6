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

// Package projection turns State into a ViewModel: a pure, deterministic
// function that excludes terminal dimensions, cursor/focus state, wall
// clock, and randomness, and confesses any coarsening it applies.
package projection

import (
	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

// InvariantsVersion is folded into viewmodel_hash; any change to what the
// projection considers or confesses requires a version bump.
const InvariantsVersion = "projection-invariants-v0.1"

// Invariants parameterises the projection. The zero value is the default
// rule set: no additional invariants beyond those always enforced.
type Invariants struct {
	Version string
}

// Default returns the invariants set matching InvariantsVersion.
func Default() Invariants {
	return Invariants{Version: InvariantsVersion}
}

// ToolCallView is the summarised, presentation-facing shape of a
// reducer.ToolCallRecord.
type ToolCallView struct {
	ToolName string `json:"tool_name"`
	CallID   string `json:"call_id"`
	Resolved bool   `json:"resolved"`
	Status   string `json:"status,omitempty"`
}

// ViewModel is the deterministic projection of State. It is hashable: every
// dynamic-key field is a canon.SortedMap, every sequence is ordered by
// commit_index.
type ViewModel struct {
	ProjectionInvariantsVersion string           `json:"projection_invariants_version"`
	LastCommitIndex             uint64           `json:"last_commit_index"`
	EventCountTotal             uint64           `json:"event_count_total"`
	EventCountByType            *canon.SortedMap `json:"event_count_by_type"`
	ToolCalls                   *canon.SortedMap `json:"tool_calls"`
	SkewEventsTotal             uint64           `json:"skew_events_total"`

	// HUD confession fields (§4.6): always present, never merely implied.
	DegradationLevel  string `json:"degradation_level"`
	AggregationMode   string `json:"aggregation_mode"`
	BinSize           uint64 `json:"bin_size"`
	QueuePressureE6   uint64 `json:"queue_pressure_e6"`
	TierADrops        uint64 `json:"tier_a_drops"`
	ExportSafetyState string `json:"export_safety_state"`
}

// Hash returns viewmodel_hash = BLAKE3(projection_invariants_version || canonical_bytes(ViewModel)).
func (v *ViewModel) Hash() ([32]byte, error) {
	return canon.Hash(v.ProjectionInvariantsVersion, v)
}

// HashHex is the hex-encoded form of Hash.
func (v *ViewModel) HashHex() (string, error) {
	return canon.HashHex(v.ProjectionInvariantsVersion, v)
}

// ExportSafetyState values for the HUD confession contract.
const (
	ExportSafetyUnknown = "UNKNOWN"
	ExportSafetyClean   = "CLEAN"
	ExportSafetyDirty   = "DIRTY"
	ExportSafetyRefused = "REFUSED"
)

// ControllerView is the subset of backpressure controller state the
// projection needs, per Open Question decision 2: aggregation_mode and
// bin_size live in the controller, not in State, and only reach the
// ViewModel through this read of the controller's own last-committed
// PolicyDecision.
type ControllerView struct {
	AggregationMode   string
	BinSize           uint64
	QueuePressureE6   uint64
	ExportSafetyState string
}

// Project folds state (plus the controller's presentation-facing view) into
// a ViewModel under inv. It is pure: given the same state, controller view,
// and invariants, it always returns byte-identical output.
func Project(state *reducer.State, ctl ControllerView, inv Invariants) *ViewModel {
	vm := &ViewModel{
		ProjectionInvariantsVersion: inv.Version,
		LastCommitIndex:             state.LastCommitIndex,
		EventCountTotal:             state.EventCountTotal,
		EventCountByType:            canon.NewSortedMap(),
		ToolCalls:                   canon.NewSortedMap(),
		SkewEventsTotal:             state.SkewEventsTotal,
		DegradationLevel:            state.LastDegradationLevel,
		AggregationMode:             ctl.AggregationMode,
		BinSize:                     ctl.BinSize,
		QueuePressureE6:             ctl.QueuePressureE6,
		TierADrops:                  state.TierADrops,
		ExportSafetyState:           ctl.ExportSafetyState,
	}
	if vm.ExportSafetyState == "" {
		vm.ExportSafetyState = ExportSafetyUnknown
	}
	if vm.AggregationMode == "" {
		vm.AggregationMode = "none"
	}

	state.EventCountByType.Range(func(k string, v any) bool {
		vm.EventCountByType.Set(k, v)
		return true
	})
	state.ToolCalls.Range(func(k string, v any) bool {
		if rec, ok := v.(reducer.ToolCallRecord); ok {
			vm.ToolCalls.Set(k, ToolCallView{
				ToolName: rec.ToolName,
				CallID:   rec.CallID,
				Resolved: rec.Resolved,
				Status:   rec.ResultStatus,
			})
		}
		return true
	})

	return vm
}
