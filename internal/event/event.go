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

// Package event defines the forensic unit of truth: the event shapes that
// cross the importer/append-writer boundary, and the tagged payload variants
// they carry.
//
// Two shapes exist deliberately. Uncommitted is what importers and internal
// emitters produce; Committed is what the append writer returns. There is no
// conversion path that lets a caller set CommitIndex directly - that field
// only exists on Committed, and only the append writer constructs one.
package event

import "fmt"

// Tier is the loss discipline class of an event.
type Tier string

const (
	// TierA is lossless: never dropped, never reordered.
	TierA Tier = "A"
	// TierB is summarisable: may be binned or collapsed under pressure.
	TierB Tier = "B"
	// TierC is droppable: may be collapsed to counts under pressure.
	TierC Tier = "C"
)

// Valid reports whether t is one of the three declared tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierA, TierB, TierC:
		return true
	default:
		return false
	}
}

// PayloadType tags the variant carried by Payload.
type PayloadType string

const (
	PayloadRunStart          PayloadType = "RunStart"
	PayloadRunEnd             PayloadType = "RunEnd"
	PayloadToolCall           PayloadType = "ToolCall"
	PayloadToolResult         PayloadType = "ToolResult"
	PayloadPolicyDecision     PayloadType = "PolicyDecision"
	PayloadRedactionApplied   PayloadType = "RedactionApplied"
	PayloadError              PayloadType = "Error"
	PayloadClockSkewDetected  PayloadType = "ClockSkewDetected"
	PayloadGeneric            PayloadType = "Generic"
)

// Uncommitted is the shape produced by importers and internal emitters.
// It structurally cannot carry a canonical order: there is no CommitIndex
// field on this type. A JSON line that includes "commit_index" at this
// boundary is a contract violation, not a value to parse into this struct -
// UnmarshalJSON below rejects it explicitly so the violation is detected at
// intake rather than silently ignored.
type Uncommitted struct {
	RunID        string      `json:"run_id"`
	EventID      string      `json:"event_id"`
	SourceID     string      `json:"source_id"`
	SourceSeq    *uint64     `json:"source_seq,omitempty"`
	TimestampNs  int64       `json:"timestamp_ns"`
	Tier         Tier        `json:"tier"`
	Payload      Payload     `json:"payload"`
	PayloadRef   string      `json:"payload_ref,omitempty"`
	Synthesized  bool        `json:"synthesized,omitempty"`
}

// DefaultEventID returns the spec's default event_id: "{source_id}:{source_seq}".
// Callers use this when an importer omits EventID.
func DefaultEventID(sourceID string, sourceSeq uint64) string {
	return fmt.Sprintf("%s:%d", sourceID, sourceSeq)
}

// Committed is the immutable, ordered record assigned exactly once by the
// append writer. Field order matches the canonical declaration order used
// for on-disk JSON Lines encoding.
type Committed struct {
	CommitIndex uint64  `json:"commit_index"`
	RunID       string  `json:"run_id"`
	EventID     string  `json:"event_id"`
	SourceID    string  `json:"source_id"`
	SourceSeq   *uint64 `json:"source_seq,omitempty"`
	TimestampNs int64   `json:"timestamp_ns"`
	Tier        Tier    `json:"tier"`
	Payload     Payload `json:"payload"`
	PayloadRef  string  `json:"payload_ref,omitempty"`
	Synthesized bool    `json:"synthesized,omitempty"`
}

// ContractViolationError reports a structural breach of the uncommitted/committed
// boundary - the only case in the whole pipeline where an importer-supplied
// value is rejected outright rather than folded into truth.
type ContractViolationError struct {
	Kind    string
	Detail  string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation (%s): %s", e.Kind, e.Detail)
}
