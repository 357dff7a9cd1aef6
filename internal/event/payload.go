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

package event

import (
	"encoding/json"
	"fmt"

	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
)

// Payload is the tagged-variant union carried by every event. Concrete
// variants below all implement Type(); Payload itself is only ever held as
// one of them.
type Payload interface {
	Type() PayloadType
}

// RunStart marks the beginning of an agent run.
type RunStart struct {
	Agent string `json:"agent"`
	Model string `json:"model"`
	Cwd   string `json:"cwd"`
}

func (RunStart) Type() PayloadType { return PayloadRunStart }

// RunEnd marks the end of an agent run. DurationNs is already an integer
// count of nanoseconds; unlike queue_pressure elsewhere, no quantisation
// step is needed for it to be hash-safe.
type RunEnd struct {
	ExitReason string `json:"exit_reason"`
	DurationNs int64  `json:"duration_ns"`
}

func (RunEnd) Type() PayloadType { return PayloadRunEnd }

// ToolCall records a tool invocation. ArgsDigest is the BLAKE3 hex digest of
// the canonicalised arguments, not the raw arguments themselves - keeping
// potentially sensitive call arguments out of hashed committed truth by
// default. The raw arguments travel in a Generic payload or an offloaded
// blob, which is what the share-safe scanner actually inspects.
type ToolCall struct {
	ToolName   string `json:"tool_name"`
	CallID     string `json:"call_id"`
	ArgsDigest string `json:"args_digest"`
}

func (ToolCall) Type() PayloadType { return PayloadToolCall }

// ToolResult correlates back to a ToolCall by CallID.
type ToolResult struct {
	CallID       string `json:"call_id"`
	Status       string `json:"status"`
	ResultDigest string `json:"result_digest"`
}

func (ToolResult) Type() PayloadType { return PayloadToolResult }

// PolicyDecision records a backpressure ladder transition (or any other
// policy decision). QueuePressureE6 is the quantised form of queue_pressure
// (clamped to [0,1], scaled by 1e6, rounded) - see canon.QuantiseUnit.
type PolicyDecision struct {
	FromLevel       string `json:"from_level"`
	ToLevel         string `json:"to_level"`
	Trigger         string `json:"trigger"`
	QueuePressureE6 uint64 `json:"queue_pressure_e6"`
}

func (PolicyDecision) Type() PayloadType { return PayloadPolicyDecision }

// RedactionApplied records that the scanner flagged a field at export time.
type RedactionApplied struct {
	FieldPath      string `json:"field_path"`
	MatchedPattern string `json:"matched_pattern"`
}

func (RedactionApplied) Type() PayloadType { return PayloadRedactionApplied }

// Error is the structured, Tier A error event emitted on fatal or contract
// failures.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	FMCode  string `json:"fm_code,omitempty"`
}

func (Error) Type() PayloadType { return PayloadError }

// ClockSkewDetected is emitted in addition to the triggering event when a
// source's timestamp moves backward by more than the skew tolerance.
type ClockSkewDetected struct {
	SourceID string `json:"source_id"`
	DeltaNs  int64  `json:"delta_ns"`
}

func (ClockSkewDetected) Type() PayloadType { return PayloadClockSkewDetected }

// Generic is the fallback variant for event types the recorder does not
// otherwise model. Data is a canon.SortedMap, never a bare Go map, so that
// an importer-supplied dynamic-key payload stays hash-stable.
//
// The spec names this variant's discriminating field "type" (the original
// external event type string). On the wire that would collide with the
// envelope's own "type" discriminant (which holds the literal "Generic"), so
// it is carried under "generic_type" instead; GenericType is the in-memory
// name for the same value.
type Generic struct {
	GenericType string           `json:"generic_type"`
	Data        *canon.SortedMap `json:"data"`
}

func (Generic) Type() PayloadType { return PayloadGeneric }

// payloadEnvelope is the on-the-wire shape: a discriminant plus the
// variant's own fields flattened alongside it.
type payloadEnvelope struct {
	Kind PayloadType `json:"type"`
}

// MarshalPayload renders p as {"type": "...", <variant fields>}.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("event: nil payload")
	}
	variant, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("event: marshal payload variant: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(variant, &fields); err != nil {
		return nil, fmt.Errorf("event: flatten payload variant: %w", err)
	}
	out := map[string]json.RawMessage{}
	kindBytes, _ := json.Marshal(p.Type())
	out["type"] = kindBytes
	for k, v := range fields {
		if k == "type" {
			continue
		}
		out[k] = v
	}
	return marshalOrdered(out, p.Type())
}

// marshalOrdered writes "type" first, then the remaining keys in a fixed,
// per-variant field order so the on-disk line is byte-stable across runs -
// map range order in Go is randomised, so this cannot be a plain
// json.Marshal(map[string]...) call.
func marshalOrdered(fields map[string]json.RawMessage, kind PayloadType) ([]byte, error) {
	order := fieldOrderFor(kind)
	buf := []byte{'{'}
	write := func(key string, first *bool) error {
		v, ok := fields[key]
		if !ok {
			return nil
		}
		if !*first {
			buf = append(buf, ',')
		}
		*first = false
		kb, _ := json.Marshal(key)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, v...)
		return nil
	}
	first := true
	if err := write("type", &first); err != nil {
		return nil, err
	}
	for _, k := range order {
		if err := write(k, &first); err != nil {
			return nil, err
		}
	}
	buf = append(buf, '}')
	return buf, nil
}

func fieldOrderFor(kind PayloadType) []string {
	switch kind {
	case PayloadRunStart:
		return []string{"agent", "model", "cwd"}
	case PayloadRunEnd:
		return []string{"exit_reason", "duration_ns"}
	case PayloadToolCall:
		return []string{"tool_name", "call_id", "args_digest"}
	case PayloadToolResult:
		return []string{"call_id", "status", "result_digest"}
	case PayloadPolicyDecision:
		return []string{"from_level", "to_level", "trigger", "queue_pressure_e6"}
	case PayloadRedactionApplied:
		return []string{"field_path", "matched_pattern"}
	case PayloadError:
		return []string{"kind", "message", "fm_code"}
	case PayloadClockSkewDetected:
		return []string{"source_id", "delta_ns"}
	case PayloadGeneric:
		return []string{"generic_type", "data"}
	default:
		return nil
	}
}

// UnmarshalPayload parses a payload envelope back into its concrete variant.
func UnmarshalPayload(data []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("event: decode payload envelope: %w", err)
	}
	switch env.Kind {
	case PayloadRunStart:
		var v RunStart
		return v, unmarshalInto(data, &v)
	case PayloadRunEnd:
		var v RunEnd
		return v, unmarshalInto(data, &v)
	case PayloadToolCall:
		var v ToolCall
		return v, unmarshalInto(data, &v)
	case PayloadToolResult:
		var v ToolResult
		return v, unmarshalInto(data, &v)
	case PayloadPolicyDecision:
		var v PolicyDecision
		return v, unmarshalInto(data, &v)
	case PayloadRedactionApplied:
		var v RedactionApplied
		return v, unmarshalInto(data, &v)
	case PayloadError:
		var v Error
		return v, unmarshalInto(data, &v)
	case PayloadClockSkewDetected:
		var v ClockSkewDetected
		return v, unmarshalInto(data, &v)
	case PayloadGeneric:
		var raw struct {
			GenericType string          `json:"generic_type"`
			Data        json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("event: decode generic payload: %w", err)
		}
		sm := canon.NewSortedMap()
		if len(raw.Data) > 0 {
			if err := sm.UnmarshalJSON(raw.Data); err != nil {
				return nil, fmt.Errorf("event: decode generic payload data: %w", err)
			}
		}
		return Generic{GenericType: raw.GenericType, Data: sm}, nil
	default:
		return nil, fmt.Errorf("event: unknown payload type %q without Generic fallback", env.Kind)
	}
}

func unmarshalInto(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("event: decode payload variant: %w", err)
	}
	return nil
}
