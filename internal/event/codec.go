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
	"bytes"
	"encoding/json"
	"fmt"
)

// wireOrder is the canonical on-disk field order from spec §3, used for both
// shapes (Committed simply includes commit_index, Uncommitted omits it).
var wireFields = []string{
	"commit_index", "run_id", "event_id", "source_id", "source_seq",
	"timestamp_ns", "tier", "payload", "payload_ref", "synthesized",
}

// MarshalJSON renders the committed event as one canonically-ordered JSON
// object: no pretty printing, field order fixed per §3, suitable to be
// written as a single newline-terminated log line.
func (c Committed) MarshalJSON() ([]byte, error) {
	var payloadField any
	if c.Payload != nil {
		payloadBytes, err := MarshalPayload(c.Payload)
		if err != nil {
			return nil, fmt.Errorf("event: marshal committed payload: %w", err)
		}
		payloadField = json.RawMessage(payloadBytes)
	}
	return marshalWire(wireFields, map[string]any{
		"commit_index": c.CommitIndex,
		"run_id":       c.RunID,
		"event_id":     c.EventID,
		"source_id":    c.SourceID,
		"source_seq":   c.SourceSeq,
		"timestamp_ns": c.TimestampNs,
		"tier":         c.Tier,
		"payload":      payloadField,
		"payload_ref":  omitEmptyString(c.PayloadRef),
		"synthesized":  omitFalse(c.Synthesized),
	})
}

// UnmarshalJSON parses a committed log line back into its typed shape.
func (c *Committed) UnmarshalJSON(data []byte) error {
	var raw struct {
		CommitIndex uint64          `json:"commit_index"`
		RunID       string          `json:"run_id"`
		EventID     string          `json:"event_id"`
		SourceID    string          `json:"source_id"`
		SourceSeq   *uint64         `json:"source_seq"`
		TimestampNs int64           `json:"timestamp_ns"`
		Tier        Tier            `json:"tier"`
		Payload     json.RawMessage `json:"payload"`
		PayloadRef  string          `json:"payload_ref"`
		Synthesized bool            `json:"synthesized"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event: decode committed line: %w", err)
	}
	var p Payload
	if len(raw.Payload) > 0 {
		var err error
		p, err = UnmarshalPayload(raw.Payload)
		if err != nil {
			return fmt.Errorf("event: decode committed payload: %w", err)
		}
	}
	c.CommitIndex = raw.CommitIndex
	c.RunID = raw.RunID
	c.EventID = raw.EventID
	c.SourceID = raw.SourceID
	c.SourceSeq = raw.SourceSeq
	c.TimestampNs = raw.TimestampNs
	c.Tier = raw.Tier
	c.Payload = p
	c.PayloadRef = raw.PayloadRef
	c.Synthesized = raw.Synthesized
	return nil
}

// MarshalJSON renders an uncommitted event. commit_index is structurally
// absent from this type, so it can never appear in the output regardless of
// what produced the value - the only way to get a commit_index onto the
// wire is through Committed.MarshalJSON, which only the append writer calls.
func (u Uncommitted) MarshalJSON() ([]byte, error) {
	payloadBytes, err := MarshalPayload(u.Payload)
	if err != nil {
		return nil, fmt.Errorf("event: marshal uncommitted payload: %w", err)
	}
	return marshalWire(wireFields[1:], map[string]any{
		"run_id":       u.RunID,
		"event_id":     u.EventID,
		"source_id":    u.SourceID,
		"source_seq":   u.SourceSeq,
		"timestamp_ns": u.TimestampNs,
		"tier":         u.Tier,
		"payload":      json.RawMessage(payloadBytes),
		"payload_ref":  omitEmptyString(u.PayloadRef),
		"synthesized":  omitFalse(u.Synthesized),
	})
}

// UnmarshalJSON parses an uncommitted event, rejecting any input line that
// carries a commit_index field. This is the contract-violation detector
// named in spec §4.1: importers cannot set canonical order, and that must
// be structurally impossible, not merely discouraged.
func (u *Uncommitted) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("event: decode uncommitted line: %w", err)
	}
	if _, present := probe["commit_index"]; present {
		return &ContractViolationError{
			Kind:   "contract",
			Detail: "uncommitted event arrived with commit_index set",
		}
	}
	var raw struct {
		RunID       string          `json:"run_id"`
		EventID     string          `json:"event_id"`
		SourceID    string          `json:"source_id"`
		SourceSeq   *uint64         `json:"source_seq"`
		TimestampNs int64           `json:"timestamp_ns"`
		Tier        Tier            `json:"tier"`
		Payload     json.RawMessage `json:"payload"`
		PayloadRef  string          `json:"payload_ref"`
		Synthesized bool            `json:"synthesized"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event: decode uncommitted line: %w", err)
	}
	p, err := UnmarshalPayload(raw.Payload)
	if err != nil {
		return fmt.Errorf("event: decode uncommitted payload: %w", err)
	}
	u.RunID = raw.RunID
	u.EventID = raw.EventID
	u.SourceID = raw.SourceID
	u.SourceSeq = raw.SourceSeq
	u.TimestampNs = raw.TimestampNs
	u.Tier = raw.Tier
	u.Payload = p
	u.PayloadRef = raw.PayloadRef
	u.Synthesized = raw.Synthesized
	return nil
}

func omitEmptyString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func omitFalse(b bool) any {
	if !b {
		return nil
	}
	return b
}

// marshalWire writes fields named in order, skipping any whose resolved
// value is nil (the omitempty-equivalent for this hand-rolled encoder).
func marshalWire(order []string, values map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, key := range order {
		v, ok := values[key]
		if !ok || v == nil {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("event: marshal field %q: %w", key, err)
		}
		if string(b) == "null" {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
