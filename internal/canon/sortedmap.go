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

// Package canon provides the canonical, hash-stable encoding used for
// blobs, State, Checkpoint, and ViewModel. Its one rule: nothing with
// insertion-order-dependent iteration ever reaches a hash. Dynamic-key
// maps are backed by github.com/tidwall/btree so that key order is a
// structural property of the type rather than an accident of range order.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/btree"
)

// SortedMap is a string-keyed map whose iteration and JSON encoding are
// always in sorted-key order. It is the only acceptable container for
// dynamic (caller-controlled) keys anywhere in committed truth, State, or
// ViewModel - see spec invariant "Dynamic-key maps in payloads must be
// sorted-container typed, never arbitrary insertion-ordered maps."
type SortedMap struct {
	tr *btree.Map[string, any]
}

// NewSortedMap returns an empty SortedMap.
func NewSortedMap() *SortedMap {
	tr := &btree.Map[string, any]{}
	return &SortedMap{tr: tr}
}

// Set stores value under key, replacing any existing value.
func (m *SortedMap) Set(key string, value any) {
	if m.tr == nil {
		m.tr = &btree.Map[string, any]{}
	}
	m.tr.Set(key, value)
}

// Get returns the value stored under key, if any.
func (m *SortedMap) Get(key string) (any, bool) {
	if m.tr == nil {
		return nil, false
	}
	return m.tr.Get(key)
}

// Len returns the number of entries.
func (m *SortedMap) Len() int {
	if m.tr == nil {
		return 0
	}
	return m.tr.Len()
}

// Keys returns the keys in sorted order.
func (m *SortedMap) Keys() []string {
	if m.tr == nil {
		return nil
	}
	keys := make([]string, 0, m.tr.Len())
	m.tr.Scan(func(k string, _ any) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Range visits entries in sorted-key order, stopping early if fn returns false.
func (m *SortedMap) Range(fn func(key string, value any) bool) {
	if m.tr == nil {
		return
	}
	m.tr.Scan(fn)
}

// MarshalJSON writes the map as a JSON object with keys in sorted order.
func (m *SortedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var encErr error
	m.Range(func(k string, v any) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			encErr = err
			return false
		}
		vb, err := Marshal(v)
		if err != nil {
			encErr = err
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON populates the map from a JSON object, rejecting floats per
// the canonical-hash float ban (see Quantise in quantise.go for the one
// sanctioned path a float can take into committed truth).
func (m *SortedMap) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("sortedmap: decode object: %w", err)
	}
	m.tr = &btree.Map[string, any]{}
	for k, v := range raw {
		var val any
		d := json.NewDecoder(bytes.NewReader(v))
		d.UseNumber()
		if err := d.Decode(&val); err != nil {
			return fmt.Errorf("sortedmap: decode key %q: %w", k, err)
		}
		m.tr.Set(k, val)
	}
	return nil
}
