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

package canon

import (
	"encoding/json"
	"fmt"
	"reflect"

	"lukechampine.com/blake3"
)

// ErrFloatInHash is returned by Marshal when a bare float reaches the
// canonical encoder. Floats are allowed in event payloads but forbidden in
// any structure that participates in a canonical hash - quantise them to a
// fixed-precision integer first (see QuantiseUnit).
var ErrFloatInHash = fmt.Errorf("canon: float value is forbidden in a hashed structure; quantise first")

// Marshal produces the canonical byte representation of v: sorted-key JSON
// objects (via encoding/json for struct/slice/scalar values, and via
// SortedMap.MarshalJSON for dynamic maps), with no floating-point values
// anywhere in the tree.
func Marshal(v any) ([]byte, error) {
	if err := rejectFloats(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// rejectFloats walks v and fails if any float32/float64 is present. Structs
// are walked field by field; maps must be canon.SortedMap (enforced by
// refusing any other map kind outright, since a native Go map would
// reintroduce insertion-order nondeterminism even if key order happens to be
// stable across a single process run).
func rejectFloats(rv reflect.Value) error {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return ErrFloatInHash
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return rejectFloats(rv.Elem())
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(SortedMap{}) {
			// SortedMap's own MarshalJSON recurses through Marshal (and so
			// through rejectFloats) for every value it holds; walking its
			// unexported btree field here would add nothing.
			return nil
		}
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Field(i)
			if !f.CanInterface() {
				continue
			}
			if err := rejectFloats(f); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := rejectFloats(rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		// A bare Go map reaching the canonical encoder is itself the defect
		// this package exists to prevent: use SortedMap instead.
		return fmt.Errorf("canon: bare map type %s is forbidden; use canon.SortedMap", rv.Type())
	}
	return nil
}

// Hash returns the BLAKE3 digest of domainTag || canonicalBytes, matching
// the spec's state_hash / viewmodel_hash construction:
// BLAKE3(version_string || canonical_bytes(value)).
func Hash(domainTag string, v any) ([32]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	h := blake3.New(32, nil)
	h.Write([]byte(domainTag))
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// HashHex is Hash, hex-encoded lowercase - the form every on-disk artifact
// (viewmodel.hash, bundle_hash, payload_ref) actually stores.
func HashHex(domainTag string, v any) (string, error) {
	sum, err := Hash(domainTag, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sum[:]), nil
}
