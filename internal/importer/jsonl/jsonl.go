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

// Package jsonl is the reference importer.Source: a JSON-Lines fixture of
// uncommitted events, the shape the stress harness fixture and the §8 seed
// scenario fixtures use.
package jsonl

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/importer"
)

// Source reads uncommitted events from a JSON-Lines stream, one object per
// line. A line missing source_id gets a synthesized UUID so downstream
// per-source bookkeeping (skew tracking, sequence stats) always has a key -
// the synthesized_id itself is marked Synthesized so no reader mistakes it
// for an observed value.
type Source struct {
	scanner *bufio.Scanner
}

// New returns a Source reading from r.
func New(r io.Reader) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Source{scanner: scanner}
}

// Next implements importer.Source.
func (s *Source) Next() (event.Uncommitted, bool, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var u event.Uncommitted
		if err := u.UnmarshalJSON(line); err != nil {
			return event.Uncommitted{}, false, fmt.Errorf("jsonl: decode line: %w", err)
		}
		if u.SourceID == "" {
			u.SourceID = uuid.NewString()
			u.Synthesized = true
		}
		return u, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return event.Uncommitted{}, false, fmt.Errorf("jsonl: scan: %w", err)
	}
	return event.Uncommitted{}, false, nil
}

var _ importer.Source = (*Source)(nil)
