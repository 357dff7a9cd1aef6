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

// Package importer defines the typed intake boundary every source-format
// reader implements: a lazy, in-order sequence of uncommitted events that
// must never set commit_index, never sort by timestamp, and must mark any
// field it infers rather than observed as synthesized.
package importer

import "github.com/yuan-cloud/vifei-suite-public/internal/event"

// Source yields uncommitted events in source order. Implementations must
// not reorder by timestamp and must not set fields they did not observe or
// infer without marking the event Synthesized.
type Source interface {
	// Next returns the next uncommitted event, or ok=false once the source
	// is exhausted. A non-nil error is terminal: the caller must stop
	// reading from this Source.
	Next() (u event.Uncommitted, ok bool, err error)
}
