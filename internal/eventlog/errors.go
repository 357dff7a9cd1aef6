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

package eventlog

import "fmt"

// AppendStallError is raised when an append cannot complete durably within
// the stall budget.
type AppendStallError struct {
	ElapsedMs int64
	LimitMs   int64
}

func (e *AppendStallError) Error() string {
	return fmt.Sprintf("append stall: elapsed %dms exceeds budget %dms", e.ElapsedMs, e.LimitMs)
}

// OversizedLineError is raised when a serialised line would exceed the
// maximum accepted line length.
type OversizedLineError struct {
	Size  int
	Limit int
}

func (e *OversizedLineError) Error() string {
	return fmt.Sprintf("oversized line: %d bytes exceeds limit %d", e.Size, e.Limit)
}

// BlobWriteFailError is raised when offloading a payload to the blob store
// fails or exceeds its fsync budget.
type BlobWriteFailError struct {
	Cause error
}

func (e *BlobWriteFailError) Error() string {
	return fmt.Sprintf("blob write failed: %v", e.Cause)
}

func (e *BlobWriteFailError) Unwrap() error { return e.Cause }

// SerializationFailError is raised when an outbound line fails to encode.
type SerializationFailError struct {
	Cause error
}

func (e *SerializationFailError) Error() string {
	return fmt.Sprintf("serialization failed: %v", e.Cause)
}

func (e *SerializationFailError) Unwrap() error { return e.Cause }
