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

// Package eventlog is the sole owner of canonical order. Writer assigns
// commit_index, drives payload offload to the blob store, and appends one
// newline-terminated JSON line per event - grounded on the single-writer,
// whole-line-only append discipline described across the teacher's storage
// layer and on dwarri-gazette's append_fsm.go (an FSM-gated append path with
// the same "flush whole lines only" discipline).
package eventlog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/yuan-cloud/vifei-suite-public/internal/blobstore"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

const (
	// InlineThreshold is the largest UTF-8 serialised payload kept inline
	// before being offloaded to the blob store.
	InlineThreshold = 16 * 1024
	// MaxLineLength is the largest accepted serialised log line.
	MaxLineLength = 1024 * 1024
	// SkewToleranceNs is how far backward a source's timestamp may move
	// before a ClockSkewDetected event is emitted.
	SkewToleranceNs = 50 * int64(time.Millisecond)
	// AppendStallBudgetMs is the append-fsync stall budget.
	AppendStallBudgetMs = 250
	// BlobFsyncBudgetMs is the blob-write fsync budget.
	BlobFsyncBudgetMs = 1000
)

// Writer is the append-only log's sole writer. All append paths in the
// process funnel through one Writer instance for a given data directory;
// concurrent writers across processes are prevented by an advisory file
// lock (see Open).
type Writer struct {
	mu        sync.Mutex
	file      *os.File
	lock      *flock.Flock
	lockPath  string
	blobs     *blobstore.Store
	nextIndex uint64
	lastSeen  map[string]int64 // source_id -> last timestamp_ns observed
}

// Open opens (creating if necessary) the event log at path, truncating any
// trailing partial line left by a crashed prior writer - the honest-failure
// recovery path described in spec §9: a crash leaves the log consistent
// because writes are whole-line-only, but a reader (or the next writer) must
// still defend against a line that was flushed to the OS but never
// newline-terminated.
func Open(path string, blobs *blobstore.Store) (*Writer, error) {
	lockPath := path + ".lock"
	lk := flock.New(lockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("eventlog: acquire writer lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("eventlog: log at %q is already open for writing by another process", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		lk.Unlock()
		return nil, fmt.Errorf("eventlog: create log dir: %w", err)
	}

	nextIndex, lastSeen, err := recoverTail(path)
	if err != nil {
		lk.Unlock()
		return nil, fmt.Errorf("eventlog: recover tail: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		lk.Unlock()
		return nil, fmt.Errorf("eventlog: open log file: %w", err)
	}

	return &Writer{
		file:      f,
		lock:      lk,
		lockPath:  lockPath,
		blobs:     blobs,
		nextIndex: nextIndex,
		lastSeen:  lastSeen,
	}, nil
}

// Close flushes, fsyncs, and releases the writer lock. Guaranteed to be safe
// to call on every exit path, including after a failed Append.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	if w.file != nil {
		if err := w.file.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NextIndex reports the commit_index the next successful Append will use.
func (w *Writer) NextIndex() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextIndex
}

// Append commits u, returning the committed event plus, if the source's
// timestamp moved backward by more than SkewToleranceNs, a synthesized
// ClockSkewDetected event committed immediately after it. Order of results
// is commit order: callers must not reorder the returned slice.
func (w *Writer) Append(u event.Uncommitted) ([]event.Committed, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	primary, err := w.appendLocked(u)
	if err != nil {
		return nil, err
	}
	out := []event.Committed{primary}

	if u.SourceID != "" {
		if last, ok := w.lastSeen[u.SourceID]; ok {
			delta := last - u.TimestampNs
			if delta > SkewToleranceNs {
				skew, err := w.appendLocked(event.Uncommitted{
					RunID:       u.RunID,
					EventID:     event.DefaultEventID(u.SourceID, uint64(primary.CommitIndex)) + ":skew",
					SourceID:    u.SourceID,
					TimestampNs: last,
					Tier:        event.TierA,
					Synthesized: true,
					Payload: event.ClockSkewDetected{
						SourceID: u.SourceID,
						DeltaNs:  delta,
					},
				})
				if err != nil {
					return out, err
				}
				out = append(out, skew)
			}
		}
		w.lastSeen[u.SourceID] = u.TimestampNs
	}

	return out, nil
}

// appendLocked performs one raw append: assign index, offload if needed,
// encode, size-check, write, fsync per Tier A. Caller holds w.mu.
func (w *Writer) appendLocked(u event.Uncommitted) (event.Committed, error) {
	committed := event.Committed{
		CommitIndex: w.nextIndex,
		RunID:       u.RunID,
		EventID:     u.EventID,
		SourceID:    u.SourceID,
		SourceSeq:   u.SourceSeq,
		TimestampNs: u.TimestampNs,
		Tier:        u.Tier,
		Payload:     u.Payload,
		PayloadRef:  u.PayloadRef,
		Synthesized: u.Synthesized,
	}
	if committed.EventID == "" {
		seq := uint64(0)
		if u.SourceSeq != nil {
			seq = *u.SourceSeq
		}
		committed.EventID = event.DefaultEventID(u.SourceID, seq)
	}

	if committed.Payload != nil && committed.PayloadRef == "" {
		payloadBytes, err := event.MarshalPayload(committed.Payload)
		if err != nil {
			return event.Committed{}, &SerializationFailError{Cause: err}
		}
		if len(payloadBytes) > InlineThreshold {
			start := time.Now()
			digest, _, err := w.blobs.Put(bytes.NewReader(payloadBytes))
			if err != nil {
				return event.Committed{}, &BlobWriteFailError{Cause: err}
			}
			if ms := time.Since(start).Milliseconds(); ms > BlobFsyncBudgetMs {
				return event.Committed{}, &BlobWriteFailError{Cause: fmt.Errorf("blob fsync took %dms, budget %dms", ms, BlobFsyncBudgetMs)}
			}
			committed.PayloadRef = digest
			committed.Payload = nil
		}
	}

	line, err := committed.MarshalJSON()
	if err != nil {
		return event.Committed{}, &SerializationFailError{Cause: err}
	}
	if len(line) > MaxLineLength {
		return event.Committed{}, &OversizedLineError{Size: len(line), Limit: MaxLineLength}
	}
	line = append(line, '\n')

	start := time.Now()
	if _, err := w.file.Write(line); err != nil {
		return event.Committed{}, fmt.Errorf("eventlog: write line: %w", err)
	}
	if committed.Tier == event.TierA {
		if err := w.file.Sync(); err != nil {
			return event.Committed{}, fmt.Errorf("eventlog: fsync: %w", err)
		}
	}
	if ms := time.Since(start).Milliseconds(); ms > AppendStallBudgetMs {
		return event.Committed{}, &AppendStallError{ElapsedMs: ms, LimitMs: AppendStallBudgetMs}
	}

	w.nextIndex++
	return committed, nil
}
