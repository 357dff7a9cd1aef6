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

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/nxadm/tail"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

// recoverTail scans an existing log file (if any) to determine the next
// commit_index, the per-source last-seen timestamp map, and truncates any
// trailing partial line - the honest-failure recovery path from spec §9.
// Readers opening the log independently perform the same truncation-aware
// scan (see Reader below) rather than trusting the file to always end
// cleanly.
func recoverTail(path string) (nextIndex uint64, lastSeen map[string]int64, err error) {
	lastSeen = map[string]int64{}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, nil, fmt.Errorf("open for recovery: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, nil, fmt.Errorf("stat: %w", err)
	}
	if info.Size() == 0 {
		return 0, lastSeen, nil
	}

	var validEnd int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength+4096)
	var offset int64
	var lastIndex int64 = -1
	for scanner.Scan() {
		line := scanner.Bytes()
		lineLen := int64(len(line)) + 1 // + newline
		var c event.Committed
		if err := c.UnmarshalJSON(line); err != nil {
			// Stop at the first line that doesn't parse: either a trailing
			// partial line from a crash, or corruption. Either way, we do
			// not trust anything past this point.
			break
		}
		offset += lineLen
		lastIndex = int64(c.CommitIndex)
		validEnd = offset
		lastSeen[c.SourceID] = c.TimestampNs
	}
	if err := scanner.Err(); err != nil && err != bufio.ErrTooLong {
		return 0, nil, fmt.Errorf("scan log: %w", err)
	}

	if validEnd < info.Size() {
		if err := f.Truncate(validEnd); err != nil {
			return 0, nil, fmt.Errorf("truncate trailing partial line: %w", err)
		}
	}

	return uint64(lastIndex + 1), lastSeen, nil
}

// Reader iterates committed events in commit_index order from a growing,
// append-only log. Readers never hold the writer lock and only ever open
// the file read-only, matching §5's reader-concurrency contract.
type Reader struct {
	path string
}

// NewReader returns a Reader over the log at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// All reads every well-formed committed event currently in the log, in
// commit_index order, stopping cleanly at the first malformed or trailing
// partial line rather than erroring the whole read - a reader must never
// observe a partial line, so it simply doesn't go past one.
func (r *Reader) All() ([]event.Committed, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("eventlog: open for read: %w", err)
	}
	defer f.Close()

	var out []event.Committed
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength+4096)
	for scanner.Scan() {
		var c event.Committed
		if err := c.UnmarshalJSON(scanner.Bytes()); err != nil {
			break
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("eventlog: scan: %w", err)
	}
	return out, nil
}

// Follow streams committed events as they are appended, starting from the
// current end of file, delivering each parsed event on the returned channel
// until ctx is done. Built on github.com/nxadm/tail, the teacher pack's
// tail-following dependency, matching §5's "reader I/O...tail-following".
func (r *Reader) Follow(stop <-chan struct{}) (<-chan event.Committed, <-chan error) {
	out := make(chan event.Committed)
	errc := make(chan error, 1)

	t, err := tail.TailFile(r.path, tail.Config{
		Follow:   true,
		ReOpen:   false,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		errc <- fmt.Errorf("eventlog: tail: %w", err)
		close(out)
		return out, errc
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-stop:
				_ = t.Stop()
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					errc <- line.Err
					continue
				}
				raw := bytes.TrimSpace([]byte(line.Text))
				if len(raw) == 0 {
					continue
				}
				var c event.Committed
				if err := c.UnmarshalJSON(raw); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-stop:
					_ = t.Stop()
					return
				}
			}
		}
	}()

	return out, errc
}
