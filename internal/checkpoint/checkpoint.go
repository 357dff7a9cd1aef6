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

// Package checkpoint writes and loads periodic, versioned State snapshots so
// a long-running consumer can resume a replay from a recent commit_index
// rather than folding the whole log from zero every time.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
	"github.com/yuan-cloud/vifei-suite-public/internal/mathutil"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

// Interval is the number of committed events between checkpoints.
const Interval = 5000

// Snapshot is the on-disk checkpoint shape: reducer_version, the
// commit_index the snapshot was taken at, the canonical State itself, and
// the state_hash that identifies it, so a checkpoint can be addressed by
// the same hash a replay would independently arrive at.
type Snapshot struct {
	ReducerVersion  string         `json:"reducer_version"`
	LastCommitIndex uint64         `json:"last_commit_index"`
	StateHash       string         `json:"state_hash"`
	State           *reducer.State `json:"state"`
}

// Manager writes checkpoints to <data_dir>/checkpoints and loads them back.
type Manager struct {
	dir string
}

// New returns a Manager rooted at dataDir/checkpoints, creating the
// directory if necessary.
func New(dataDir string) (*Manager, error) {
	dir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "checkpoint: create checkpoint dir")
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) pathFor(commitIndex uint64) string {
	return filepath.Join(m.dir, fmt.Sprintf("%d.ckpt", commitIndex))
}

// EventsUntilNext reports how many more events must commit, after
// eventCountTotal, before the next checkpoint boundary - informational only,
// for an operator-facing progress line, never part of a hashed structure.
func EventsUntilNext(eventCountTotal uint64) int {
	batch := mathutil.CeilDiv(int(eventCountTotal+1), Interval)
	nextBoundary := uint64(batch) * Interval
	return int(nextBoundary - eventCountTotal)
}

// ShouldCheckpoint reports whether the event just committed at commitIndex
// falls on a checkpoint boundary (every Interval events, 1-indexed by count:
// commit_index 4999, 9999, ... since commit_index is 0-based).
func ShouldCheckpoint(commitIndex uint64) bool {
	return (commitIndex+1)%Interval == 0
}

// Write snapshots state at commitIndex, writing via a temp file and rename
// so a crash mid-write never leaves a partially-written checkpoint on disk -
// the same atomic-write discipline the blob store and event log use.
func (m *Manager) Write(commitIndex uint64, state *reducer.State) error {
	stateHash, err := state.HashHex()
	if err != nil {
		return errors.Wrap(err, "checkpoint: hash state")
	}
	snap := Snapshot{
		ReducerVersion:  reducer.Version,
		LastCommitIndex: commitIndex,
		StateHash:       stateHash,
		State:           state,
	}
	b, err := canon.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "checkpoint: marshal snapshot")
	}

	tmp, err := os.CreateTemp(m.dir, "ckpt-*.tmp")
	if err != nil {
		return errors.Wrap(err, "checkpoint: create temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: close temp file")
	}
	if err := os.Rename(tmpPath, m.pathFor(commitIndex)); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "checkpoint: rename into place")
	}
	return nil
}

// Load reads the checkpoint at exactly commitIndex.
func (m *Manager) Load(commitIndex uint64) (*Snapshot, error) {
	b, err := os.ReadFile(m.pathFor(commitIndex))
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: read snapshot")
	}
	var snap Snapshot
	snap.State = reducer.New()
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, errors.Wrap(err, "checkpoint: decode snapshot")
	}
	return &snap, nil
}

// Latest returns the highest commit_index for which a checkpoint exists, or
// ok=false if none have been written yet.
func (m *Manager) Latest() (commitIndex uint64, ok bool, err error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, false, errors.Wrap(err, "checkpoint: list checkpoint dir")
	}
	var indices []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".ckpt") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".ckpt"), 10, 64)
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	if len(indices) == 0 {
		return 0, false, nil
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices[len(indices)-1], true, nil
}

// Prune removes all but the keep most recent checkpoints.
//
// TODO: not wired into cmd/vifei or the stress harness. Checkpoint garbage
// collection is explicitly out of scope for this version (spec.md marks it
// "not required for v0.1"); this method exists so a future release can wire
// it without redesigning the on-disk layout.
func (m *Manager) Prune(keep int) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return errors.Wrap(err, "checkpoint: list checkpoint dir")
	}
	var indices []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".ckpt") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".ckpt"), 10, 64)
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] > indices[j] })
	if keep < 0 {
		keep = 0
	}
	if len(indices) <= keep {
		return nil
	}
	for _, idx := range indices[keep:] {
		if err := os.Remove(m.pathFor(idx)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "checkpoint: remove stale checkpoint %d", idx)
		}
	}
	return nil
}
