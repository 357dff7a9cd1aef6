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

// Package derivedcache is an ancillary, rebuildable index over committed
// events, used only to accelerate filtered views (vifei view --filter). It
// is never consulted for truth and never participates in any hash; losing
// it is a performance regression, never a correctness one.
package derivedcache

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	commit_index INTEGER PRIMARY KEY,
	run_id       TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	tier         TEXT NOT NULL,
	payload_type TEXT NOT NULL,
	timestamp_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_tier ON events(tier);
CREATE INDEX IF NOT EXISTS idx_events_payload_type ON events(payload_type);
`

// Cache is a rebuildable SQLite-backed index over committed events.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path and ensures
// its schema exists. path may be ":memory:" for an ephemeral, test-only
// cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("derivedcache: open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("derivedcache: create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Reset drops and recreates the schema - used before a full rebuild from
// the log, since the cache is explicitly never truth and always safe to
// discard.
func (c *Cache) Reset() error {
	if _, err := c.db.Exec(`DROP TABLE IF EXISTS events`); err != nil {
		return fmt.Errorf("derivedcache: drop events table: %w", err)
	}
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("derivedcache: recreate schema: %w", err)
	}
	return nil
}

// Index records one committed event in the cache.
func (c *Cache) Index(e event.Committed) error {
	payloadType := "offloaded"
	if e.Payload != nil {
		payloadType = string(e.Payload.Type())
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO events (commit_index, run_id, source_id, tier, payload_type, timestamp_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		e.CommitIndex, e.RunID, e.SourceID, string(e.Tier), payloadType, e.TimestampNs,
	)
	if err != nil {
		return fmt.Errorf("derivedcache: index commit_index %d: %w", e.CommitIndex, err)
	}
	return nil
}

// Rebuild clears the cache and re-indexes every event in events, in order.
func (c *Cache) Rebuild(events []event.Committed) error {
	if err := c.Reset(); err != nil {
		return err
	}
	for _, e := range events {
		if err := c.Index(e); err != nil {
			return err
		}
	}
	return nil
}

// Filter is a set of optional equality constraints over the indexed fields.
type Filter struct {
	RunID       string
	Tier        string
	PayloadType string
}

// CommitIndices returns, in ascending order, the commit_index of every
// indexed event matching f. A zero-valued field in f is not constrained.
func (c *Cache) CommitIndices(f Filter) ([]uint64, error) {
	query := `SELECT commit_index FROM events WHERE 1=1`
	var args []any
	if f.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, f.RunID)
	}
	if f.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, f.Tier)
	}
	if f.PayloadType != "" {
		query += ` AND payload_type = ?`
		args = append(args, f.PayloadType)
	}
	query += ` ORDER BY commit_index ASC`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("derivedcache: query: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var idx uint64
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("derivedcache: scan row: %w", err)
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}
