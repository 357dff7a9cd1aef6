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

package shareexport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuan-cloud/vifei-suite-public/internal/blobstore"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
)

// RefusalSchema tags the on-disk shape of a RefusalReport.
const RefusalSchema = "refusal-v0.1"

// ScannerVersion tags the scanning logic (rule walking, entropy check,
// dot-path derivation) that produced a report, independent of whichever
// rule pack content was loaded.
const ScannerVersion = "shareexport-scanner-v0.1"

// BlockedItem is one secret-shaped finding at one field path in one event.
// BlobRef is non-nil when the finding was made in an offloaded payload
// blob rather than an inline payload.
type BlockedItem struct {
	EventID        string  `json:"event_id"`
	FieldPath      string  `json:"field_path"`
	MatchedPattern string  `json:"matched_pattern"`
	BlobRef        *string `json:"blob_ref"`
}

// RefusalReport is the scanner's verdict over a run: Safe is false if and
// only if BlockedItems is non-empty.
type RefusalReport struct {
	ReportVersion    string        `json:"report_version"`
	EventlogPath     string        `json:"eventlog_path"`
	BlockedItems     []BlockedItem `json:"blocked_items"`
	ScanTimestampUTC string        `json:"scan_timestamp_utc"`
	ScannerVersion   string        `json:"scanner_version"`
}

// Scanner applies a RulePack to a run's committed events, including any
// blobs their payloads were offloaded into.
type Scanner struct {
	pack  *RulePack
	blobs *blobstore.Store
}

// NewScanner returns a Scanner bound to pack, resolving offloaded payload
// blobs through blobs. blobs may be nil for a run known never to offload;
// Scan then errors if it encounters a payload_ref it cannot resolve.
func NewScanner(pack *RulePack, blobs *blobstore.Store) *Scanner {
	return &Scanner{pack: pack, blobs: blobs}
}

// Scan fans out one goroutine per event via errgroup. Each resolves the
// event's payload - inline, or read back from the blob store when it was
// offloaded - serializes it to its field set, and walks that field set by
// dot path, testing every string leaf against the rule pack plus the
// entropy check. Findings accumulate under a mutex and sort once at the
// end so the report is deterministic regardless of goroutine completion
// order.
func (s *Scanner) Scan(ctx context.Context, eventlogPath string, events []event.Committed) (*RefusalReport, error) {
	var (
		mu    sync.Mutex
		items []BlockedItem
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range events {
		e := e
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			found, err := s.scanEvent(e)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return nil
			}
			mu.Lock()
			items = append(items, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].EventID != items[j].EventID {
			return items[i].EventID < items[j].EventID
		}
		if items[i].FieldPath != items[j].FieldPath {
			return items[i].FieldPath < items[j].FieldPath
		}
		return items[i].MatchedPattern < items[j].MatchedPattern
	})

	return &RefusalReport{
		ReportVersion:    RefusalSchema,
		EventlogPath:     eventlogPath,
		BlockedItems:     items,
		ScanTimestampUTC: time.Now().UTC().Format(time.RFC3339),
		ScannerVersion:   ScannerVersion,
	}, nil
}

// scanEvent resolves e's payload bytes - inline or offloaded - and returns
// every blocked item found in it.
func (s *Scanner) scanEvent(e event.Committed) ([]BlockedItem, error) {
	var body []byte
	var blobRef *string

	switch {
	case e.Payload != nil:
		b, err := event.MarshalPayload(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("shareexport: marshal payload for event %s: %w", e.EventID, err)
		}
		body = b
	case e.PayloadRef != "":
		if s.blobs == nil {
			return nil, fmt.Errorf("shareexport: event %s payload offloaded to blob %s but no blob store is configured", e.EventID, e.PayloadRef)
		}
		rc, err := s.blobs.Get(e.PayloadRef)
		if err != nil {
			return nil, fmt.Errorf("shareexport: open blob %s for event %s: %w", e.PayloadRef, e.EventID, err)
		}
		b, readErr := io.ReadAll(rc)
		closeErr := rc.Close()
		if readErr != nil {
			return nil, fmt.Errorf("shareexport: read blob %s for event %s: %w", e.PayloadRef, e.EventID, readErr)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("shareexport: close blob %s for event %s: %w", e.PayloadRef, e.EventID, closeErr)
		}
		body = b
		ref := e.PayloadRef
		blobRef = &ref
	default:
		return nil, nil
	}

	fields, err := payloadFields(body)
	if err != nil {
		return nil, fmt.Errorf("shareexport: decode payload fields for event %s: %w", e.EventID, err)
	}

	var items []BlockedItem
	walkFields("payload", fields, func(path, text string) {
		for _, rule := range s.scanText(text) {
			items = append(items, BlockedItem{
				EventID:        e.EventID,
				FieldPath:      path,
				MatchedPattern: rule,
				BlobRef:        blobRef,
			})
		}
	})
	return items, nil
}

// payloadFields decodes a MarshalPayload envelope back into the field set
// the dot-path walk should address. The "type" discriminant is never
// itself scanned. A Generic payload's Data is hoisted to replace the
// envelope entirely: Data carries the original external event's own
// fields verbatim, so "payload.args" addresses a key inside Data directly
// rather than via an internal "data" wrapper the importer added.
func payloadFields(body []byte) (map[string]any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	delete(raw, "type")
	if event.PayloadType(env.Type) == event.PayloadGeneric {
		if data, ok := raw["data"].(map[string]any); ok {
			return data, nil
		}
		return map[string]any{}, nil
	}
	return raw, nil
}

// walkFields visits every string leaf reachable from v, calling visit with
// its dot path rooted at prefix. Object keys are visited in sorted order so
// the walk itself is deterministic; array elements are indexed.
func walkFields(prefix string, v any, visit func(path, text string)) {
	switch val := v.(type) {
	case string:
		visit(prefix, val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkFields(prefix+"."+k, val[k], visit)
		}
	case []any:
		for i, item := range val {
			walkFields(fmt.Sprintf("%s[%d]", prefix, i), item, visit)
		}
	}
}

// scanText returns the name of every rule (built-in or entropy) that fires
// against text.
func (s *Scanner) scanText(text string) []string {
	var out []string
	for _, r := range s.pack.Rules {
		if r.compiled == nil {
			continue
		}
		if r.compiled.MatchString(text) {
			out = append(out, r.Name)
		}
	}
	if len(entropyFindings(text, s.pack.EntropyThreshold)) > 0 {
		out = append(out, "high_entropy_literal")
	}
	return out
}
