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

// Package hud renders a terminal cockpit over internal/consumer's read-only
// views. It never reads the event log or state directly - everything it
// shows comes from a projection.ViewModel and an event.Committed slice,
// so the HUD can never show anything that is not also hashable truth.
package hud

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/projection"
)

// syntheticGlyph marks a row whose source_id was synthesized rather than
// observed - the HUD must never let a synthesized event masquerade as
// directly observed.
const syntheticGlyph = "~"

// Writer wraps an io.Writer, choosing a colorable sink and style when the
// target is a real terminal and a plain one otherwise.
type Writer struct {
	out io.Writer
	tty bool
}

// NewWriter inspects f (normally os.Stdout) and returns a Writer tuned for
// it: colorized output on an interactive TTY, plain ASCII otherwise.
func NewWriter(f *os.File) *Writer {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return &Writer{out: colorable.NewColorable(f), tty: tty}
}

// NewPlainWriter wraps an arbitrary io.Writer with no TTY detection - used
// for piping output to a file or a buffer in tests.
func NewPlainWriter(out io.Writer) *Writer {
	return &Writer{out: out, tty: false}
}

// RenderHeader prints the confession strip: degradation level, aggregation
// mode, queue pressure, and export safety state, always in full - never
// merely implied by an absent column.
func (w *Writer) RenderHeader(vm *projection.ViewModel) {
	t := table.NewWriter()
	t.SetOutputMirror(w.out)
	if w.tty {
		t.SetStyle(table.StyleColoredDark)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	t.AppendHeader(table.Row{"degradation", "aggregation", "bin_size", "queue_pressure", "tier_a_drops", "export_safety"})
	t.AppendRow(table.Row{
		vm.DegradationLevel,
		vm.AggregationMode,
		vm.BinSize,
		fmt.Sprintf("%.4f", float64(vm.QueuePressureE6)/1_000_000.0),
		vm.TierADrops,
		vm.ExportSafetyState,
	})
	t.Render()
}

// RenderEvents prints the given committed events in commit_index order,
// with a dedicated column distinguishing synthesized rows from observed
// ones - never a shared glyph that could be mistaken for a status icon.
func (w *Writer) RenderEvents(events []event.Committed) {
	t := table.NewWriter()
	t.SetOutputMirror(w.out)
	if w.tty {
		t.SetStyle(table.StyleColoredDark)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	t.AppendHeader(table.Row{"commit_index", "tier", "payload_type", "source_id", "synthesized"})
	for _, e := range events {
		payloadType := "offloaded"
		if e.Payload != nil {
			payloadType = string(e.Payload.Type())
		}
		synth := ""
		if e.Synthesized {
			synth = syntheticGlyph
		}
		t.AppendRow(table.Row{e.CommitIndex, string(e.Tier), payloadType, e.SourceID, synth})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "synthesized", Align: text.AlignCenter},
	})
	t.Render()
}
