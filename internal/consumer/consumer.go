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

// Package consumer exposes read-only views over the truth pipeline: the
// committed event stream, State, the ViewModel, and backpressure state.
// Every interface here is read-only by construction - there is no method
// anywhere in this package that can mutate truth.
package consumer

import (
	"github.com/yuan-cloud/vifei-suite-public/internal/backpressure"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
	"github.com/yuan-cloud/vifei-suite-public/internal/projection"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

// EventStream is a read-only view of the committed event log, by
// commit_index.
type EventStream interface {
	All() ([]event.Committed, error)
	Follow(stop <-chan struct{}) (<-chan event.Committed, <-chan error)
}

// StateView is a read-only, hashable view of the reducer's fold result.
type StateView interface {
	Hash() ([32]byte, error)
	HashHex() (string, error)
}

// ViewModelView is a read-only, hashable view of the projection's output.
type ViewModelView interface {
	Hash() ([32]byte, error)
	HashHex() (string, error)
}

// BackpressureView is a read-only view of the controller's last committed
// PolicyDecision.
type BackpressureView interface {
	Level() backpressure.Level
	View() (aggregationMode string, binSize uint64, queuePressureE6 uint64, exportSafetyState string)
}

// Bundle wires the four read-only views together for a consumer (the HUD,
// a CLI subcommand, the stress harness) that wants them as one unit.
type Bundle struct {
	Events       EventStream
	State        StateView
	ViewModel    ViewModelView
	Backpressure BackpressureView
}

var (
	_ EventStream      = (*eventlog.Reader)(nil)
	_ StateView        = (*reducer.State)(nil)
	_ ViewModelView    = (*projection.ViewModel)(nil)
	_ BackpressureView = (*backpressure.Controller)(nil)
)
