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

// Package harness drives the full pipeline against a fixture and emits the
// proof artifacts that let two runs of the same fixture be compared byte
// for byte: metrics.json, viewmodel.hash, ansi.capture, timetravel.capture.
package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/yuan-cloud/vifei-suite-public/internal/blobstore"
	"github.com/yuan-cloud/vifei-suite-public/internal/checkpoint"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
	"github.com/yuan-cloud/vifei-suite-public/internal/hud"
	"github.com/yuan-cloud/vifei-suite-public/internal/importer/jsonl"
	"github.com/yuan-cloud/vifei-suite-public/internal/projection"
	"github.com/yuan-cloud/vifei-suite-public/internal/reducer"
)

// DegradationTransition mirrors one committed PolicyDecision event.
type DegradationTransition struct {
	FromLevel       string `json:"from_level"`
	ToLevel         string `json:"to_level"`
	Trigger         string `json:"trigger"`
	QueuePressureE6 uint64 `json:"queue_pressure"`
}

// Metrics is the run's metrics.json payload.
type Metrics struct {
	ProjectionInvariantsVersion string                   `json:"projection_invariants_version"`
	EventCountTotal             uint64                   `json:"event_count_total"`
	TierADrops                  uint64                   `json:"tier_a_drops"`
	MaxDegradationLevel         string                   `json:"max_degradation_level"`
	DegradationLevelFinal       string                   `json:"degradation_level_final"`
	DegradationTransitions      []DegradationTransition  `json:"degradation_transitions"`
	AggregationMode             string                   `json:"aggregation_mode"`
	BinSize                     uint64                   `json:"bin_size"`
	QueuePressureE6             uint64                   `json:"queue_pressure"`
	ExportSafetyState           string                   `json:"export_safety_state"`
}

// SeekPoint is one timetravel.capture entry.
type SeekPoint struct {
	CommitIndex   uint64 `json:"commit_index"`
	StateHash     string `json:"state_hash"`
	ViewModelHash string `json:"viewmodel_hash"`
}

// TimeTravelCapture is the run's timetravel.capture payload.
type TimeTravelCapture struct {
	ProjectionInvariantsVersion string      `json:"projection_invariants_version"`
	SeekPoints                  []SeekPoint `json:"seek_points"`
}

// degradationRank orders levels for MaxDegradationLevel tracking; an
// unrecognised level never outranks a known one.
var degradationRank = map[string]int{"L0": 0, "L1": 1, "L2": 2, "L3": 3, "L4": 4, "L5": 5}

// Result bundles every proof artifact one Run produces.
type Result struct {
	Metrics       *Metrics
	ViewModelHash string
	AnsiCapture   string
	TimeTravel    *TimeTravelCapture
}

// Run drives fixturePath through the pipeline rooted at dataDir, folding
// every committed event into State, checkpointing on the usual interval,
// and recording a timetravel seek point at each checkpoint boundary plus
// one final seek point at the last committed event.
func Run(ctx context.Context, fixturePath, dataDir string) (*Result, error) {
	blobs, err := blobstore.New(dataDir+"/blobs", false)
	if err != nil {
		return nil, fmt.Errorf("harness: open blob store: %w", err)
	}
	w, err := eventlog.Open(dataDir+"/events.jsonl", blobs)
	if err != nil {
		return nil, fmt.Errorf("harness: open event log: %w", err)
	}
	defer w.Close()

	ckpt, err := checkpoint.New(dataDir)
	if err != nil {
		return nil, fmt.Errorf("harness: open checkpoint manager: %w", err)
	}

	f, err := os.Open(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("harness: open fixture %q: %w", fixturePath, err)
	}
	defer f.Close()

	src := jsonl.New(f)
	state := reducer.New()
	inv := projection.Default()

	metrics := &Metrics{
		ProjectionInvariantsVersion: inv.Version,
		MaxDegradationLevel:         "L0",
	}
	travel := &TimeTravelCapture{ProjectionInvariantsVersion: inv.Version}

	for {
		u, ok, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("harness: read fixture: %w", err)
		}
		if !ok {
			break
		}
		committed, err := w.Append(u)
		if err != nil {
			return nil, fmt.Errorf("harness: append event: %w", err)
		}
		for _, c := range committed {
			reducer.ReduceInPlace(state, c)
			if pd, ok := c.Payload.(event.PolicyDecision); ok {
				metrics.DegradationTransitions = append(metrics.DegradationTransitions, DegradationTransition{
					FromLevel:       pd.FromLevel,
					ToLevel:         pd.ToLevel,
					Trigger:         pd.Trigger,
					QueuePressureE6: pd.QueuePressureE6,
				})
				if degradationRank[pd.ToLevel] > degradationRank[metrics.MaxDegradationLevel] {
					metrics.MaxDegradationLevel = pd.ToLevel
				}
			}

			if checkpoint.ShouldCheckpoint(c.CommitIndex) {
				if err := ckpt.Write(c.CommitIndex, state); err != nil {
					return nil, fmt.Errorf("harness: checkpoint at %d: %w", c.CommitIndex, err)
				}
				if sp, err := seekPoint(c.CommitIndex, state, inv); err != nil {
					return nil, err
				} else {
					travel.SeekPoints = append(travel.SeekPoints, sp)
				}
			}
		}
	}

	metrics.EventCountTotal = state.EventCountTotal
	metrics.TierADrops = state.TierADrops
	metrics.DegradationLevelFinal = state.LastDegradationLevel
	metrics.AggregationMode = "none"
	metrics.ExportSafetyState = projection.ExportSafetyUnknown
	if state.LastPolicyDecision != nil {
		metrics.QueuePressureE6 = state.LastPolicyDecision.QueuePressureE6
	}

	ctl := projection.ControllerView{
		AggregationMode:   metrics.AggregationMode,
		ExportSafetyState: metrics.ExportSafetyState,
	}
	vm := projection.Project(state, ctl, inv)
	vmHash, err := vm.HashHex()
	if err != nil {
		return nil, fmt.Errorf("harness: hash final viewmodel: %w", err)
	}

	if state.EventCountTotal > 0 {
		finalSeek, err := seekPoint(state.LastCommitIndex, state, inv)
		if err != nil {
			return nil, err
		}
		finalSeek.ViewModelHash = vmHash
		travel.SeekPoints = append(travel.SeekPoints, finalSeek)
	}

	ansi, err := renderAnsiCapture(vm, vmHash)
	if err != nil {
		return nil, err
	}

	return &Result{
		Metrics:       metrics,
		ViewModelHash: vmHash,
		AnsiCapture:   ansi,
		TimeTravel:    travel,
	}, nil
}

// seekPoint hashes state as it stands at commitIndex, projecting a
// viewmodel with the default (no backpressure) controller view - the
// harness itself never drives the backpressure ladder, it only reports
// PolicyDecision events the fixture's own events produced.
func seekPoint(commitIndex uint64, state *reducer.State, inv projection.Invariants) (SeekPoint, error) {
	stateHash, err := state.HashHex()
	if err != nil {
		return SeekPoint{}, fmt.Errorf("harness: hash state at %d: %w", commitIndex, err)
	}
	vm := projection.Project(state, projection.ControllerView{}, inv)
	vmHash, err := vm.HashHex()
	if err != nil {
		return SeekPoint{}, fmt.Errorf("harness: hash viewmodel at %d: %w", commitIndex, err)
	}
	return SeekPoint{CommitIndex: commitIndex, StateHash: stateHash, ViewModelHash: vmHash}, nil
}

func renderAnsiCapture(vm *projection.ViewModel, vmHash string) (string, error) {
	var buf bytes.Buffer
	w := hud.NewPlainWriter(&buf)
	w.RenderHeader(vm)
	fmt.Fprintf(&buf, "viewmodel_hash: %s\n", vmHash)
	return buf.String(), nil
}

// VerifyReplay re-folds events from scratch and confirms the resulting
// state hash matches want, running concurrently with whatever other pure
// reader the caller supplies via concurrentRead (e.g. ansi re-rendering) -
// both are read-only over the same committed suffix, so they may safely
// run side by side.
func VerifyReplay(ctx context.Context, events []event.Committed, want string, concurrentRead func() error) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := reducer.ReplayAll(events)
		if err != nil {
			return fmt.Errorf("harness: replay: %w", err)
		}
		got, err := state.HashHex()
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("harness: replay state_hash mismatch: got %s want %s", got, want)
		}
		return nil
	})
	if concurrentRead != nil {
		g.Go(concurrentRead)
	}
	return g.Wait()
}
