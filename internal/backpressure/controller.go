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

// Package backpressure implements the L0..L5 degradation ladder: it watches
// queue pressure, decides when to escalate or recover, and commits every
// transition as a Tier A PolicyDecision event before the new level becomes
// observable to any reader.
package backpressure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yuan-cloud/vifei-suite-public/internal/canon"
	"github.com/yuan-cloud/vifei-suite-public/internal/event"
	"github.com/yuan-cloud/vifei-suite-public/internal/eventlog"
)

// Level is one rung of the ladder.
type Level string

const (
	L0Normal        Level = "L0"
	L1Aggregate     Level = "L1"
	L2Collapse      Level = "L2"
	L3ReduceFidelity Level = "L3"
	L4FreezeUI      Level = "L4"
	L5SafeStop      Level = "L5"
)

var order = []Level{L0Normal, L1Aggregate, L2Collapse, L3ReduceFidelity, L4FreezeUI, L5SafeStop}

func rank(l Level) int {
	for i, lvl := range order {
		if lvl == l {
			return i
		}
	}
	return 0
}

const (
	raiseThreshold = 0.80
	clearThreshold = 0.50
	dwell          = 2 * time.Second
	tickPeriod     = 100 * time.Millisecond
)

// Appender is the subset of *eventlog.Writer the controller needs to commit
// a PolicyDecision. Satisfied by *eventlog.Writer; narrowed here so tests
// can substitute a fake without standing up a real log.
type Appender interface {
	Append(u event.Uncommitted) ([]event.Committed, error)
}

// Controller tracks the ladder level and decides transitions. It is not
// pure: it commits events and consults the wall clock for dwell tracking,
// which is why it lives outside internal/reducer.
type Controller struct {
	mu sync.Mutex

	writer   Appender
	runID    string
	sourceID string
	now      func() time.Time

	level           Level
	belowClearSince *time.Time

	aggregationMode   string
	binSize           uint64
	queuePressureE6   uint64
	exportSafetyState string
}

// New returns a Controller at L0, ready to evaluate pressure readings and
// commit transitions via writer.
func New(writer Appender, runID, sourceID string) *Controller {
	return &Controller{
		writer:            writer,
		runID:             runID,
		sourceID:          sourceID,
		now:               time.Now,
		level:             L0Normal,
		aggregationMode:   "none",
		exportSafetyState: "UNKNOWN",
	}
}

// Level returns the current ladder level.
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// View returns the presentation-facing fields the projection needs, per the
// design decision that aggregation_mode/bin_size live here, not in State.
func (c *Controller) View() (aggregationMode string, binSize uint64, queuePressureE6 uint64, exportSafetyState string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggregationMode, c.binSize, c.queuePressureE6, c.exportSafetyState
}

// Evaluate computes queue_pressure = clamp(depth/capacity, 0, 1) and applies
// one step of the ladder transition rule: escalate one level at a time at
// ≥0.80, recover one level at a time after a continuous 2s dwell at ≤0.50.
// A transition commits a Tier A PolicyDecision before returning.
func (c *Controller) Evaluate(depth, capacity int) error {
	pressure := clamp01(ratio(depth, capacity))
	pressureE6 := canon.QuantiseUnit(pressure)

	c.mu.Lock()
	current := c.level
	c.queuePressureE6 = pressureE6
	now := c.now()

	var target Level
	var trigger string
	switch {
	case pressure >= raiseThreshold && rank(current) < rank(L5SafeStop):
		target = order[rank(current)+1]
		trigger = "queue_pressure_high"
		c.belowClearSince = nil
	case pressure <= clearThreshold:
		if c.belowClearSince == nil {
			c.belowClearSince = &now
		}
		if rank(current) > 0 && now.Sub(*c.belowClearSince) >= dwell {
			target = order[rank(current)-1]
			trigger = "queue_pressure_recovered"
			c.belowClearSince = &now
		} else {
			target = current
		}
	default:
		target = current
		c.belowClearSince = nil
	}

	if target == current {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.transition(current, target, trigger, pressureE6)
}

// ForceSafeStop jumps directly to L5, bypassing the one-level-at-a-time
// rule, for fatal storage failures per §4.9.
func (c *Controller) ForceSafeStop(trigger string) error {
	c.mu.Lock()
	current := c.level
	if current == L5SafeStop {
		c.mu.Unlock()
		return nil
	}
	pressureE6 := c.queuePressureE6
	c.mu.Unlock()
	return c.transition(current, L5SafeStop, trigger, pressureE6)
}

func (c *Controller) transition(from, to Level, trigger string, pressureE6 uint64) error {
	_, err := c.writer.Append(event.Uncommitted{
		RunID:       c.runID,
		SourceID:    c.sourceID,
		TimestampNs: c.now().UnixNano(),
		Tier:        event.TierA,
		Payload: event.PolicyDecision{
			FromLevel:       string(from),
			ToLevel:         string(to),
			Trigger:         trigger,
			QueuePressureE6: pressureE6,
		},
	})
	if err != nil {
		return fmt.Errorf("backpressure: commit transition: %w", err)
	}

	c.mu.Lock()
	c.level = to
	if to == L1Aggregate || to == L2Collapse {
		c.aggregationMode = "bin"
		c.binSize = 10
	} else if to == L0Normal {
		c.aggregationMode = "none"
		c.binSize = 0
	}
	c.mu.Unlock()
	return nil
}

// Run drives Evaluate on a steady 10 Hz cadence (the spec's 100 ms
// evaluation tick) using a rate.Limiter as the clock source rather than a
// bare time.Ticker, so tests can swap in a faster limiter without faking
// time.Ticker internals. depthFn reports the current (depth, capacity) pair;
// Run returns when ctx is done.
func (c *Controller) Run(ctx context.Context, depthFn func() (depth, capacity int)) error {
	limiter := rate.NewLimiter(rate.Every(tickPeriod), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("backpressure: tick wait: %w", err)
		}
		depth, capacity := depthFn()
		if err := c.Evaluate(depth, capacity); err != nil {
			return err
		}
	}
}

func ratio(depth, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(depth) / float64(capacity)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

var _ Appender = (*eventlog.Writer)(nil)
