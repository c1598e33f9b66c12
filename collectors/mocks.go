package collectors

import (
	"context"
	"sync"
	"time"
)

// MockSnapshot returns a fully populated snapshot with every metric set to
// the given value. Useful for UI initialization and tests.
func MockSnapshot(ts time.Time, value float64) Snapshot {
	return Snapshot{
		Timestamp:   ts,
		CPU:         Percent(value),
		RAM:         Percent(value),
		GPU:         Percent(value),
		Disk:        Percent(value),
		Temperature: Float(value),
	}
}

// ScriptedSampler replays a fixed sequence of results. Once the script is
// exhausted the last entry repeats.
type ScriptedSampler struct {
	mu    sync.Mutex
	steps []ScriptStep
	calls int
	now   func() time.Time
}

// ScriptStep is a single scripted sampler result.
type ScriptStep struct {
	Snapshot Snapshot
	Err      error
}

// NewScriptedSampler creates a sampler that stamps each snapshot with now().
// A nil now keeps the timestamps from the script.
func NewScriptedSampler(now func() time.Time, steps ...ScriptStep) *ScriptedSampler {
	return &ScriptedSampler{steps: steps, now: now}
}

// Sample returns the next scripted result.
func (s *ScriptedSampler) Sample(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return Snapshot{}, ErrNoMetrics
	}
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++

	step := s.steps[idx]
	if step.Err != nil {
		return Snapshot{}, step.Err
	}
	snap := step.Snapshot
	if s.now != nil {
		snap.Timestamp = s.now()
	}
	return snap, nil
}

// Calls reports how many times Sample has been invoked.
func (s *ScriptedSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ Sampler = (*ScriptedSampler)(nil)
