package history

import (
	"sync"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// View is an immutable copy of every series at one point in time.
type View map[collectors.Metric][]Sample

// Values returns the values of one series, oldest first.
func (v View) Values(m collectors.Metric) []float64 {
	samples := v[m]
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

// Set holds one ring per tracked metric, all sharing a capacity.
type Set struct {
	mu       sync.RWMutex
	capacity int
	rings    map[collectors.Metric]*Ring
}

// NewSet creates rings for the given metrics. With no metrics it tracks
// collectors.AllMetrics.
func NewSet(capacity int, metrics ...collectors.Metric) *Set {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if len(metrics) == 0 {
		metrics = collectors.AllMetrics
	}
	s := &Set{capacity: capacity, rings: make(map[collectors.Metric]*Ring, len(metrics))}
	for _, m := range metrics {
		s.rings[m] = NewRing(capacity)
	}
	return s
}

// Record appends every available reading of snap to its series.
// Unavailable metrics are skipped rather than recorded as zero.
func (s *Set) Record(snap collectors.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for m, r := range s.rings {
		if v, ok := snap.Value(m); ok {
			r.Add(v, snap.Timestamp)
		}
	}
}

// Ring returns the series for m, or nil if m is not tracked.
func (s *Set) Ring(m collectors.Metric) *Ring {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rings[m]
}

// View copies every series.
func (s *Set) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := make(View, len(s.rings))
	for m, r := range s.rings {
		v[m] = r.Samples()
	}
	return v
}

// Capacity returns the shared ring capacity.
func (s *Set) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// Resize replaces every ring with one of the new capacity, keeping the
// newest samples that fit.
func (s *Set) Resize(capacity int) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if capacity == s.capacity {
		return
	}
	for m, r := range s.rings {
		s.rings[m] = r.Resized(capacity)
	}
	s.capacity = capacity
}

// Clear empties every series.
func (s *Set) Clear() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rings {
		r.Clear()
	}
}
