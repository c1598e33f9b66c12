// Package history keeps fixed-capacity, time-ordered series of metric
// readings for the dashboard and the status endpoints.
package history

import (
	"math"
	"sync"
	"time"
)

// DefaultCapacity is the number of samples retained per metric when no
// history length is configured. At the default 1s interval this covers one
// minute.
const DefaultCapacity = 60

// Sample is a single timestamped reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Ring is a bounded FIFO of samples. Once full, every Add evicts the oldest
// entry. Reads return copies in oldest-to-newest order. A Ring is safe for
// concurrent use.
type Ring struct {
	mu    sync.RWMutex
	buf   []Sample
	head  int // index of the next write
	count int
}

// NewRing creates a ring holding at most capacity samples. A capacity below
// one falls back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Sample, capacity)}
}

// Add appends a reading, evicting the oldest one when the ring is full.
func (r *Ring) Add(value float64, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = Sample{Timestamp: ts, Value: value}
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Samples returns a copy of the stored samples, oldest first.
func (r *Ring) Samples() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samplesLocked()
}

func (r *Ring) samplesLocked() []Sample {
	out := make([]Sample, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Values returns the stored values, oldest first.
func (r *Ring) Values() []float64 {
	samples := r.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

// Timestamps returns the stored timestamps, oldest first. The result is
// index-aligned with Values.
func (r *Ring) Timestamps() []time.Time {
	samples := r.Samples()
	out := make([]time.Time, len(samples))
	for i, s := range samples {
		out[i] = s.Timestamp
	}
	return out
}

// Len returns the number of stored samples.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring's capacity.
func (r *Ring) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}

// Clear drops every stored sample. Capacity is unchanged.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		r.buf[i] = Sample{}
	}
	r.head = 0
	r.count = 0
}

// Resized returns a new ring of the given capacity holding the newest
// samples of r that fit.
func (r *Ring) Resized(capacity int) *Ring {
	out := NewRing(capacity)
	samples := r.Samples()
	if len(samples) > len(out.buf) {
		samples = samples[len(samples)-len(out.buf):]
	}
	for _, s := range samples {
		out.Add(s.Value, s.Timestamp)
	}
	return out
}

// Stats summarizes a window of samples.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Last  float64 `json:"last"`
}

// Stats summarizes the samples taken at or after since. A zero since covers
// the whole ring.
func (r *Ring) Stats(since time.Time) Stats {
	r.mu.RLock()
	samples := r.samplesLocked()
	r.mu.RUnlock()
	return Summarize(samples, since)
}

// Summarize computes Stats over samples taken at or after since.
func Summarize(samples []Sample, since time.Time) Stats {
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, s := range samples {
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}
		st.Count++
		sum += s.Value
		st.Min = math.Min(st.Min, s.Value)
		st.Max = math.Max(st.Max, s.Value)
		st.Last = s.Value
	}
	if st.Count == 0 {
		return Stats{}
	}
	st.Avg = sum / float64(st.Count)
	return st
}
