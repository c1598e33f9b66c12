package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fill(r *Ring, n int) {
	for i := 0; i < n; i++ {
		r.Add(float64(i), t0.Add(time.Duration(i)*time.Second))
	}
}

func TestRing_LengthIsMinOfAddsAndCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		adds     int
		wantLen  int
		wantHead float64
	}{
		{"empty", 5, 0, 0, 0},
		{"under capacity", 5, 3, 3, 0},
		{"exactly full", 5, 5, 5, 0},
		{"wrapped", 5, 12, 5, 7},
		{"capacity one", 1, 4, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(tt.capacity)
			fill(r, tt.adds)

			assert.Equal(t, tt.wantLen, r.Len())
			values := r.Values()
			require.Len(t, values, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantHead, values[0], "oldest retained value")
				assert.Equal(t, float64(tt.adds-1), values[len(values)-1], "newest value")
			}
		})
	}
}

func TestRing_OrderAndAlignment(t *testing.T) {
	r := NewRing(4)
	fill(r, 7)

	values := r.Values()
	stamps := r.Timestamps()
	require.Len(t, stamps, len(values))
	assert.Equal(t, []float64{3, 4, 5, 6}, values)
	for i := range values {
		assert.Equal(t, t0.Add(time.Duration(values[i])*time.Second), stamps[i])
	}
	for i := 1; i < len(stamps); i++ {
		assert.True(t, stamps[i].After(stamps[i-1]), "timestamps must be ascending")
	}
}

func TestRing_ReadsAreCopies(t *testing.T) {
	r := NewRing(3)
	fill(r, 3)

	values := r.Values()
	values[0] = 999
	assert.Equal(t, float64(0), r.Values()[0])
}

func TestRing_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewRing(0).Cap())
	assert.Equal(t, DefaultCapacity, NewRing(-3).Cap())
}

func TestRing_Clear(t *testing.T) {
	r := NewRing(3)
	fill(r, 5)
	assert.Equal(t, []float64{2, 3, 4}, r.Values())

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Empty(t, r.Values())

	r.Add(1, t0)
	assert.Equal(t, []float64{1}, r.Values())
}

func TestRing_Resized(t *testing.T) {
	r := NewRing(5)
	fill(r, 5)

	smaller := r.Resized(2)
	assert.Equal(t, []float64{3, 4}, smaller.Values())

	larger := r.Resized(10)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, larger.Values())
	assert.Equal(t, 10, larger.Cap())
}

func TestRing_Stats(t *testing.T) {
	r := NewRing(10)
	for i, v := range []float64{10, 30, 20, 40} {
		r.Add(v, t0.Add(time.Duration(i)*time.Minute))
	}

	all := r.Stats(time.Time{})
	assert.Equal(t, 4, all.Count)
	assert.Equal(t, 10.0, all.Min)
	assert.Equal(t, 40.0, all.Max)
	assert.Equal(t, 25.0, all.Avg)
	assert.Equal(t, 40.0, all.Last)

	recent := r.Stats(t0.Add(2 * time.Minute))
	assert.Equal(t, 2, recent.Count)
	assert.Equal(t, 30.0, recent.Avg)

	assert.Equal(t, Stats{}, NewRing(3).Stats(time.Time{}))
}

func TestRing_ConcurrentAccess(t *testing.T) {
	r := NewRing(16)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Add(float64(i), t0)
				_ = r.Values()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, r.Len())
}
