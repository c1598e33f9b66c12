// Package collectors defines the host metric snapshot shared by the sampler,
// the history buffers, the alerter and every presentation surface.
package collectors

import (
	"context"

	"emperror.dev/errors"
)

// ErrNoMetrics is returned by a Sampler when none of the core metrics
// (CPU, RAM, disk) could be read during a cycle.
var ErrNoMetrics = errors.Sentinel("no core metric could be read")

// Sampler produces one Snapshot per call.
//
// Implementations must honor ctx cancellation and must never return a
// partially filled snapshot together with a non-nil error: a cycle either
// yields a snapshot (possibly with some metrics unavailable) or fails whole.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(ctx context.Context) (Snapshot, error)

// Sample calls f(ctx).
func (f SamplerFunc) Sample(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}
