package elkan

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting clustering metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordIteration is called after each iteration with the number of
	// changed assignments and point-to-center distance evaluations.
	RecordIteration(changes int, computations int64, duration time.Duration)

	// RecordRun is called when Run returns. err is nil if successful.
	RecordRun(iterations int, converged bool, computations int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIteration(int, int64, time.Duration)        {}
func (NoopMetricsCollector) RecordRun(int, bool, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	IterationCount   atomic.Int64
	IterationChanges atomic.Int64
	IterationNanos   atomic.Int64
	Computations     atomic.Int64
	RunCount         atomic.Int64
	RunErrors        atomic.Int64
	RunConverged     atomic.Int64
	RunTotalNanos    atomic.Int64
	RunComputations  atomic.Int64
}

// RecordIteration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIteration(changes int, computations int64, duration time.Duration) {
	b.IterationCount.Add(1)
	b.IterationChanges.Add(int64(changes))
	b.IterationNanos.Add(duration.Nanoseconds())
	b.Computations.Add(computations)
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(iterations int, converged bool, computations int64, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
		return
	}
	if converged {
		b.RunConverged.Add(1)
	}
	b.RunComputations.Add(computations)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	iterations := b.IterationCount.Load()
	var avg int64
	if iterations > 0 {
		avg = b.IterationNanos.Load() / iterations
	}
	return BasicMetricsStats{
		IterationCount:    iterations,
		IterationChanges:  b.IterationChanges.Load(),
		IterationAvgNanos: avg,
		Computations:      b.Computations.Load(),
		RunCount:          b.RunCount.Load(),
		RunErrors:         b.RunErrors.Load(),
		RunConverged:      b.RunConverged.Load(),
		RunTotalNanos:     b.RunTotalNanos.Load(),
		RunComputations:   b.RunComputations.Load(),
	}
}

// BasicMetricsStats is a snapshot of metrics.
type BasicMetricsStats struct {
	IterationCount    int64
	IterationChanges  int64
	IterationAvgNanos int64
	Computations      int64
	RunCount          int64
	RunErrors         int64
	RunConverged      int64
	RunTotalNanos     int64
	RunComputations   int64
}
