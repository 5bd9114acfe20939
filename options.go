package elkan

import (
	"log/slog"

	"github.com/hupe1980/elkan/internal/kmeans"
)

// DefaultMaxIterations bounds Run when WithMaxIterations is not given.
const DefaultMaxIterations = 100

// EmptyClusterPolicy selects what happens to a center whose cluster lost all
// of its points during an iteration.
type EmptyClusterPolicy = kmeans.EmptyClusterPolicy

const (
	// EmptyClusterReseedFarthest moves the point farthest from its own
	// cluster mean into the empty cluster and makes it the center.
	EmptyClusterReseedFarthest = kmeans.ReseedFarthest
	// EmptyClusterKeep leaves the previous center in place and logs a warning.
	EmptyClusterKeep = kmeans.Keep
)

// ParseEmptyClusterPolicy parses "reseed-farthest" or "keep".
func ParseEmptyClusterPolicy(s string) (EmptyClusterPolicy, error) {
	return kmeans.ParseEmptyClusterPolicy(s)
}

type options struct {
	seed             int64
	seedSet          bool
	maxIterations    int
	initialIndices   []int
	policy           EmptyClusterPolicy
	exhaustive       bool
	logger           *Logger
	metricsCollector MetricsCollector
}

func defaultOptions() options {
	return options{
		maxIterations:    DefaultMaxIterations,
		policy:           EmptyClusterReseedFarthest,
		logger:           NewLogger(nil),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures a Clusterer.
type Option func(*options)

// WithSeed fixes the seed used to sample the initial centers.
// Without it the seed is derived from the current time.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
		o.seedSet = true
	}
}

// WithMaxIterations caps the number of iterations Run performs.
// A value <= 0 removes the cap.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.maxIterations = n
	}
}

// WithInitialIndices starts center c at point indices[c] instead of sampling.
// The indices must be k distinct points.
func WithInitialIndices(indices []int) Option {
	return func(o *options) {
		o.initialIndices = append([]int(nil), indices...)
	}
}

// WithEmptyClusterPolicy configures the handling of empty clusters.
func WithEmptyClusterPolicy(p EmptyClusterPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithExhaustive disables bound pruning and evaluates every center for every
// point. Results are identical; only the distance count differs.
func WithExhaustive(enabled bool) Option {
	return func(o *options) {
		o.exhaustive = enabled
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, logging is disabled.
//
// Example:
//
//	logger := elkan.NewJSONLogger(slog.LevelDebug)
//	c, _ := elkan.New(ds, 16, elkan.WithLogger(logger))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel replaces the logger with a text logger at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring.
//
// If nil is passed, metrics collection is disabled.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}
