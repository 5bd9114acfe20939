package kmeans

import (
	"fmt"
	"log/slog"
)

// EmptyClusterPolicy selects what happens to a center whose cluster lost
// all of its points.
type EmptyClusterPolicy int

const (
	// ReseedFarthest moves the point farthest from its own cluster mean
	// (taken from a cluster with at least two members) into the empty
	// cluster and makes it the center.
	ReseedFarthest EmptyClusterPolicy = iota
	// Keep leaves the previous center in place.
	Keep
)

func (p EmptyClusterPolicy) String() string {
	switch p {
	case ReseedFarthest:
		return "reseed-farthest"
	case Keep:
		return "keep"
	default:
		return fmt.Sprintf("EmptyClusterPolicy(%d)", int(p))
	}
}

// ParseEmptyClusterPolicy parses the String form of a policy.
func ParseEmptyClusterPolicy(s string) (EmptyClusterPolicy, error) {
	switch s {
	case "reseed-farthest", "reseed", "":
		return ReseedFarthest, nil
	case "keep":
		return Keep, nil
	default:
		return 0, fmt.Errorf("unknown empty cluster policy %q", s)
	}
}

// State is the lifecycle position of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateIterating
	StateConverged
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config parameterizes an Engine.
type Config struct {
	// K is the number of clusters.
	K int
	// Seed feeds the sampler that picks the initial centers.
	Seed int64
	// InitialIndices, when set, replaces sampling. It must hold K distinct
	// point indices; center c starts at point InitialIndices[c].
	InitialIndices []int
	// Policy handles clusters that end an iteration without members.
	Policy EmptyClusterPolicy
	// Exhaustive disables pruning and evaluates every center for every point.
	Exhaustive bool
	// Logger receives warnings about empty clusters. Nil discards.
	Logger *slog.Logger
}
