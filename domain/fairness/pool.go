package fairness

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"fairlens/domain/core"
)

// FeatureStats holds observed per-feature statistics over a candidate pool.
// The searcher's local phase derives its noise scale and clipping bounds
// from these.
type FeatureStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// CandidatePool is an ordered evaluation set with consistent feature
// ordering. Per-feature statistics are computed once at construction.
type CandidatePool struct {
	instances []Instance
	features  []FeatureStats
}

// NewCandidatePool validates the instance set and precomputes feature stats.
// Every instance must have the same width.
func NewCandidatePool(instances []Instance) (*CandidatePool, error) {
	if len(instances) == 0 {
		return nil, core.ErrEmptyPool
	}

	width := len(instances[0])
	for i, inst := range instances {
		if len(inst) != width {
			return nil, fmt.Errorf("%w: instance %d has %d features, expected %d",
				core.ErrDimensionMismatch, i, len(inst), width)
		}
	}

	features := make([]FeatureStats, width)
	column := make([]float64, len(instances))
	for f := 0; f < width; f++ {
		for i, inst := range instances {
			column[i] = inst[f]
		}
		mean, _ := stats.Mean(column)
		stdDev, _ := stats.StandardDeviation(column)
		min, _ := stats.Min(column)
		max, _ := stats.Max(column)
		features[f] = FeatureStats{Mean: mean, StdDev: stdDev, Min: min, Max: max}
	}

	return &CandidatePool{instances: instances, features: features}, nil
}

// Len returns the number of instances in the pool.
func (p *CandidatePool) Len() int {
	return len(p.instances)
}

// Width returns the feature dimensionality of the pool.
func (p *CandidatePool) Width() int {
	return len(p.features)
}

// Instance returns the instance at position i. Callers must clone before
// mutating.
func (p *CandidatePool) Instance(i int) Instance {
	return p.instances[i]
}

// Instances returns the ordered instance sequence.
func (p *CandidatePool) Instances() []Instance {
	return p.instances
}

// FeatureStats returns the observed statistics for feature f.
func (p *CandidatePool) FeatureStats(f int) FeatureStats {
	return p.features[f]
}
