// Package qid implements the Quantitative Individual Discrimination metric:
// per-instance sensitivity of the oracle's decision score to protected
// attribute substitution.
package qid

import (
	"log"
	"math"

	"github.com/montanaflynn/stats"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/ports"
)

// DefaultThreshold is the fairness threshold in decision-score units above
// which an instance is deemed discriminatory.
const DefaultThreshold = 0.1

// Analyzer computes QID scores against a single oracle.
type Analyzer struct {
	oracle    ports.Oracle
	threshold float64
}

// InstanceResult is a single-instance QID evaluation. Decisions holds one
// sanitized decision score per distinct candidate value, in the order
// returned by ProtectedAttribute.DistinctValues.
type InstanceResult struct {
	Score     float64
	Decisions []float64
	Sanitized int
}

// NewAnalyzer creates a QID analyzer. A non-positive threshold falls back to
// DefaultThreshold.
func NewAnalyzer(oracle ports.Oracle, threshold float64) (*Analyzer, error) {
	if oracle == nil {
		return nil, core.ErrOracleUnavailable
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Analyzer{oracle: oracle, threshold: threshold}, nil
}

// Threshold returns the fairness threshold in use.
func (a *Analyzer) Threshold() float64 {
	return a.threshold
}

// Score evaluates one instance: for each candidate protected value, a copy
// with only the protected coordinate replaced is classified, and the QID
// score is the maximum pairwise absolute decision difference (the range of
// the candidate decisions).
//
// Fewer than two distinct candidate values is a documented degenerate case:
// the score is trivially 0, not an error. Non-finite oracle outputs are
// substituted with a neutral 0 and counted, never silently dropped.
func (a *Analyzer) Score(instance fairness.Instance, attr fairness.ProtectedAttribute) (InstanceResult, error) {
	if len(instance) != a.oracle.InputDim() {
		return InstanceResult{}, core.NewDimensionMismatchError(len(instance), a.oracle.InputDim())
	}
	if attr.Index < 0 || attr.Index >= len(instance) {
		return InstanceResult{}, core.NewAttributeError(attr.Name, "index outside instance width")
	}
	values := attr.DistinctValues()
	if len(values) == 0 {
		return InstanceResult{}, core.ErrNoProtectedValues
	}

	result := InstanceResult{Decisions: make([]float64, len(values))}
	for i, value := range values {
		decision, err := a.oracle.Classify(instance.WithValue(attr.Index, value))
		if err != nil {
			return InstanceResult{}, err
		}
		if !isFinite(decision) {
			decision = 0
			result.Sanitized++
		}
		result.Decisions[i] = decision
	}

	if len(values) >= 2 {
		lo, hi := result.Decisions[0], result.Decisions[0]
		for _, d := range result.Decisions[1:] {
			if d < lo {
				lo = d
			}
			if d > hi {
				hi = d
			}
		}
		// Max pairwise |d_i - d_j| equals the range of the decisions.
		result.Score = hi - lo
	}
	return result, nil
}

// BatchAnalyze scores every instance and aggregates: mean, max, and the
// fraction of instances whose score exceeds the fairness threshold.
func (a *Analyzer) BatchAnalyze(instances []fairness.Instance, attr fairness.ProtectedAttribute) (*fairness.QIDMetrics, error) {
	if len(instances) == 0 {
		return nil, core.NewConfigError("instances", "batch analysis requires a non-empty instance set")
	}

	metrics := &fairness.QIDMetrics{
		PerInstanceScores: make([]float64, len(instances)),
		Threshold:         a.threshold,
		NumAnalyzed:       len(instances),
	}

	above := 0
	for i, instance := range instances {
		res, err := a.Score(instance, attr)
		if err != nil {
			return nil, err
		}
		metrics.PerInstanceScores[i] = res.Score
		metrics.SanitizedCount += res.Sanitized
		if res.Score > a.threshold {
			above++
		}
	}

	mean, _ := stats.Mean(metrics.PerInstanceScores)
	max, _ := stats.Max(metrics.PerInstanceScores)
	metrics.Aggregate = fairness.QIDAggregate{
		Mean:                   mean,
		Max:                    max,
		FractionAboveThreshold: float64(above) / float64(len(instances)),
	}

	if metrics.SanitizedCount > 0 {
		log.Printf("[QID] sanitized %d non-finite decision scores to neutral 0 across %d instances",
			metrics.SanitizedCount, len(instances))
	}
	return metrics, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
