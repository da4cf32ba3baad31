// Package search implements the two-phase discriminatory instance search:
// seeded global exploration over a candidate pool followed by local
// hill-climbing refinement around each discovered seed instance.
package search

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/internal/qid"
	"fairlens/ports"
)

const (
	// DefaultPerturbationScale multiplies each feature's pool standard
	// deviation to obtain the local-phase Gaussian noise sigma.
	DefaultPerturbationScale = 0.3

	// DefaultDedupEpsilon is the L2 distance below which two results are
	// considered near-duplicates.
	DefaultDedupEpsilon = 1e-3
)

// Params control the search budget and noise policy. Termination is a fixed
// iteration budget with no adaptive early stop.
type Params struct {
	GlobalIterations  int
	LocalNeighbors    int
	Seed              int64
	PerturbationScale float64
	DedupEpsilon      float64
}

// Engine runs the two-phase search against a single oracle.
type Engine struct {
	oracle   ports.Oracle
	analyzer *qid.Analyzer
	rng      ports.RNGPort
}

// seedInstance is a global-phase hit awaiting local refinement.
type seedInstance struct {
	instance fairness.Instance
	result   qid.InstanceResult
}

// NewEngine creates a search engine. The RNG port is required: randomness is
// an injected component so identical seeds reproduce identical results.
func NewEngine(oracle ports.Oracle, analyzer *qid.Analyzer, rngPort ports.RNGPort) (*Engine, error) {
	if oracle == nil {
		return nil, core.ErrOracleUnavailable
	}
	if analyzer == nil {
		return nil, core.NewConfigError("analyzer", "QID analyzer is required")
	}
	if rngPort == nil {
		return nil, core.NewConfigError("rng", "seeded RNG port is required")
	}
	return &Engine{oracle: oracle, analyzer: analyzer, rng: rngPort}, nil
}

// Search returns confirmed discriminatory instances ordered by descending
// score. GlobalIterations = 0 yields an empty result, not an error. The
// global phase consumes its full draw budget, but pool positions drawn more
// than once are evaluated only on the first draw.
func (e *Engine) Search(ctx context.Context, pool *fairness.CandidatePool, attr fairness.ProtectedAttribute, p Params) ([]fairness.DiscriminatoryInstance, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, core.ErrEmptyPool
	}
	if attr.Index < 0 || attr.Index >= pool.Width() {
		return nil, core.NewAttributeError(attr.Name, "index outside pool feature width")
	}
	if p.GlobalIterations < 0 {
		return nil, core.NewConfigError("global_iterations", "must be non-negative")
	}
	if p.LocalNeighbors < 0 {
		return nil, core.NewConfigError("local_neighbors", "must be non-negative")
	}
	if p.PerturbationScale <= 0 {
		p.PerturbationScale = DefaultPerturbationScale
	}
	if p.DedupEpsilon <= 0 {
		p.DedupEpsilon = DefaultDedupEpsilon
	}

	results := []fairness.DiscriminatoryInstance{}
	if p.GlobalIterations == 0 {
		return results, nil
	}

	globalRand, err := e.rng.Stream(ctx, "", "global", p.Seed)
	if err != nil {
		return nil, err
	}
	localRand, err := e.rng.Stream(ctx, "", "local", p.Seed)
	if err != nil {
		return nil, err
	}

	seeds, err := e.globalPhase(pool, attr, p.GlobalIterations, globalRand)
	if err != nil {
		return nil, err
	}
	log.Printf("[Search] global phase: %d/%d draws exceeded threshold %.3f",
		len(seeds), p.GlobalIterations, e.analyzer.Threshold())

	refined, err := e.localPhase(pool, attr, seeds, p, localRand)
	if err != nil {
		return nil, err
	}

	for _, s := range refined {
		rec, err := e.buildRecord(s, attr)
		if err != nil {
			return nil, err
		}
		if isNearDuplicate(rec, results, p.DedupEpsilon) {
			continue
		}
		results = append(results, rec)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// globalPhase draws exactly iterations instances uniformly at random from
// the pool and keeps those whose QID score exceeds the fairness threshold.
// Re-drawn pool positions are evaluated once.
func (e *Engine) globalPhase(pool *fairness.CandidatePool, attr fairness.ProtectedAttribute, iterations int, rnd *rand.Rand) ([]seedInstance, error) {
	var seeds []seedInstance
	seen := make(map[int]bool, iterations)

	for i := 0; i < iterations; i++ {
		idx := rnd.Intn(pool.Len())
		if seen[idx] {
			continue
		}
		seen[idx] = true

		instance := pool.Instance(idx)
		res, err := e.analyzer.Score(instance, attr)
		if err != nil {
			return nil, err
		}
		if res.Score > e.analyzer.Threshold() {
			seeds = append(seeds, seedInstance{instance: instance, result: res})
		}
	}
	return seeds, nil
}

// localPhase refines each seed by hill-climbing: bounded Gaussian noise on
// the non-protected coordinates, keeping the best neighbor only when it
// beats the seed's own score.
func (e *Engine) localPhase(pool *fairness.CandidatePool, attr fairness.ProtectedAttribute, seeds []seedInstance, p Params, rnd *rand.Rand) ([]seedInstance, error) {
	refined := make([]seedInstance, 0, len(seeds))
	for _, seed := range seeds {
		best := seed
		for j := 0; j < p.LocalNeighbors; j++ {
			neighbor := perturb(seed.instance, pool, attr.Index, p.PerturbationScale, rnd)
			res, err := e.analyzer.Score(neighbor, attr)
			if err != nil {
				return nil, err
			}
			if res.Score > best.result.Score {
				best = seedInstance{instance: neighbor, result: res}
			}
		}
		refined = append(refined, best)
	}
	return refined, nil
}

// perturb adds per-feature Gaussian noise scaled by the pool's observed
// standard deviation, clipped to the pool's observed min/max so neighbors
// stay in-distribution. The protected coordinate is never perturbed.
func perturb(instance fairness.Instance, pool *fairness.CandidatePool, protectedIdx int, scale float64, rnd *rand.Rand) fairness.Instance {
	neighbor := instance.Clone()
	for f := range neighbor {
		if f == protectedIdx {
			continue
		}
		fs := pool.FeatureStats(f)
		if fs.StdDev == 0 {
			continue
		}
		v := neighbor[f] + rnd.NormFloat64()*fs.StdDev*scale
		neighbor[f] = math.Min(math.Max(v, fs.Min), fs.Max)
	}
	return neighbor
}

// buildRecord materializes a DiscriminatoryInstance: the base is the found
// instance unchanged, the perturbed copy carries the candidate protected
// value whose decision is farthest from the base's own decision.
func (e *Engine) buildRecord(s seedInstance, attr fairness.ProtectedAttribute) (fairness.DiscriminatoryInstance, error) {
	values := attr.DistinctValues()

	baseDecision, known := 0.0, false
	for i, v := range values {
		if s.instance[attr.Index] == v {
			baseDecision, known = s.result.Decisions[i], true
			break
		}
	}
	if !known {
		// The base carries a protected value outside the candidate set.
		d, err := e.oracle.Classify(s.instance)
		if err != nil {
			return fairness.DiscriminatoryInstance{}, err
		}
		if math.IsNaN(d) || math.IsInf(d, 0) {
			d = 0
		}
		baseDecision = d
	}

	bestValue, bestDiff := values[0], -1.0
	for i, v := range values {
		if diff := math.Abs(s.result.Decisions[i] - baseDecision); diff > bestDiff {
			bestValue, bestDiff = v, diff
		}
	}

	return fairness.DiscriminatoryInstance{
		Base:      s.instance.Clone(),
		Perturbed: s.instance.WithValue(attr.Index, bestValue),
		Attribute: attr.Name,
		Score:     s.result.Score,
	}, nil
}

// isNearDuplicate reports whether the record's base vector lies within
// epsilon (L2) of an already-retained result.
func isNearDuplicate(rec fairness.DiscriminatoryInstance, kept []fairness.DiscriminatoryInstance, epsilon float64) bool {
	for _, k := range kept {
		if floats.Distance(rec.Base, k.Base, 2) < epsilon {
			return true
		}
	}
	return false
}
