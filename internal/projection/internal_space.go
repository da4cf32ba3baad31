// Package projection reduces hidden-layer activations to 2D coordinates for
// the internal-space visualization.
package projection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/ports"
)

// DefaultMaxSamples bounds how many pool instances are projected.
const DefaultMaxSamples = 500

// LayerProjection is the 2D embedding of one hidden layer's activations.
type LayerProjection struct {
	LayerIndex int       `json:"layer_idx"`
	LayerName  string    `json:"layer_name"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
}

// Result is the full visualization payload: per-layer coordinates plus the
// decision score and protected value of each projected sample.
type Result struct {
	Layers     []LayerProjection `json:"layers"`
	Labels     []float64         `json:"labels,omitempty"`
	Protected  []float64         `json:"protected"`
	Decisions  []float64         `json:"decisions"`
	Method     string            `json:"method"`
	NumSamples int               `json:"num_samples"`
}

// Analyzer extracts and reduces intermediate layer activations.
type Analyzer struct {
	oracle ports.ActivationOracle
}

// NewAnalyzer creates a projection analyzer.
func NewAnalyzer(oracle ports.ActivationOracle) (*Analyzer, error) {
	if oracle == nil {
		return nil, core.ErrOracleUnavailable
	}
	return &Analyzer{oracle: oracle}, nil
}

// Project captures activations for up to maxSamples pool instances and
// reduces each hidden layer to 2D via PCA. Layers are reduced concurrently;
// the oracle itself is only queried sequentially during capture.
func (a *Analyzer) Project(ctx context.Context, pool *fairness.CandidatePool, attr fairness.ProtectedAttribute, labels []float64, maxSamples int) (*Result, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, core.ErrEmptyPool
	}
	if attr.Index < 0 || attr.Index >= pool.Width() {
		return nil, core.NewAttributeError(attr.Name, "index outside pool feature width")
	}
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	n := pool.Len()
	if n > maxSamples {
		n = maxSamples
	}

	sizes := a.oracle.HiddenLayerSizes()
	layerData := make([][][]float64, len(sizes))
	decisions := make([]float64, n)
	protected := make([]float64, n)

	for i := 0; i < n; i++ {
		instance := pool.Instance(i)
		decision, activations, err := a.oracle.ClassifyWithActivations(instance)
		if err != nil {
			return nil, err
		}
		decisions[i] = decision
		protected[i] = instance[attr.Index]
		for l, act := range activations {
			layerData[l] = append(layerData[l], act)
		}
	}

	result := &Result{
		Layers:     make([]LayerProjection, len(sizes)),
		Protected:  protected,
		Decisions:  decisions,
		Method:     "pca",
		NumSamples: n,
	}
	if len(labels) >= n {
		result.Labels = labels[:n]
	}

	g, _ := errgroup.WithContext(ctx)
	for l := range layerData {
		l := l
		g.Go(func() error {
			x, y, err := reduceTo2D(layerData[l])
			if err != nil {
				return fmt.Errorf("layer %d: %w", l, err)
			}
			result.Layers[l] = LayerProjection{
				LayerIndex: l,
				LayerName:  fmt.Sprintf("Layer %d", l+1),
				X:          x,
				Y:          y,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// reduceTo2D projects one layer's activations onto its first two principal
// components. Layers already at width <= 2, and sample sets too small for a
// covariance estimate, pass through with zero padding.
func reduceTo2D(data [][]float64) ([]float64, []float64, error) {
	n := len(data)
	if n == 0 {
		return nil, nil, nil
	}
	width := len(data[0])

	if width <= 2 || n < 3 {
		x := make([]float64, n)
		y := make([]float64, n)
		for i, row := range data {
			x[i] = row[0]
			if width > 1 {
				y[i] = row[1]
			}
		}
		return x, y, nil
	}

	flat := make([]float64, 0, n*width)
	for _, row := range data {
		flat = append(flat, row...)
	}
	m := mat.NewDense(n, width, flat)

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, nil, fmt.Errorf("principal component decomposition failed")
	}

	var vec mat.Dense
	pc.VectorsTo(&vec)

	var proj mat.Dense
	proj.Mul(m, vec.Slice(0, width, 0, 2))

	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = proj.At(i, 0)
		y[i] = proj.At(i, 1)
	}
	return x, y, nil
}
