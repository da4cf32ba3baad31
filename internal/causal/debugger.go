// Package causal localizes discriminatory behavior to hidden layers and
// neurons by ablating internal activations and measuring the drop in the
// aggregate discrimination score.
package causal

import (
	"log"
	"math"
	"sort"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/ports"
)

// DefaultTopK is the number of neurons reported as most biased.
const DefaultTopK = 5

// Debugger performs causal ablation against a single oracle. The neutral
// reference for an ablated unit is zero: the unit's post-activation value is
// replaced with 0 while the rest of the forward computation is unchanged.
type Debugger struct {
	oracle ports.AblatableOracle
	topK   int
}

// NewDebugger creates a causal debugger. A non-positive topK falls back to
// DefaultTopK.
func NewDebugger(oracle ports.AblatableOracle, topK int) (*Debugger, error) {
	if oracle == nil {
		return nil, core.ErrOracleUnavailable
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Debugger{oracle: oracle, topK: topK}, nil
}

// LocalizeLayer ablates each hidden layer in turn and ranks layers by the
// resulting drop in aggregate discrimination. The biased layer is the argmax;
// ties resolve to the lowest index so repeated runs agree.
func (d *Debugger) LocalizeLayer(instances []fairness.DiscriminatoryInstance) (*fairness.LayerAnalysis, error) {
	if len(instances) == 0 {
		return nil, core.NewConfigError("instances", "layer localization requires discriminatory instances")
	}
	numLayers := len(d.oracle.HiddenLayerSizes())
	if numLayers == 0 {
		return nil, core.NewConfigError("oracle", "model has no hidden layers to ablate")
	}

	control := instances[0].Base
	controlBefore, err := d.oracle.Classify(control)
	if err != nil {
		return nil, err
	}

	baseline, err := d.aggregateScore(instances)
	if err != nil {
		return nil, err
	}

	analysis := &fairness.LayerAnalysis{
		PerLayerScores: make([]fairness.LayerScore, numLayers),
		BaselineScore:  baseline,
	}

	for l := 0; l < numLayers; l++ {
		ablated, err := d.ablatedScore(instances, l, ports.AblateWholeLayer)
		if err != nil {
			return nil, err
		}
		analysis.PerLayerScores[l] = fairness.LayerScore{LayerIndex: l, Score: baseline - ablated}
	}

	if err := d.verifyControl(control, controlBefore); err != nil {
		return nil, err
	}

	biased := analysis.PerLayerScores[0]
	for _, ls := range analysis.PerLayerScores[1:] {
		if ls.Score > biased.Score {
			biased = ls
		}
	}
	analysis.BiasedLayer = biased

	log.Printf("[Causal] biased layer %d (causal score %.4f, baseline %.4f)",
		biased.LayerIndex, biased.Score, baseline)
	return analysis, nil
}

// LocalizeNeurons repeats the ablation procedure for every neuron within one
// hidden layer and reports the top-k by causal score.
func (d *Debugger) LocalizeNeurons(layerIdx int, instances []fairness.DiscriminatoryInstance) (*fairness.NeuronAnalysis, error) {
	if len(instances) == 0 {
		return nil, core.NewConfigError("instances", "neuron localization requires discriminatory instances")
	}
	sizes := d.oracle.HiddenLayerSizes()
	if layerIdx < 0 || layerIdx >= len(sizes) {
		return nil, core.NewLayerIndexError(layerIdx, len(sizes))
	}
	width := sizes[layerIdx]

	control := instances[0].Base
	controlBefore, err := d.oracle.Classify(control)
	if err != nil {
		return nil, err
	}

	baseline, err := d.aggregateScore(instances)
	if err != nil {
		return nil, err
	}

	analysis := &fairness.NeuronAnalysis{
		LayerIndex:      layerIdx,
		PerNeuronScores: make([]fairness.NeuronScore, width),
		BaselineScore:   baseline,
	}

	for n := 0; n < width; n++ {
		ablated, err := d.ablatedScore(instances, layerIdx, n)
		if err != nil {
			return nil, err
		}
		analysis.PerNeuronScores[n] = fairness.NeuronScore{NeuronIndex: n, Score: baseline - ablated}
	}

	if err := d.verifyControl(control, controlBefore); err != nil {
		return nil, err
	}

	ranked := make([]fairness.NeuronScore, width)
	copy(ranked, analysis.PerNeuronScores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	k := d.topK
	if k > width {
		k = width
	}
	analysis.BiasedNeurons = ranked[:k]
	return analysis, nil
}

// aggregateScore is the mean discrimination score over the instance set:
// per instance, the absolute decision difference between the base and its
// protected-attribute counterfactual.
func (d *Debugger) aggregateScore(instances []fairness.DiscriminatoryInstance) (float64, error) {
	sum := 0.0
	sanitized := 0
	for _, inst := range instances {
		base, err := d.oracle.Classify(inst.Base)
		if err != nil {
			return 0, err
		}
		perturbed, err := d.oracle.Classify(inst.Perturbed)
		if err != nil {
			return 0, err
		}
		diff := math.Abs(perturbed - base)
		if math.IsNaN(diff) || math.IsInf(diff, 0) {
			diff = 0
			sanitized++
		}
		sum += diff
	}
	if sanitized > 0 {
		log.Printf("[Causal] sanitized %d non-finite decision differences to neutral 0", sanitized)
	}
	return sum / float64(len(instances)), nil
}

// ablatedScore recomputes the aggregate discrimination score with one unit's
// activation replaced by the neutral reference for the duration of the call.
func (d *Debugger) ablatedScore(instances []fairness.DiscriminatoryInstance, layer, neuron int) (float64, error) {
	var score float64
	err := d.oracle.WithAblation(layer, neuron, func() error {
		var innerErr error
		score, innerErr = d.aggregateScore(instances)
		return innerErr
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// verifyControl re-classifies the control instance after the ablation sweep.
// Any drift means an intervention leaked past its scope.
func (d *Debugger) verifyControl(control fairness.Instance, before float64) error {
	after, err := d.oracle.Classify(control)
	if err != nil {
		return err
	}
	if before != after {
		return core.ErrResidualAblation
	}
	return nil
}
