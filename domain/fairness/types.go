package fairness

// Instance is an ordered feature vector matching the oracle's input contract.
type Instance []float64

// Clone returns an independent copy of the instance.
func (in Instance) Clone() Instance {
	out := make(Instance, len(in))
	copy(out, in)
	return out
}

// WithValue returns a copy of the instance with a single coordinate replaced.
func (in Instance) WithValue(index int, value float64) Instance {
	out := in.Clone()
	out[index] = value
	return out
}

// ProtectedAttribute maps a named protected feature to its column index and
// the finite set of candidate values to substitute during analysis.
type ProtectedAttribute struct {
	Name   string    `json:"name"`
	Index  int       `json:"index"`
	Values []float64 `json:"values"`
}

// DistinctValues returns the candidate values with duplicates removed,
// preserving first-appearance order.
func (p ProtectedAttribute) DistinctValues() []float64 {
	seen := make(map[float64]bool, len(p.Values))
	distinct := make([]float64, 0, len(p.Values))
	for _, v := range p.Values {
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}
	return distinct
}

// DiscriminatoryInstance records an input whose decision changes beyond the
// fairness threshold when only its protected attribute is varied. Base and
// Perturbed differ only in the protected coordinate.
type DiscriminatoryInstance struct {
	Base      Instance `json:"base_instance"`
	Perturbed Instance `json:"perturbed_instance"`
	Attribute string   `json:"attribute"`
	Score     float64  `json:"score"`
}

// QIDAggregate summarizes per-instance discrimination scores across a batch.
type QIDAggregate struct {
	Mean                   float64 `json:"mean"`
	Max                    float64 `json:"max"`
	FractionAboveThreshold float64 `json:"fraction_above_threshold"`
}

// QIDMetrics is the batch analysis result. SanitizedCount reports how many
// non-finite oracle outputs were substituted with a neutral value before
// scoring; it is never silently absorbed into the aggregates.
type QIDMetrics struct {
	PerInstanceScores []float64    `json:"per_instance_scores"`
	Aggregate         QIDAggregate `json:"aggregate"`
	Threshold         float64      `json:"threshold"`
	SanitizedCount    int          `json:"sanitized_count"`
	NumAnalyzed       int          `json:"num_analyzed"`
}

// LayerScore attributes a causal discrimination score to one hidden layer.
// Scores are comparable only within the same ablation run.
type LayerScore struct {
	LayerIndex int     `json:"layer_idx"`
	Score      float64 `json:"score"`
}

// NeuronScore attributes a causal discrimination score to one neuron.
type NeuronScore struct {
	NeuronIndex int     `json:"neuron_idx"`
	Score       float64 `json:"score"`
}

// LayerAnalysis ranks every hidden layer by its causal contribution to the
// discriminatory behavior of the audited model.
type LayerAnalysis struct {
	PerLayerScores []LayerScore `json:"per_layer_scores"`
	BiasedLayer    LayerScore   `json:"biased_layer"`
	BaselineScore  float64      `json:"baseline_score"`
}

// NeuronAnalysis ranks neurons within a single layer.
type NeuronAnalysis struct {
	LayerIndex      int           `json:"layer_idx"`
	PerNeuronScores []NeuronScore `json:"per_neuron_scores"`
	BiasedNeurons   []NeuronScore `json:"biased_neurons"`
	BaselineScore   float64       `json:"baseline_score"`
}
