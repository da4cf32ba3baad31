package ports

import "fairlens/domain/fairness"

// Oracle is the trained classifier under audit, treated as a black-box
// decision function. Classify returns a continuous decision score (the
// log-odds margin of the favorable class) rather than a thresholded label,
// so downstream metrics stay sensitive instead of binary-saturated.
//
// Inference is read-only; the oracle's parameters are immutable for the
// duration of an analysis.
type Oracle interface {
	Classify(instance fairness.Instance) (float64, error)

	// InputDim returns the expected instance width.
	InputDim() int
}

// ActivationOracle extends Oracle with activation capture. The returned
// slices are ordered from the first hidden layer outward and are owned by
// the caller.
type ActivationOracle interface {
	Oracle

	ClassifyWithActivations(instance fairness.Instance) (float64, [][]float64, error)

	// HiddenLayerSizes returns the width of each hidden layer, ordered from
	// input side to output side.
	HiddenLayerSizes() []int
}

// AblatableOracle extends ActivationOracle with a scoped intervention: while
// fn runs, the named unit's activation is replaced with a neutral reference
// on every forward pass. neuron = AblateWholeLayer ablates the full layer.
//
// Implementations must restore the prior computation on every exit path,
// including a panic or error inside fn, and must reject overlapping
// interventions: concurrent ablations on one oracle are disallowed.
type AblatableOracle interface {
	ActivationOracle

	WithAblation(layer, neuron int, fn func() error) error
}

// AblateWholeLayer selects every neuron in the target layer for ablation.
const AblateWholeLayer = -1
