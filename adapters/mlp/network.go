package mlp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/ports"
)

// Network is a feedforward ReLU classifier with two output logits. It
// implements ports.AblatableOracle: plain inference, activation capture, and
// scoped ablation of a hidden unit.
//
// Parameters are immutable after construction. The only mutable state is the
// active ablation target, which exists solely between WithAblation entry and
// exit; the network is not safe for concurrent use while an ablation is
// active.
type Network struct {
	inputDim     int
	weights      []*mat.Dense // layer l: (outWidth x inWidth)
	biases       [][]float64
	featureNames []string
	hash         core.ModelHash

	ablation *ablationTarget
}

// ablationTarget names the unit whose activation is replaced during a scoped
// intervention. neuron == ports.AblateWholeLayer zeroes the entire layer.
type ablationTarget struct {
	layer  int
	neuron int
}

// Layer holds the parameters of one fully connected layer.
type Layer struct {
	Weights [][]float64 `json:"weights"` // outWidth rows of inWidth values
	Biases  []float64   `json:"biases"`
}

// NewNetwork builds a network from explicit layer parameters. The final
// layer must produce exactly two logits (unfavorable, favorable).
func NewNetwork(inputDim int, layers ...Layer) (*Network, error) {
	if inputDim <= 0 {
		return nil, core.NewConfigError("input_dim", "must be positive")
	}
	if len(layers) == 0 {
		return nil, core.NewConfigError("layers", "at least one layer required")
	}

	n := &Network{inputDim: inputDim}
	prevWidth := inputDim
	for l, layer := range layers {
		outWidth := len(layer.Weights)
		if outWidth == 0 {
			return nil, core.NewConfigError("layers", fmt.Sprintf("layer %d has no rows", l))
		}
		flat := make([]float64, 0, outWidth*prevWidth)
		for r, row := range layer.Weights {
			if len(row) != prevWidth {
				return nil, core.NewConfigError("layers",
					fmt.Sprintf("layer %d row %d has %d weights, expected %d", l, r, len(row), prevWidth))
			}
			flat = append(flat, row...)
		}
		if len(layer.Biases) != outWidth {
			return nil, core.NewConfigError("layers",
				fmt.Sprintf("layer %d has %d biases, expected %d", l, len(layer.Biases), outWidth))
		}
		n.weights = append(n.weights, mat.NewDense(outWidth, prevWidth, flat))
		biases := make([]float64, outWidth)
		copy(biases, layer.Biases)
		n.biases = append(n.biases, biases)
		prevWidth = outWidth
	}
	if prevWidth != 2 {
		return nil, core.NewConfigError("layers",
			fmt.Sprintf("final layer has %d logits, binary classifier requires 2", prevWidth))
	}
	return n, nil
}

// InputDim returns the expected instance width.
func (n *Network) InputDim() int {
	return n.inputDim
}

// NumHiddenLayers returns the number of hidden layers.
func (n *Network) NumHiddenLayers() int {
	return len(n.weights) - 1
}

// HiddenLayerSizes returns the width of each hidden layer.
func (n *Network) HiddenLayerSizes() []int {
	sizes := make([]int, n.NumHiddenLayers())
	for l := range sizes {
		rows, _ := n.weights[l].Dims()
		sizes[l] = rows
	}
	return sizes
}

// FeatureNames returns the input feature names, or nil when the model file
// did not carry them.
func (n *Network) FeatureNames() []string {
	return n.featureNames
}

// Hash returns the fingerprint of the model file this network was loaded
// from, or the empty hash for in-memory networks.
func (n *Network) Hash() core.ModelHash {
	return n.hash
}

// Classify returns the log-odds margin of the favorable class:
// logit[favorable] - logit[unfavorable].
func (n *Network) Classify(instance fairness.Instance) (float64, error) {
	margin, _, err := n.forward(instance, false)
	return margin, err
}

// ClassifyWithActivations returns the decision score together with the
// post-activation vector of every hidden layer, ordered input side first.
func (n *Network) ClassifyWithActivations(instance fairness.Instance) (float64, [][]float64, error) {
	return n.forward(instance, true)
}

// WithAblation installs a scoped intervention and runs fn under it. The
// target unit's activation is zeroed (the neutral reference) on every
// forward pass while fn runs. Restoration is guaranteed on every exit path,
// including a panic inside fn. Overlapping interventions are rejected.
func (n *Network) WithAblation(layer, neuron int, fn func() error) error {
	if n.ablation != nil {
		return core.ErrAblationActive
	}
	if layer < 0 || layer >= n.NumHiddenLayers() {
		return core.NewLayerIndexError(layer, n.NumHiddenLayers())
	}
	width, _ := n.weights[layer].Dims()
	if neuron != ports.AblateWholeLayer && (neuron < 0 || neuron >= width) {
		return core.NewNeuronIndexError(neuron, width)
	}

	n.ablation = &ablationTarget{layer: layer, neuron: neuron}
	defer func() { n.ablation = nil }()

	return fn()
}

// forward runs one inference pass. Hidden layers apply ReLU; the active
// ablation target, if any, is applied immediately after the nonlinearity.
func (n *Network) forward(instance fairness.Instance, capture bool) (float64, [][]float64, error) {
	if len(instance) != n.inputDim {
		return 0, nil, core.NewDimensionMismatchError(len(instance), n.inputDim)
	}

	cur := mat.NewVecDense(len(instance), append([]float64(nil), instance...))
	var activations [][]float64

	last := len(n.weights) - 1
	for l, w := range n.weights {
		rows, _ := w.Dims()
		out := mat.NewVecDense(rows, nil)
		out.MulVec(w, cur)
		for i := 0; i < rows; i++ {
			out.SetVec(i, out.AtVec(i)+n.biases[l][i])
		}

		if l < last {
			for i := 0; i < rows; i++ {
				if out.AtVec(i) < 0 {
					out.SetVec(i, 0)
				}
			}
			if n.ablation != nil && n.ablation.layer == l {
				if n.ablation.neuron == ports.AblateWholeLayer {
					for i := 0; i < rows; i++ {
						out.SetVec(i, 0)
					}
				} else {
					out.SetVec(n.ablation.neuron, 0)
				}
			}
			if capture {
				activations = append(activations, append([]float64(nil), out.RawVector().Data...))
			}
		}
		cur = out
	}

	// Binary margin: favorable logit minus unfavorable logit.
	margin := cur.AtVec(1) - cur.AtVec(0)
	return margin, activations, nil
}
