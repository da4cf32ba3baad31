// Package testkit builds deterministic synthetic fixtures: hand-weighted
// networks with a known discrimination pathway, and credit-style candidate
// pools with protected columns. Tests and the demo session both use them.
package testkit

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"fairlens/adapters/mlp"
	"fairlens/domain/fairness"
)

// Feature layout of every fixture: income and debt are behavioral, gender is
// the protected column.
const (
	FeatureIncome = 0
	FeatureDebt   = 1
	FeatureGender = 2
)

// FeatureNames returns the fixture feature ordering.
func FeatureNames() []string {
	return []string{"income", "debt", "gender"}
}

// GenderAttribute is the protected attribute config for the fixtures.
func GenderAttribute() fairness.ProtectedAttribute {
	return fairness.ProtectedAttribute{Name: "gender", Index: FeatureGender, Values: []float64{0, 1}}
}

// biasedLayers routes the entire gender signal through neuron 0 of each
// hidden layer: hidden0[0] = relu(4*gender), hidden0[1] carries the
// income/debt signal, hidden1 passes both through unchanged, and the output
// margin is hidden1[0] - 0.3*hidden1[1]. Flipping gender 0 -> 1 moves the
// margin by exactly 4, so ablating neuron 0 in either hidden layer removes
// the discrimination while ablating neuron 1 leaves it intact.
func biasedLayers(genderWeight float64) []mlp.Layer {
	return []mlp.Layer{
		{
			Weights: [][]float64{
				{0, 0, genderWeight},
				{0.8, -0.5, 0},
			},
			Biases: []float64{0, 1},
		},
		{
			Weights: [][]float64{
				{1, 0},
				{0, 1},
			},
			Biases: []float64{0, 0},
		},
		{
			Weights: [][]float64{
				{0, 0.6},
				{1, 0.3},
			},
			Biases: []float64{0, 0},
		},
	}
}

// BiasedNetwork returns a classifier whose decision depends on gender
// through a known pathway.
func BiasedNetwork() *mlp.Network {
	network, err := mlp.NewNetwork(3, biasedLayers(4)...)
	if err != nil {
		// Fixture weights are static; construction cannot fail.
		panic(err)
	}
	return network
}

// FairNetwork returns the same topology with the gender pathway zeroed.
func FairNetwork() *mlp.Network {
	network, err := mlp.NewNetwork(3, biasedLayers(0)...)
	if err != nil {
		panic(err)
	}
	return network
}

// CreditPool generates a seeded synthetic applicant pool plus approval
// labels. Identical seeds yield identical pools.
func CreditPool(n int, seed int64) (*fairness.CandidatePool, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	instances := make([]fairness.Instance, n)
	labels := make([]float64, n)
	for i := range instances {
		income := rnd.Float64()
		debt := rnd.Float64()
		gender := float64(rnd.Intn(2))
		instances[i] = fairness.Instance{income, debt, gender}
		if income > debt {
			labels[i] = 1
		}
	}
	pool, err := fairness.NewCandidatePool(instances)
	if err != nil {
		panic(err)
	}
	return pool, labels
}

// WriteModelFile saves the biased fixture network in the on-disk model
// layout so ingestion and API tests can exercise the load path.
func WriteModelFile(path string) error {
	return mlp.SaveModel(path, mlp.ModelFile{
		InputDim:     3,
		Layers:       biasedLayers(4),
		FeatureNames: FeatureNames(),
	})
}

// WriteCreditCSV writes a seeded synthetic dataset with an approval label
// column, matching the pool produced by CreditPool for the same seed.
func WriteCreditCSV(path string, n int, seed int64) error {
	pool, labels := CreditPool(n, seed)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating fixture CSV: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"income", "debt", "gender", "approved"}); err != nil {
		return err
	}
	for i := 0; i < pool.Len(); i++ {
		inst := pool.Instance(i)
		row := []string{
			strconv.FormatFloat(inst[FeatureIncome], 'f', -1, 64),
			strconv.FormatFloat(inst[FeatureDebt], 'f', -1, 64),
			strconv.FormatFloat(inst[FeatureGender], 'f', -1, 64),
			strconv.FormatFloat(labels[i], 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
