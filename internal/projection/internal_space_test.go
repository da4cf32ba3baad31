package projection

import (
	"context"
	"errors"
	"math"
	"testing"

	"fairlens/adapters/mlp"
	"fairlens/domain/core"
	"fairlens/internal/testkit"
)

func TestProjectShapesMatchTopology(t *testing.T) {
	oracle := testkit.BiasedNetwork()
	pool, labels := testkit.CreditPool(20, 3)
	analyzer, err := NewAnalyzer(oracle)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	result, err := analyzer.Project(context.Background(), pool, testkit.GenderAttribute(), labels, 0)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	if result.NumSamples != 20 {
		t.Errorf("NumSamples = %d, want 20", result.NumSamples)
	}
	if result.Method != "pca" {
		t.Errorf("Method = %q, want pca", result.Method)
	}
	if len(result.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(result.Layers))
	}
	for l, layer := range result.Layers {
		if layer.LayerIndex != l {
			t.Errorf("layer %d carries index %d", l, layer.LayerIndex)
		}
		if len(layer.X) != 20 || len(layer.Y) != 20 {
			t.Errorf("layer %d coords = %d/%d points, want 20", l, len(layer.X), len(layer.Y))
		}
	}
	if len(result.Decisions) != 20 || len(result.Protected) != 20 || len(result.Labels) != 20 {
		t.Fatal("per-sample slices not aligned with sample count")
	}

	for i := 0; i < pool.Len(); i++ {
		if result.Protected[i] != pool.Instance(i)[testkit.FeatureGender] {
			t.Fatalf("protected value %d does not match pool", i)
		}
		if math.IsNaN(result.Decisions[i]) {
			t.Fatalf("decision %d is NaN", i)
		}
	}
}

func TestProjectCapsSamples(t *testing.T) {
	analyzer, _ := NewAnalyzer(testkit.BiasedNetwork())
	pool, _ := testkit.CreditPool(50, 3)

	result, err := analyzer.Project(context.Background(), pool, testkit.GenderAttribute(), nil, 10)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if result.NumSamples != 10 {
		t.Errorf("NumSamples = %d, want 10", result.NumSamples)
	}
	if len(result.Layers[0].X) != 10 {
		t.Errorf("layer coords = %d points, want 10", len(result.Layers[0].X))
	}
	if result.Labels != nil {
		t.Error("expected no labels when none were supplied")
	}
}

func TestProjectReducesWideLayers(t *testing.T) {
	// A hidden layer wider than 2 exercises the PCA reduction path.
	net, err := mlp.NewNetwork(3,
		mlp.Layer{
			Weights: [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}},
			Biases:  []float64{0, 0, 0, 0},
		},
		mlp.Layer{
			Weights: [][]float64{{1, 0, 0, 0}, {0, 1, 0, 1}},
			Biases:  []float64{0, 0},
		},
	)
	if err != nil {
		t.Fatalf("NewNetwork failed: %v", err)
	}
	analyzer, _ := NewAnalyzer(net)
	pool, _ := testkit.CreditPool(30, 5)

	result, err := analyzer.Project(context.Background(), pool, testkit.GenderAttribute(), nil, 0)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(result.Layers) != 1 {
		t.Fatalf("layers = %d, want 1", len(result.Layers))
	}
	if len(result.Layers[0].X) != 30 || len(result.Layers[0].Y) != 30 {
		t.Fatal("reduced coordinates not aligned with sample count")
	}
	for i := range result.Layers[0].X {
		if math.IsNaN(result.Layers[0].X[i]) || math.IsNaN(result.Layers[0].Y[i]) {
			t.Fatalf("non-finite coordinate at %d", i)
		}
	}
}

func TestProjectValidation(t *testing.T) {
	analyzer, _ := NewAnalyzer(testkit.BiasedNetwork())
	ctx := context.Background()

	if _, err := analyzer.Project(ctx, nil, testkit.GenderAttribute(), nil, 0); !errors.Is(err, core.ErrEmptyPool) {
		t.Errorf("nil pool: expected ErrEmptyPool, got %v", err)
	}

	pool, _ := testkit.CreditPool(5, 3)
	bad := testkit.GenderAttribute()
	bad.Index = 42
	if _, err := analyzer.Project(ctx, pool, bad, nil, 0); !core.IsConfigError(err) {
		t.Errorf("bad attribute index: expected config error, got %v", err)
	}

	if _, err := NewAnalyzer(nil); !errors.Is(err, core.ErrOracleUnavailable) {
		t.Errorf("nil oracle: expected ErrOracleUnavailable, got %v", err)
	}
}
