package mlp

import (
	"encoding/json"
	"fmt"
	"os"

	"fairlens/domain/core"
)

// ModelFile is the on-disk JSON layout for pretrained weights. Training
// itself happens outside this service; sessions only load the result.
type ModelFile struct {
	InputDim     int      `json:"input_dim"`
	Layers       []Layer  `json:"layers"`
	FeatureNames []string `json:"feature_names,omitempty"`
}

// LoadNetwork reads a pretrained model from a JSON weights file and
// fingerprints the raw bytes so results can be tied to exact weights.
func LoadNetwork(path string) (*Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("reading model file %s: %w", path, err)
	}

	var file ModelFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, core.NewConfigError("model_file", fmt.Sprintf("%s: %v", path, err))
	}

	network, err := NewNetwork(file.InputDim, file.Layers...)
	if err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}
	network.featureNames = file.FeatureNames
	network.hash = core.ModelHash(core.NewHash(raw))
	return network, nil
}

// SaveModel writes network parameters in the ModelFile layout. Used by the
// testkit and by tooling that exports trained weights for auditing.
func SaveModel(path string, file ModelFile) error {
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model file: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing model file %s: %w", path, err)
	}
	return nil
}
