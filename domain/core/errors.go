package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrSessionNotFound = fmt.Errorf("%w: audit session", ErrNotFound)
	ErrModelNotFound   = fmt.Errorf("%w: model file", ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("%w: column", ErrNotFound)

	// Configuration errors
	ErrConfigInvalid     = errors.New("invalid analysis configuration")
	ErrOracleUnavailable = errors.New("no trained oracle supplied")
	ErrEmptyPool         = errors.New("candidate pool is empty")
	ErrNoProtectedValues = errors.New("protected attribute has no candidate values")

	// Topology errors
	ErrDimensionMismatch = errors.New("instance width does not match oracle input width")
	ErrLayerIndex        = errors.New("layer index outside model topology")
	ErrNeuronIndex       = errors.New("neuron index outside layer width")

	// Intervention errors
	ErrAblationActive   = errors.New("ablation already active on oracle")
	ErrResidualAblation = errors.New("ablation left residual model state")

	// Numeric errors
	ErrNumericInstability = errors.New("non-finite decision score")
)

// Error constructors with context
func NewDimensionMismatchError(got, want int) error {
	return fmt.Errorf("%w: got %d features, oracle expects %d", ErrDimensionMismatch, got, want)
}

func NewLayerIndexError(idx, numLayers int) error {
	return fmt.Errorf("%w: layer %d, model has %d hidden layers", ErrLayerIndex, idx, numLayers)
}

func NewNeuronIndexError(idx, width int) error {
	return fmt.Errorf("%w: neuron %d, layer has %d neurons", ErrNeuronIndex, idx, width)
}

func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfigInvalid, field, reason)
}

func NewAttributeError(attribute string, reason string) error {
	return fmt.Errorf("%w: attribute %q: %s", ErrConfigInvalid, attribute, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigInvalid) ||
		errors.Is(err, ErrOracleUnavailable) ||
		errors.Is(err, ErrEmptyPool) ||
		errors.Is(err, ErrNoProtectedValues)
}

func IsTopologyError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrLayerIndex) ||
		errors.Is(err, ErrNeuronIndex)
}

func IsInterventionError(err error) bool {
	return errors.Is(err, ErrAblationActive) ||
		errors.Is(err, ErrResidualAblation)
}
