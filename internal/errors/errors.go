package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeOracleUnavailable  = "ORACLE_UNAVAILABLE"
	CodeDimensionMismatch  = "DIMENSION_MISMATCH"
	CodeLayerIndexInvalid  = "LAYER_INDEX_INVALID"
	CodeNeuronIndexInvalid = "NEURON_INDEX_INVALID"
	CodeNumericInstability = "NUMERIC_INSTABILITY"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func OracleUnavailable() *AppError {
	return New(CodeOracleUnavailable, "no trained model supplied - load a model first")
}

func DimensionMismatch(got, want int) *AppError {
	return New(CodeDimensionMismatch, fmt.Sprintf("instance has %d features, oracle expects %d", got, want))
}

func LayerIndexInvalid(idx, numLayers int) *AppError {
	return New(CodeLayerIndexInvalid, fmt.Sprintf("layer %d outside model topology (%d hidden layers)", idx, numLayers))
}

func NeuronIndexInvalid(idx, width int) *AppError {
	return New(CodeNeuronIndexInvalid, fmt.Sprintf("neuron %d outside layer width %d", idx, width))
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
