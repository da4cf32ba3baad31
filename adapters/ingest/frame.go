package ingest

import (
	"fmt"
	"strconv"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
)

// Frame holds a loaded dataset as raw string cells with a consistent header
// order.
type Frame struct {
	Path    string
	Headers []string
	Cells   [][]string
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int {
	return len(f.Cells)
}

// ColumnIndex resolves a header name to its position.
func (f *Frame) ColumnIndex(name string) (int, error) {
	for i, h := range f.Headers {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrColumnNotFound, name)
}

// SampleRows returns up to n rows as header-keyed maps for previews.
func (f *Frame) SampleRows(n int) []map[string]string {
	if n > len(f.Cells) {
		n = len(f.Cells)
	}
	samples := make([]map[string]string, n)
	for i := 0; i < n; i++ {
		row := make(map[string]string, len(f.Headers))
		for j, h := range f.Headers {
			row[h] = f.Cells[i][j]
		}
		samples[i] = row
	}
	return samples
}

// FeatureMatrix coerces the frame into numeric instances, excluding the
// label column from the features and returning it separately. Non-numeric
// cells are label-encoded per column: each distinct string maps to a code
// assigned in first-appearance order, so the encoding is deterministic for a
// fixed file.
func (f *Frame) FeatureMatrix(labelColumn string) ([]fairness.Instance, []float64, []string, error) {
	labelIdx := -1
	if labelColumn != "" {
		idx, err := f.ColumnIndex(labelColumn)
		if err != nil {
			return nil, nil, nil, err
		}
		labelIdx = idx
	}

	coercers := make([]*columnCoercer, len(f.Headers))
	for j := range coercers {
		coercers[j] = newColumnCoercer()
	}

	featureNames := make([]string, 0, len(f.Headers))
	for j, h := range f.Headers {
		if j != labelIdx {
			featureNames = append(featureNames, h)
		}
	}

	instances := make([]fairness.Instance, 0, len(f.Cells))
	var labels []float64
	for _, row := range f.Cells {
		instance := make(fairness.Instance, 0, len(featureNames))
		for j, cell := range row {
			value := coercers[j].coerce(cell)
			if j == labelIdx {
				labels = append(labels, value)
			} else {
				instance = append(instance, value)
			}
		}
		instances = append(instances, instance)
	}
	return instances, labels, featureNames, nil
}

// columnCoercer converts one column's cells to float64, falling back to
// first-appearance label encoding for non-numeric values.
type columnCoercer struct {
	codes map[string]float64
}

func newColumnCoercer() *columnCoercer {
	return &columnCoercer{codes: make(map[string]float64)}
}

func (c *columnCoercer) coerce(cell string) float64 {
	if cell == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	if code, ok := c.codes[cell]; ok {
		return code
	}
	code := float64(len(c.codes))
	c.codes[cell] = code
	return code
}
