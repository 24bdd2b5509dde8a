package dataset

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// ErrNoGroundTruth is returned when a dataset has an empty ground truth.
var ErrNoGroundTruth = errors.New("dataset: empty ground truth")

// Dataset is an immutable benchmark dataset in canonical fp32.
type Dataset struct {
	Name        string
	Metric      metric.Metric
	Base        *precision.Matrix
	Queries     *precision.Matrix
	GroundTruth [][]int64
}

// Dim returns the vector dimensionality.
func (d *Dataset) Dim() int { return d.Base.Dim() }

// GroundTruthWidth returns the length of the shortest ground-truth list.
func (d *Dataset) GroundTruthWidth() int {
	if len(d.GroundTruth) == 0 {
		return 0
	}
	w := len(d.GroundTruth[0])
	for _, ids := range d.GroundTruth[1:] {
		w = min(w, len(ids))
	}
	return w
}

// Validate checks the shapes once at load time.
func (d *Dataset) Validate() error {
	if d.Base == nil || d.Queries == nil {
		return fmt.Errorf("dataset %s: %w: missing base or query matrix", d.Name, precision.ErrShapeMismatch)
	}
	if d.Base.Type() != precision.Float32 || d.Queries.Type() != precision.Float32 {
		return fmt.Errorf("dataset %s: %w: matrices must be fp32", d.Name, precision.ErrShapeMismatch)
	}
	if d.Queries.Dim() != d.Base.Dim() {
		return &precision.ShapeError{What: "query dim", Want: d.Base.Dim(), Got: d.Queries.Dim()}
	}
	if len(d.GroundTruth) != d.Queries.Rows() {
		return &precision.ShapeError{What: "ground truth rows", Want: d.Queries.Rows(), Got: len(d.GroundTruth)}
	}
	if d.Queries.Rows() > 0 && d.GroundTruthWidth() == 0 {
		return fmt.Errorf("dataset %s: %w", d.Name, ErrNoGroundTruth)
	}
	return nil
}
