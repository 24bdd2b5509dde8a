package precision

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch reports a matrix whose element count or dimensionality
// does not match what the run expects. It is fatal to the run.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeError carries the context of a shape mismatch.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: want %d, got %d", ErrShapeMismatch, e.What, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }
