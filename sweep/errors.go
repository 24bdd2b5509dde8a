package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/lifecycle"
	"github.com/hupe1980/vecbench/precision"
)

// Stage names the step of a sweep leaf that failed.
type Stage string

// Stages of a family run, in execution order.
const (
	StageConvert Stage = "convert"
	StageCreate  Stage = "create"
	StageBuild   Stage = "build"
	StagePersist Stage = "persist"
	StageRestore Stage = "restore"
	StageSearch  Stage = "search"
	StageRecall  Stage = "recall"
	StageReport  Stage = "report"
	StageRelease Stage = "release"
)

// LeafError records where in the sweep a failure happened.
type LeafError struct {
	Family    string
	Precision precision.Type
	Stage     Stage
	Build     index.Params
	Search    index.Params
	NQ        int
	K         int
	Err       error
}

func (e *LeafError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sweep: %s %s/%s", e.Stage, e.Family, e.Precision)
	if len(e.Build) > 0 {
		fmt.Fprintf(&b, " build(%s)", e.Build)
	}
	if len(e.Search) > 0 {
		fmt.Fprintf(&b, " search(%s)", e.Search)
	}
	if e.NQ > 0 {
		fmt.Fprintf(&b, " nq=%d", e.NQ)
	}
	if e.K > 0 {
		fmt.Fprintf(&b, " k=%d", e.K)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *LeafError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the whole sweep rather than only
// the family run it happened in.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, precision.ErrShapeMismatch) ||
		errors.Is(err, index.ErrUnknownFamily) ||
		errors.Is(err, lifecycle.ErrHandleLive) ||
		errors.Is(err, lifecycle.ErrAlreadyBuilt) ||
		errors.Is(err, lifecycle.ErrNotBuilt) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var le *LeafError
	return errors.As(err, &le) && le.Stage == StageReport
}
