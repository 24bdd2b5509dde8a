package vecbench

import (
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/lifecycle"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/recall"
	"github.com/hupe1980/vecbench/sweep"
)

var (
	// ErrShapeMismatch is returned for inconsistent matrix shapes. Fatal.
	ErrShapeMismatch = precision.ErrShapeMismatch

	// ErrUnknownFamily is returned for an unregistered index family. Fatal.
	ErrUnknownFamily = index.ErrUnknownFamily

	// ErrAlreadyBuilt is returned by a second Build of the same index.
	ErrAlreadyBuilt = lifecycle.ErrAlreadyBuilt

	// ErrNotBuilt is returned when searching or persisting an unbuilt index.
	ErrNotBuilt = lifecycle.ErrNotBuilt

	// ErrHandleLive is returned when a new index is created before the
	// previous one was released.
	ErrHandleLive = lifecycle.ErrHandleLive

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = recall.ErrInvalidK
)

// LeafError locates a failure within the sweep.
//
// Use errors.As to extract it from the error returned by Bench.Run.
type LeafError = sweep.LeafError

// IsFatal reports whether err aborted the whole sweep rather than a single
// family run.
func IsFatal(err error) bool { return sweep.IsFatal(err) }
