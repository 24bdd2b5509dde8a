package report

import (
	"errors"
	"time"

	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
)

// Measure runs fn once and returns its wall-clock duration.
func Measure(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// Header describes one built index: a family run under one build combination.
type Header struct {
	Dataset   string
	Family    string
	Precision precision.Type
	Metric    metric.Metric
	Build     index.Params

	// SearchAxes names the search parameters the rows of this header vary.
	SearchAxes   []string
	// BuildElapsed covers Build, plus Persist and Restore for round trips.
	BuildElapsed time.Duration
	Restored     bool
	Err          error
}

// Row is the result of one sweep leaf.
type Row struct {
	Dataset   string
	Family    string
	Precision precision.Type
	Metric    metric.Metric
	Build     index.Params
	// Search holds the search combination of this leaf; the effective
	// search configuration is Build overlaid with Search.
	Search    index.Params
	NQ        int
	K         int
	Elapsed   time.Duration
	Recall    float64
	Err       error
}

// ErrString returns the row error message, or "".
func (r Row) ErrString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Sink receives report events.
type Sink interface {
	Begin(h Header) error
	Emit(r Row) error
	End(h Header) error
	Close() error
}

// MultiSink fans events out to every sink. All sinks see every event; the
// errors are joined.
type MultiSink []Sink

// Begin implements Sink.
func (m MultiSink) Begin(h Header) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Begin(h))
	}
	return errors.Join(errs...)
}

// Emit implements Sink.
func (m MultiSink) Emit(r Row) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Emit(r))
	}
	return errors.Join(errs...)
}

// End implements Sink.
func (m MultiSink) End(h Header) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.End(h))
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	Headers []Header
	Rows    []Row
	Ended   int
	Closed  bool
}

// Begin implements Sink.
func (r *Recorder) Begin(h Header) error {
	r.Headers = append(r.Headers, h)
	return nil
}

// Emit implements Sink.
func (r *Recorder) Emit(row Row) error {
	r.Rows = append(r.Rows, row)
	return nil
}

// End implements Sink.
func (r *Recorder) End(Header) error {
	r.Ended++
	return nil
}

// Close implements Sink.
func (r *Recorder) Close() error {
	r.Closed = true
	return nil
}
