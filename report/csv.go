package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{"dataset", "family", "precision", "metric", "build", "search", "nq", "k", "elapsed_s", "recall", "error"}

// CSVSink writes one CSV record per row, preceded by a header record.
type CSVSink struct {
	w      *csv.Writer
	header bool
}

// NewCSVSink returns a CSVSink writing to w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Begin implements Sink.
func (s *CSVSink) Begin(Header) error {
	if s.header {
		return nil
	}
	s.header = true
	if err := s.w.Write(csvHeader); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Emit implements Sink.
func (s *CSVSink) Emit(r Row) error {
	rec := []string{
		r.Dataset,
		r.Family,
		r.Precision.String(),
		r.Metric.String(),
		r.Build.String(),
		r.Search.String(),
		strconv.Itoa(r.NQ),
		strconv.Itoa(r.K),
		strconv.FormatFloat(r.Elapsed.Seconds(), 'f', 6, 64),
		strconv.FormatFloat(r.Recall, 'f', 6, 64),
		r.ErrString(),
	}
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// End implements Sink.
func (s *CSVSink) End(Header) error { return nil }

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.w.Error()
}
