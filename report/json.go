package report

import (
	"encoding/json"
	"io"

	"github.com/hupe1980/vecbench/index"
)

// jsonRow is the wire form of a Row.
type jsonRow struct {
	Dataset   string       `json:"dataset"`
	Family    string       `json:"family"`
	Precision string       `json:"precision"`
	Metric    string       `json:"metric"`
	Build     index.Params `json:"build"`
	Search    index.Params `json:"search"`
	NQ        int          `json:"nq"`
	K         int          `json:"k"`
	ElapsedS  float64      `json:"elapsed_s"`
	Recall    float64      `json:"recall"`
	Error     string       `json:"error,omitempty"`
}

// JSONSink writes one JSON object per row (JSON Lines).
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink returns a JSONSink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Begin implements Sink.
func (s *JSONSink) Begin(Header) error { return nil }

// Emit implements Sink.
func (s *JSONSink) Emit(r Row) error {
	return s.enc.Encode(jsonRow{
		Dataset:   r.Dataset,
		Family:    r.Family,
		Precision: r.Precision.String(),
		Metric:    r.Metric.String(),
		Build:     r.Build,
		Search:    r.Search,
		NQ:        r.NQ,
		K:         r.K,
		ElapsedS:  r.Elapsed.Seconds(),
		Recall:    r.Recall,
		Error:     r.ErrString(),
	})
}

// End implements Sink.
func (s *JSONSink) End(Header) error { return nil }

// Close implements Sink.
func (s *JSONSink) Close() error { return nil }
