package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const rule = "================================================================================"

// TextSink writes the human-readable report:
//
//	[0.412 s] sift-128-euclidean | IVF_FLAT | fp32 | nlist=1024 | build 3.120s
//	================================================================================
//	  nprobe =    1, nq = 10000, k =  100, elapse =  0.153s, R@ = 0.3012
//	================================================================================
//	[0.981 s] Test 'sift-128-euclidean/IVF_FLAT' done
type TextSink struct {
	w     io.Writer
	start time.Time
}

// NewTextSink returns a TextSink writing to w. Timestamps are relative to now.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w, start: time.Now()}
}

func (s *TextSink) since() float64 { return time.Since(s.start).Seconds() }

// Begin implements Sink.
func (s *TextSink) Begin(h Header) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%0.3f s] %s | %s | %s", s.since(), h.Dataset, h.Family, h.Precision)
	for _, key := range h.Build.Keys() {
		fmt.Fprintf(&b, " | %s=%d", key, h.Build[key])
	}
	if h.Restored {
		b.WriteString(" | restored")
	}
	fmt.Fprintf(&b, " | build %.3fs\n", h.BuildElapsed.Seconds())
	if h.Err != nil {
		fmt.Fprintf(&b, "  build failed: %v\n", h.Err)
	}
	b.WriteString(rule + "\n")
	_, err := io.WriteString(s.w, b.String())
	return err
}

// Emit implements Sink.
func (s *TextSink) Emit(r Row) error {
	var b strings.Builder
	b.WriteString(" ")
	for _, key := range r.Search.Keys() {
		fmt.Fprintf(&b, " %s = %4d,", key, r.Search[key])
	}
	fmt.Fprintf(&b, " nq = %4d, k = %4d, elapse = %6.3fs, R@ = %.4f", r.NQ, r.K, r.Elapsed.Seconds(), r.Recall)
	if r.Err != nil {
		fmt.Fprintf(&b, ", error = %v", r.Err)
	}
	b.WriteString("\n")
	_, err := io.WriteString(s.w, b.String())
	return err
}

// End implements Sink.
func (s *TextSink) End(h Header) error {
	_, err := fmt.Fprintf(s.w, "%s\n[%.3f s] Test '%s/%s' done\n\n", rule, s.since(), h.Dataset, h.Family)
	return err
}

// Close implements Sink.
func (s *TextSink) Close() error { return nil }
