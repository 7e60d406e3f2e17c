package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter prints one line per address:
//
//	OK: https://example.com/
//	FAIL: https://example.com/missing - fetch https://example.com/missing: http status: 404 Not Found
//
// followed by a per-seed summary line. Summaries can be turned off for
// piping into other tools.
type SimpleWriter struct {
	baseWriter
	summary bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithSummary controls the per-seed summary lines.
func WithSummary(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.summary = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		summary:    true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs every report.
func (w *SimpleWriter) Write(reports []*CrawlReport) (int, error) {
	var sb strings.Builder
	for _, r := range reports {
		w.writeReport(&sb, r)
	}
	if w.summary && len(reports) > 1 {
		s := Summarize(reports)
		fmt.Fprintf(&sb, "Total: %d seeds, %d downloaded, %d failed\n", s.Seeds, s.Downloaded, s.Errors())
	}
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, r *CrawlReport) {
	if r.Failed() {
		fmt.Fprintf(sb, "FAIL: %s - %s\n", r.Seed, r.Failure)
		return
	}
	for _, address := range r.Downloaded {
		fmt.Fprintf(sb, "OK: %s\n", address)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(sb, "FAIL: %s - %s\n", e.URL, e.Error)
	}
	if w.summary {
		fmt.Fprintf(sb, "Seed %s (depth %d): %d downloaded, %d failed in %s\n",
			r.Seed, r.Depth, len(r.Downloaded), len(r.Errors), r.Elapsed().Round(time.Millisecond))
	}
}
