package report

import "io"

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files or stdout with the same
// API.
type Writer interface {
	// Write outputs the reports to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(reports []*CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface writes reports, not
// raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the reports to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(reports []*CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
