package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs reports in JSON format.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
//  1. It's sufficient for a handful of flat structs
//  2. Every JSON consumer in the module already uses it
type JSONWriter struct {
	baseWriter
	indent  string
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// WithVersion records the webcrawler version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Document is the top-level JSON object.
type Document struct {
	Version string         `json:"version,omitempty"`
	Summary Summary        `json:"summary"`
	Crawls  []*CrawlReport `json:"crawls"`
}

// Write outputs all reports as a single JSON document.
func (w *JSONWriter) Write(reports []*CrawlReport) (int, error) {
	if reports == nil {
		reports = []*CrawlReport{}
	}
	doc := Document{
		Version: w.version,
		Summary: Summarize(reports),
		Crawls:  reports,
	}

	var (
		data []byte
		err  error
	)
	if w.indent != "" {
		data, err = json.MarshalIndent(doc, "", w.indent)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')
	return w.output.Write(data)
}
