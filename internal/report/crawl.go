package report

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/nao1215/webcrawler/internal/batch"
	"github.com/nao1215/webcrawler/internal/crawler"
)

// Kinds of page errors.
const (
	KindFetch   = "fetch"
	KindExtract = "extract"
	KindPanic   = "panic"
)

// PageError is one failed address.
type PageError struct {
	URL   string `json:"url"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// CrawlReport is the printable result of crawling one seed.
type CrawlReport struct {
	Seed       string      `json:"seed"`
	Depth      int         `json:"depth"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Downloaded []string    `json:"downloaded"`
	Errors     []PageError `json:"errors"`

	// Failure is set when the crawl could not run at all.
	Failure string `json:"failure,omitempty"`

	// RunID is the history ID when the crawl was saved.
	RunID int64 `json:"run_id,omitempty"`
}

// FromOutcome converts a batch outcome into a report.
// Addresses are sorted so the output is stable between runs.
func FromOutcome(o batch.Outcome) *CrawlReport {
	r := &CrawlReport{
		Seed:       o.Job.Seed,
		Depth:      o.Job.Depth,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
		Downloaded: slices.Sorted(slices.Values(o.Result.Downloaded)),
		Errors:     make([]PageError, 0, len(o.Result.Errors)),
	}
	if r.Downloaded == nil {
		r.Downloaded = []string{}
	}
	if o.Err != nil {
		r.Failure = o.Err.Error()
	}
	for _, address := range slices.Sorted(maps.Keys(o.Result.Errors)) {
		err := o.Result.Errors[address]
		r.Errors = append(r.Errors, PageError{URL: address, Kind: errorKind(err), Error: err.Error()})
	}
	return r
}

func errorKind(err error) string {
	var extractErr *crawler.ExtractionError
	switch {
	case errors.Is(err, crawler.ErrTaskPanic):
		return KindPanic
	case errors.As(err, &extractErr):
		return KindExtract
	default:
		return KindFetch
	}
}

// Elapsed returns how long the crawl took.
func (r *CrawlReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the crawl itself could not run.
func (r *CrawlReport) Failed() bool {
	return r.Failure != ""
}

// Summary holds totals across several crawl reports.
type Summary struct {
	Seeds       int `json:"seeds"`
	FailedSeeds int `json:"failed_seeds"`
	Downloaded  int `json:"downloaded"`
	FetchErrors int `json:"fetch_errors"`
	ExtractErrs int `json:"extract_errors"`
	Panics      int `json:"panics"`
}

// Errors returns the number of failed addresses.
func (s Summary) Errors() int {
	return s.FetchErrors + s.ExtractErrs + s.Panics
}

// Summarize totals reports.
func Summarize(reports []*CrawlReport) Summary {
	s := Summary{Seeds: len(reports)}
	for _, r := range reports {
		if r.Failed() {
			s.FailedSeeds++
		}
		s.Downloaded += len(r.Downloaded)
		for _, e := range r.Errors {
			switch e.Kind {
			case KindExtract:
				s.ExtractErrs++
			case KindPanic:
				s.Panics++
			default:
				s.FetchErrors++
			}
		}
	}
	return s
}
