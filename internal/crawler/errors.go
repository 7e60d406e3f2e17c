package crawler

import (
	"errors"
	"fmt"
)

// Construction and usage errors.
// These are returned directly to the caller and never recorded in a Result.
var (
	// ErrNilDownloader is returned by New when no Downloader is given.
	ErrNilDownloader = errors.New("crawler: downloader must not be nil")

	// ErrInvalidDownloaders is returned by New when the download pool size is not positive.
	ErrInvalidDownloaders = errors.New("crawler: download pool size must be positive")

	// ErrInvalidExtractors is returned by New when the extraction pool size is not positive.
	ErrInvalidExtractors = errors.New("crawler: extraction pool size must be positive")

	// ErrInvalidPerHost is returned by New when the per-host cap is not positive.
	ErrInvalidPerHost = errors.New("crawler: per-host limit must be positive")

	// ErrClosed is returned by Download after Close has been called.
	ErrClosed = errors.New("crawler: closed")

	// ErrShutdownTimeout is returned by Close when workers are still busy
	// after the grace period and the forced stop.
	ErrShutdownTimeout = errors.New("crawler: workers did not terminate in time")

	// ErrTaskPanic wraps a panic recovered from a task.
	ErrTaskPanic = errors.New("crawler: task panicked")
)

// FetchError reports that an address could not be downloaded.
type FetchError struct {
	Address string
	Err     error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionError reports that links could not be extracted from a
// downloaded document.
type ExtractionError struct {
	Address string
	Err     error
}

// Error implements error.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract links from %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
