package crawler

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Default construction parameters.
const (
	// DefaultPerHost is the default number of concurrent downloads per origin.
	DefaultPerHost = 3

	// DefaultShutdownGrace is how long Close waits for each pool to drain
	// before it stops the pool forcibly, and again after that.
	DefaultShutdownGrace = 10 * time.Second
)

// DefaultPoolSize returns the default size of each worker pool: two workers
// per logical CPU.
func DefaultPoolSize() int {
	return runtime.NumCPU() * 2
}

// Crawler downloads pages recursively up to a depth limit while bounding
// global and per-host concurrency.
//
// A Crawler may serve several Download calls, sequentially or concurrently.
// Each call gets its own dedup set and per-host counters.
type Crawler struct {
	downloader Downloader

	downloaders int
	extractors  int
	perHost     int
	grace       time.Duration
	logger      *slog.Logger

	downloads *workerPool
	extracts  *workerPool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithDownloaders sets the number of concurrent downloads.
func WithDownloaders(n int) Option {
	return func(c *Crawler) {
		c.downloaders = n
	}
}

// WithExtractors sets the number of concurrent link extractions.
func WithExtractors(n int) Option {
	return func(c *Crawler) {
		c.extractors = n
	}
}

// WithPerHost sets the maximum number of concurrent downloads per origin.
func WithPerHost(n int) Option {
	return func(c *Crawler) {
		c.perHost = n
	}
}

// WithShutdownGrace sets how long Close waits for the pools to drain.
func WithShutdownGrace(d time.Duration) Option {
	return func(c *Crawler) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithLogger sets the logger. A nil logger leaves slog.Default in place.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Crawler and starts its worker pools.
// It returns an error if any pool size or the per-host cap is not positive.
func New(downloader Downloader, opts ...Option) (*Crawler, error) {
	if downloader == nil {
		return nil, ErrNilDownloader
	}

	c := &Crawler{
		downloader:  downloader,
		downloaders: DefaultPoolSize(),
		extractors:  DefaultPoolSize(),
		perHost:     DefaultPerHost,
		grace:       DefaultShutdownGrace,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.downloaders <= 0:
		return nil, ErrInvalidDownloaders
	case c.extractors <= 0:
		return nil, ErrInvalidExtractors
	case c.perHost <= 0:
		return nil, ErrInvalidPerHost
	}

	c.downloads = newWorkerPool(c.downloaders)
	c.extracts = newWorkerPool(c.extractors)

	c.logger.Debug("crawler started",
		"downloaders", c.downloaders,
		"extractors", c.extractors,
		"perHost", c.perHost,
	)

	return c, nil
}

// Download crawls from address, following links up to depth levels: depth 1
// fetches only address itself. It returns once every spawned task has
// finished.
//
// Per-address failures are reported in the Result; the error return is
// reserved for misuse (ErrClosed). Cancelling ctx makes pending downloads
// fail quickly but the call still drains before returning.
func (c *Crawler) Download(ctx context.Context, address string, depth int) (Result, error) {
	if c.closed.Load() {
		return Result{}, ErrClosed
	}
	if depth <= 0 {
		return Result{Downloaded: make([]string, 0), Errors: make(map[string]error)}, nil
	}

	address = Normalize(address)
	run := &crawl{
		ctx:        ctx,
		downloader: c.downloader,
		downloads:  c.downloads,
		extracts:   c.extracts,
		state:      newCrawlState(c.perHost),
		logger:     c.logger,
	}

	start := time.Now()
	run.spawn(newDownloadTask(address, depth))
	result := run.drain()

	c.logger.Info("crawl finished",
		"seed", address,
		"depth", depth,
		"downloaded", len(result.Downloaded),
		"errors", len(result.Errors),
		"requeued", run.requeued.Load(),
		"elapsed", time.Since(start),
	)

	return result, nil
}

// Close stops both worker pools. It must only be called once no Download
// is in flight. Further calls return the result of the first.
func (c *Crawler) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		var wg sync.WaitGroup
		var downloadsOK, extractsOK bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			downloadsOK = c.downloads.shutdown(c.grace)
		}()
		go func() {
			defer wg.Done()
			extractsOK = c.extracts.shutdown(c.grace)
		}()
		wg.Wait()

		var errs []error
		if !downloadsOK {
			c.logger.Error("download pool did not terminate in time")
			errs = append(errs, ErrShutdownTimeout)
		}
		if !extractsOK {
			c.logger.Error("extraction pool did not terminate in time")
			errs = append(errs, ErrShutdownTimeout)
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
