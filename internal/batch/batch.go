package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/webcrawler/internal/crawler"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of seeds crawled at the same time.
const DefaultConcurrency = 4

// Crawler is the part of crawler.Crawler the processor needs.
type Crawler interface {
	Download(ctx context.Context, address string, depth int) (crawler.Result, error)
}

// Job is a single seed to crawl.
type Job struct {
	Seed  string
	Depth int
}

// Outcome is the result of one Job.
// Err is set when the crawl itself could not run (closed crawler, bad seed,
// cancellation); per-page failures live in Result.Errors.
type Outcome struct {
	Job        Job
	Result     crawler.Result
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Processor runs crawl jobs concurrently.
//
// Design decision: We use errgroup.SetLimit rather than the crawler's own
// worker pools because:
//  1. Seeds are few and long-running, so one goroutine per seed is cheap
//  2. Submitting a whole crawl to a download worker would hold that worker
//     hostage while the crawl waits on the same pool
type Processor struct {
	crawler     Crawler
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency sets the maximum number of seeds crawled at once.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger for batch progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Processor crawling on c.
func New(c Crawler, opts ...Option) *Processor {
	p := &Processor{
		crawler:     c,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process crawls every job and returns the outcomes in input order.
//
// A failed seed does not stop the others. The returned error is ctx.Err()
// when ctx was cancelled during the batch; jobs that never started carry
// it in their Outcome.
func (p *Processor) Process(ctx context.Context, jobs []Job) ([]Outcome, error) {
	p.logger.Info("starting batch", "seeds", len(jobs), "concurrency", p.concurrency)
	start := p.now()

	outcomes := make([]Outcome, len(jobs))
	var mu sync.Mutex
	err := p.run(ctx, jobs, func(o Outcome, i int) {
		mu.Lock()
		outcomes[i] = o
		mu.Unlock()
	})

	p.logger.Info("batch complete", "seeds", len(jobs), "elapsed", p.now().Sub(start))
	return outcomes, err
}

// ProcessWithCallback crawls every job and hands each outcome to callback
// as soon as it is ready, together with the job's index.
//
// The callback runs on the goroutine that finished the crawl, so it must be
// safe for concurrent use.
func (p *Processor) ProcessWithCallback(ctx context.Context, jobs []Job, callback func(Outcome, int)) error {
	p.logger.Info("starting batch with callback", "seeds", len(jobs), "concurrency", p.concurrency)
	return p.run(ctx, jobs, callback)
}

func (p *Processor) run(ctx context.Context, jobs []Job, emit func(Outcome, int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, job := range jobs {
		if gctx.Err() != nil {
			now := p.now()
			emit(Outcome{Job: job, Err: gctx.Err(), StartedAt: now, FinishedAt: now}, i)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				now := p.now()
				emit(Outcome{Job: job, Err: err, StartedAt: now, FinishedAt: now}, i)
				return err
			}

			p.logger.Debug("crawling seed", "seed", job.Seed, "depth", job.Depth, "index", i+1, "total", len(jobs))
			outcome := Outcome{Job: job, StartedAt: p.now()}
			outcome.Result, outcome.Err = p.crawler.Download(gctx, job.Seed, job.Depth)
			outcome.FinishedAt = p.now()

			if outcome.Err != nil {
				p.logger.Warn("seed failed", "seed", job.Seed, "error", outcome.Err)
			}
			emit(outcome, i)
			// A failed seed must not cancel its siblings.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
