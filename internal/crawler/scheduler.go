package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// crawl is a single Download invocation: its state, the pools it submits to
// and the counters reported when it finishes.
type crawl struct {
	ctx        context.Context
	downloader Downloader
	downloads  *workerPool
	extracts   *workerPool
	state      *crawlState
	logger     *slog.Logger

	requeued atomic.Int64
}

// spawn submits t to its pool and registers its handle with the drain loop.
//
// The handle is pushed before submission, and a task's follow-ups are
// spawned before its own handle resolves. Together these make "pending is
// empty" equivalent to "no task is outstanding".
func (c *crawl) spawn(t task) {
	h := newHandle()
	c.state.pending.push(h)

	pool := c.downloads
	if t.extraction() {
		pool = c.extracts
	}

	accepted := pool.submit(func() {
		out := c.execute(t)
		for _, next := range out.next {
			c.spawn(next)
		}
		out.next = nil
		h.resolve(out)
	})
	if !accepted {
		h.resolve(t.fail(ErrClosed))
	}
}

// execute runs t, converting a panic into the task's failure outcome.
func (c *crawl) execute(t task) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("task panicked", "panic", r)
			out = t.fail(fmt.Errorf("%w: %v", ErrTaskPanic, r))
		}
	}()
	return t.run(c.ctx, c)
}

// drain resolves pending handles in submission order until none remain and
// folds every outcome into a Result.
func (c *crawl) drain() Result {
	result := Result{
		Downloaded: make([]string, 0),
		Errors:     make(map[string]error),
	}
	for {
		h, ok := c.state.pending.pop()
		if !ok {
			break
		}
		out := h.wait()
		result.Downloaded = append(result.Downloaded, out.downloaded...)
		for address, err := range out.errors {
			result.Errors[address] = err
		}
	}
	result.dropFailed()
	return result
}
