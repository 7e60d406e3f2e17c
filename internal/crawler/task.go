package crawler

import (
	"context"
	"runtime"
)

// task is one unit of crawl work. Running a task never submits work
// directly: follow-up tasks are returned in the outcome and submitted by the
// scheduler.
type task interface {
	// run executes the task against the crawl it belongs to.
	run(ctx context.Context, c *crawl) outcome

	// fail builds the outcome recorded when the task cannot run or panics.
	fail(err error) outcome

	// extraction reports whether the task belongs on the extraction pool.
	extraction() bool
}

// outcome is the partial result of a single task.
type outcome struct {
	downloaded []string
	errors     map[string]error
	next       []task
}

// downloadTask fetches one address, subject to per-host admission control.
type downloadTask struct {
	address string
	origin  string
	depth   int
}

func newDownloadTask(address string, depth int) *downloadTask {
	return &downloadTask{
		address: address,
		origin:  Origin(address),
		depth:   depth,
	}
}

func (t *downloadTask) extraction() bool { return false }

func (t *downloadTask) fail(err error) outcome {
	return outcome{errors: map[string]error{t.address: &FetchError{Address: t.address, Err: err}}}
}

// run acquires a slot for the origin, claims the address and downloads it.
//
// The slot is acquired before the address is claimed so that an address is
// never marked as claimed while it is only waiting for capacity.
func (t *downloadTask) run(ctx context.Context, c *crawl) outcome {
	if !c.state.slots.tryAcquire(t.origin) {
		c.requeued.Add(1)
		// Let workers holding slots for this origin make progress before
		// this task comes round again.
		runtime.Gosched()
		return outcome{next: []task{t}}
	}
	defer c.state.slots.release(t.origin)

	if !c.state.claimed.claim(t.address) {
		return outcome{}
	}

	doc, err := c.downloader.Download(ctx, t.address)
	if err != nil {
		c.logger.Debug("download failed", "url", t.address, "error", err)
		return t.fail(err)
	}

	c.logger.Debug("downloaded", "url", t.address, "depth", t.depth)
	out := outcome{downloaded: []string{t.address}}
	if t.depth > 1 {
		out.next = []task{&extractTask{address: t.address, doc: doc, depth: t.depth}}
	}
	return out
}

// extractTask lists the links of a downloaded document and fans out new
// downloads one level deeper.
type extractTask struct {
	address string
	doc     Document
	depth   int
}

func (t *extractTask) extraction() bool { return true }

func (t *extractTask) fail(err error) outcome {
	return outcome{errors: map[string]error{t.address: &ExtractionError{Address: t.address, Err: err}}}
}

func (t *extractTask) run(_ context.Context, c *crawl) outcome {
	links, err := t.doc.ExtractLinks()
	if err != nil {
		c.logger.Debug("link extraction failed", "url", t.address, "error", err)
		return t.fail(err)
	}

	var out outcome
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		link = Normalize(link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		if c.state.claimed.contains(link) {
			continue
		}
		out.next = append(out.next, newDownloadTask(link, t.depth-1))
	}
	return out
}
