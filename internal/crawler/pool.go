package crawler

import (
	"sync"
	"time"
)

// workerPool runs submitted functions on a fixed number of goroutines.
//
// Design decision: we keep an unbounded FIFO in front of the workers rather
// than a buffered channel because:
//  1. Workers submit follow-up tasks to pools (including their own), and a
//     full channel would deadlock a pool against itself
//  2. Submission must return immediately even when every worker is busy
type workerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	stopped bool

	wg sync.WaitGroup
}

// newWorkerPool starts size workers.
func newWorkerPool(size int) *workerPool {
	p := &workerPool{}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(size)
	for range size {
		go p.work()
	}
	return p
}

// work is the loop run by each worker goroutine.
func (p *workerPool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.stopped || len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		fn()
	}
}

// submit enqueues fn without blocking. It reports false once the pool has
// been shut down.
func (p *workerPool) submit(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	return true
}

// shutdown stops accepting work and waits up to grace for queued work to
// finish. If workers are still busy it drops the queue and waits one more
// grace period for running functions to return. It reports whether all
// workers exited.
func (p *workerPool) shutdown(grace time.Duration) bool {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if waitTimeout(done, grace) {
		return true
	}

	p.mu.Lock()
	p.stopped = true
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	return waitTimeout(done, grace)
}

// waitTimeout reports whether done was closed within d.
func waitTimeout(done <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
