package crawler

import "sync"

// crawlState is the bookkeeping shared by every task of one Download call.
// It is created fresh for each call and discarded when the call returns.
type crawlState struct {
	claimed *claimSet
	slots   *hostSlots
	pending *pendingQueue
}

// newCrawlState creates empty state with the given per-host cap.
func newCrawlState(perHost int) *crawlState {
	return &crawlState{
		claimed: newClaimSet(),
		slots:   newHostSlots(perHost),
		pending: &pendingQueue{},
	}
}

// claimSet is the set of addresses already dispatched for fetching.
// Insertion is the dedup gate: an address is claimed at most once.
type claimSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newClaimSet() *claimSet {
	return &claimSet{set: make(map[string]struct{})}
}

// claim marks address as claimed and reports whether this call did so.
func (c *claimSet) claim(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.set[address]; ok {
		return false
	}
	c.set[address] = struct{}{}
	return true
}

// contains reports whether address has already been claimed.
func (c *claimSet) contains(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[address]
	return ok
}

// len returns the number of claimed addresses.
func (c *claimSet) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.set)
}

// hostSlots counts in-flight downloads per origin and enforces the cap.
type hostSlots struct {
	mu       sync.Mutex
	limit    int
	inflight map[string]int
}

func newHostSlots(limit int) *hostSlots {
	return &hostSlots{
		limit:    limit,
		inflight: make(map[string]int),
	}
}

// tryAcquire grants a slot for origin unless the origin is saturated.
// It never blocks.
func (h *hostSlots) tryAcquire(origin string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inflight[origin] >= h.limit {
		return false
	}
	h.inflight[origin]++
	return true
}

// release returns a slot previously granted by tryAcquire.
func (h *hostSlots) release(origin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.inflight[origin] - 1
	if n <= 0 {
		delete(h.inflight, origin)
		return
	}
	h.inflight[origin] = n
}

// count returns the number of slots currently held for origin.
func (h *hostSlots) count(origin string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inflight[origin]
}

// handle is a reference to a submitted task that resolves to its outcome.
type handle struct {
	done chan struct{}
	out  outcome
}

func newHandle() *handle {
	return &handle{done: make(chan struct{})}
}

// resolve publishes the outcome. It must be called exactly once.
func (h *handle) resolve(out outcome) {
	h.out = out
	close(h.done)
}

// wait blocks until the handle is resolved and returns its outcome.
func (h *handle) wait() outcome {
	<-h.done
	return h.out
}

// pendingQueue is the FIFO of handles observed by the drain loop.
type pendingQueue struct {
	mu    sync.Mutex
	items []*handle
}

// push appends a handle.
func (q *pendingQueue) push(h *handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, h)
}

// pop removes the oldest handle. It reports false when the queue is empty.
func (q *pendingQueue) pop() (*handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	h := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return h, true
}
