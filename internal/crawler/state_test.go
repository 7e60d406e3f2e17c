package crawler

import (
	"sync"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"https://a/", "https://a/"},
		{"https://a/#frag", "https://a/"},
		{"https://a/page?q=1#x#y", "https://a/page?q=1"},
		{"#only", ""},
		{"", ""},
		{"not a url#x", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"https://Example.COM/path", "example.com"},
		{"http://a:8080/x", "a:8080"},
		{"https://a/", "a"},
		{"relative/path", "relative/path"},
		{"://bad", "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := Origin(tt.input); got != tt.expected {
				t.Errorf("Origin(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClaimSet(t *testing.T) {
	t.Parallel()

	s := newClaimSet()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 50 {
		wg.Go(func() {
			if s.claim("https://a/") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one successful claim, got %d", wins)
	}
	if !s.contains("https://a/") {
		t.Error("expected address to be claimed")
	}
	if s.contains("https://b/") {
		t.Error("expected unrelated address to be unclaimed")
	}
	if s.len() != 1 {
		t.Errorf("expected 1 claimed address, got %d", s.len())
	}
}

func TestHostSlots(t *testing.T) {
	t.Parallel()

	h := newHostSlots(2)

	if !h.tryAcquire("a") || !h.tryAcquire("a") {
		t.Fatal("expected two slots for a")
	}
	if h.tryAcquire("a") {
		t.Error("expected a to be saturated")
	}
	if !h.tryAcquire("b") {
		t.Error("expected b to be independent of a")
	}

	h.release("a")
	if got := h.count("a"); got != 1 {
		t.Errorf("expected 1 slot held for a, got %d", got)
	}
	if !h.tryAcquire("a") {
		t.Error("expected a slot after release")
	}

	h.release("a")
	h.release("a")
	if got := h.count("a"); got != 0 {
		t.Errorf("expected no slots held for a, got %d", got)
	}
	if _, ok := h.inflight["a"]; ok {
		t.Error("expected idle origin to be removed")
	}
}

func TestPendingQueue(t *testing.T) {
	t.Parallel()

	q := &pendingQueue{}
	if _, ok := q.pop(); ok {
		t.Fatal("expected empty queue")
	}

	first, second := newHandle(), newHandle()
	q.push(first)
	q.push(second)

	if h, _ := q.pop(); h != first {
		t.Error("expected FIFO order")
	}
	if h, _ := q.pop(); h != second {
		t.Error("expected FIFO order")
	}
}

func TestHandle(t *testing.T) {
	t.Parallel()

	h := newHandle()
	go func() {
		time.Sleep(5 * time.Millisecond)
		h.resolve(outcome{downloaded: []string{"https://a/"}})
	}()

	out := h.wait()
	if len(out.downloaded) != 1 || out.downloaded[0] != "https://a/" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}
