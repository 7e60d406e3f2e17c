package fetcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/webcrawler/internal/crawler"
)

// DefaultCacheTTL is how long a stored page is served without refetching.
const DefaultCacheTTL = 24 * time.Hour

// DocumentStore persists downloaded pages.
type DocumentStore interface {
	// LoadDocument returns the stored page for address, or nil and no error
	// when none is stored.
	LoadDocument(ctx context.Context, address string) (*Page, error)

	// SaveDocument stores page, replacing any previous copy.
	SaveDocument(ctx context.Context, page *Page) error
}

// CachingDownloader serves pages from a DocumentStore while they are fresh
// and falls back to an HTTPDownloader otherwise.
//
// Design decision: Store failures are logged and never fail a download
// because:
//  1. The cache is an optimisation, not part of the crawl result
//  2. A broken cache should degrade to plain fetching, not abort a crawl
//
// Concurrent misses for the same address (for example two seeds of a batch
// linking to one page) share a single network fetch.
type CachingDownloader struct {
	next   *HTTPDownloader
	store  DocumentStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

var _ crawler.Downloader = (*CachingDownloader)(nil)

// CacheOption configures a CachingDownloader.
type CacheOption func(*CachingDownloader)

// WithTTL sets how long stored pages stay fresh.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachingDownloader) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachingDownloader) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachingDownloader wraps next with store.
func NewCachingDownloader(next *HTTPDownloader, store DocumentStore, opts ...CacheOption) *CachingDownloader {
	c := &CachingDownloader{
		next:   next,
		store:  store,
		ttl:    DefaultCacheTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Download implements crawler.Downloader.
func (c *CachingDownloader) Download(ctx context.Context, address string) (crawler.Document, error) {
	if page := c.lookup(ctx, address); page != nil {
		c.hits.Add(1)
		return c.next.bind(page), nil
	}

	// The shared fetch outlives any single caller: cancelling one waiter
	// must not fail the others. The client timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(address, func() (any, error) {
		page, err := c.next.Fetch(fetchCtx, address)
		if err != nil {
			return nil, err
		}
		if err := c.store.SaveDocument(fetchCtx, page); err != nil {
			c.logger.Warn("failed to cache page", "url", address, "error", err)
		}
		return page, nil
	})
	c.misses.Add(1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Page), nil //nolint:forcetypeassert // the group only returns *Page
	}
}

// lookup returns a fresh stored page or nil.
func (c *CachingDownloader) lookup(ctx context.Context, address string) *Page {
	page, err := c.store.LoadDocument(ctx, address)
	if err != nil {
		c.logger.Warn("failed to read page cache", "url", address, "error", err)
		return nil
	}
	if page == nil || c.now().Sub(page.FetchedAt) >= c.ttl {
		return nil
	}
	return page
}

// Stats returns the number of cache hits and misses so far.
func (c *CachingDownloader) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
