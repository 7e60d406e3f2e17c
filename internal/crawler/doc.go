// Package crawler implements a bounded-concurrency, depth-limited web crawler.
//
// # Architecture
//
// The Crawler type owns two worker pools: one for downloads and one for link
// extraction. A call to Download seeds a single download task and then drains
// every task that task transitively spawns before returning.
//
// Design decision: downloads and extraction run on separate pools because:
//  1. A slow or stalled download never starves link extraction
//  2. Parsing throughput can be tuned independently of network concurrency
//  3. Each pool stays small and predictable under load
//
// # Components
//
//   - Crawler: the public entry point (New, Download, Close)
//   - Downloader / Document: the pluggable fetch-and-extract port
//   - downloadTask / extractTask: the two task kinds
//   - crawlState: per-call bookkeeping (claimed addresses, per-host slots, pending handles)
//
// # Guarantees
//
//   - Every address is fetched at most once per Download call
//   - At most WithPerHost downloads share an origin at any instant
//   - Depth strictly decreases from a download to the downloads it causes
//   - A failing download or extraction never affects sibling tasks
//
// # Usage
//
//	c, err := crawler.New(downloader, crawler.WithPerHost(2))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	result, err := c.Download(ctx, "https://example.com/", 3)
package crawler
