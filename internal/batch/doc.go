// Package batch crawls several seed addresses concurrently on one shared
// crawler.
//
// The crawler already bounds downloads and extractions with its own worker
// pools, so the batch limit only controls how many seeds are in flight and
// therefore how many independent crawl states exist at once.
package batch
