// Package database provides SQLite-based storage for webcrawler.
//
// This package implements the CrawlDB, which stores:
//   - Downloaded pages, used as the backing store of the page cache
//   - The result of every finished crawl, for the history command
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
//  1. The database is a single file with no server to run
//  2. The CGO-free driver keeps cross-compilation trivial
//  3. WAL mode gives good concurrent read performance
//
// Stored bodies carry a SHA3-256 digest so that a damaged cache entry is
// detected on read and refetched instead of being crawled.
package database
