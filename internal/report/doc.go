// Package report renders crawl results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: one OK/FAIL line per address plus a summary
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: tables and a mermaid chart for sharing
//
// All writers consume CrawlReport values built from batch outcomes, so a
// new format never needs to know about the crawler's types.
package report
