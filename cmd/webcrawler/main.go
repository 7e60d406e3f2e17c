// Package main provides the entry point for the webcrawler CLI.
//
// webcrawler downloads a web site to a fixed depth, following links with
// bounded download and extraction pools and a per-host concurrency cap.
//
// Usage:
//
//	webcrawler crawl <url>...
//	webcrawler history [url]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
