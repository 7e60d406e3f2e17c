// Package fetcher provides the concrete downloaders used by the crawler.
//
// HTTPDownloader fetches pages over HTTP(S), optionally through a SOCKS5
// proxy such as Tor, and returns them as *Page values whose links can be
// extracted with golang.org/x/net/html. CachingDownloader wraps any
// downloader with a persistent DocumentStore so that repeated crawls of the
// same site do not hit the network again until the cached copy expires.
//
// Per-site behaviour (extra headers, cookies, ignore and follow patterns) is
// resolved through a SiteLookup so that this package does not depend on the
// configuration file format.
package fetcher
