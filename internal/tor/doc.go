// Package tor routes crawls through SOCKS5 proxies.
//
// A Client wraps a SOCKS5 dialer from golang.org/x/net/proxy and builds
// HTTP clients on top of it; any SOCKS5 proxy works, Tor's included. A
// Daemon starts an embedded Tor process with tornago for users without
// their own Tor installation. CheckSeed tells whether a seed is reachable
// with the chosen connection setup.
package tor
