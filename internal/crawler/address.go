package crawler

import (
	"net/url"
	"strings"
)

// Normalize returns the address with any fragment removed.
// Two addresses that differ only by fragment name the same resource.
//
// Design decision: we cut at the first '#' instead of re-serialising the
// parsed URL because:
//  1. url.URL.String may re-escape the path and change the dedup key
//  2. It works the same for addresses that fail to parse
func Normalize(address string) string {
	if i := strings.IndexByte(address, '#'); i >= 0 {
		return address[:i]
	}
	return address
}

// Origin returns the admission-control key for an address: its lower-cased
// host (including any port). When the address cannot be parsed or has no
// host, the raw address is its own origin.
func Origin(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return address
	}
	return strings.ToLower(u.Host)
}
