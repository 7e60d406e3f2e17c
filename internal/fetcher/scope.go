package fetcher

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Site holds per-host request and link-following settings.
type Site struct {
	// Headers are extra request headers sent to this host.
	Headers map[string]string

	// Cookie is sent verbatim as the Cookie header.
	Cookie string

	// IgnorePatterns are path globs whose links are never followed.
	IgnorePatterns []string

	// FollowPatterns, when set, restrict followed links to matching paths.
	FollowPatterns []string
}

// SiteLookup returns the settings for a host. The host is lower-cased and
// carries no port.
type SiteLookup func(host string) Site

// scope decides which extracted links a page hands back to the crawler.
type scope struct {
	host     string
	sameHost bool
	ignore   []string
	follow   []string
}

// allows reports whether link should be followed.
//
// Logic:
//  1. With sameHost set, links to other hosts are dropped
//  2. If the path matches any ignore pattern, the link is dropped
//  3. If follow patterns are set and none match, the link is dropped
func (s *scope) allows(link string) bool {
	if s == nil {
		return true
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if s.sameHost && !strings.EqualFold(u.Hostname(), s.host) {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.follow) == 0 {
		return true
	}
	for _, pattern := range s.follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash are matched against the last segment only.
	if !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
