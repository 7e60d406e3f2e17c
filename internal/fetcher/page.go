package fetcher

import (
	"bytes"
	"mime"
	"strings"
	"time"
)

// Page is a downloaded resource.
// It satisfies the crawler's Document interface.
type Page struct {
	// URL is the address the page was requested with. The crawler
	// deduplicates on it.
	URL string

	// FinalURL is the address the content was served from after redirects.
	// Relative links resolve against it. Empty means URL.
	FinalURL string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// ContentType is the Content-Type header of the response.
	ContentType string

	// Body is the decompressed body, converted to UTF-8 for text content and
	// truncated to the downloader's size limit.
	Body []byte

	// FetchedAt is when the page was downloaded from the network.
	FetchedAt time.Time

	scope *scope
}

// IsHTML reports whether the page declares an HTML media type.
func (p *Page) IsHTML() bool {
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(p.ContentType))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Base returns the address relative links in the page resolve against.
func (p *Page) Base() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// ExtractLinks returns the links the crawler should follow from this page.
// Non-HTML pages have no links.
func (p *Page) ExtractLinks() ([]string, error) {
	if !p.IsHTML() {
		return nil, nil
	}

	parser, err := NewParser(p.Base())
	if err != nil {
		return nil, err
	}
	links, err := parser.Parse(bytes.NewReader(p.Body))
	if err != nil {
		return nil, err
	}

	if p.scope == nil {
		return links, nil
	}
	allowed := links[:0]
	for _, link := range links {
		if p.scope.allows(link) {
			allowed = append(allowed, link)
		}
	}
	return allowed, nil
}
