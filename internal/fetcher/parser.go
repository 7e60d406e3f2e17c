package fetcher

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// linkAttrs maps the elements we follow to the attribute holding the target.
var linkAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"link":   "href",
	"iframe": "src",
	"frame":  "src",
}

// Parser extracts outbound links from HTML content.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. The tokenizer gives us attributes without building ad-hoc patterns
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	// A <base href> element replaces it for the rest of the document.
	baseURL *url.URL
}

// NewParser creates a new HTML parser with the given base URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse returns every absolute http(s) link in content, in document order.
// Duplicates are kept; the crawler deduplicates after normalisation.
func (p *Parser) Parse(content io.Reader) ([]string, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "base" {
				p.rebase(getAttr(n, "href"))
			} else if attr, ok := linkAttrs[n.Data]; ok {
				if resolved := p.resolveURL(getAttr(n, attr)); resolved != "" {
					links = append(links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// rebase applies a <base href> element.
func (p *Parser) rebase(href string) {
	href = strings.TrimSpace(href)
	if href == "" {
		return
	}
	u, err := url.Parse(href)
	if err != nil {
		return
	}
	p.baseURL = p.baseURL.ResolveReference(u)
}

// resolveURL resolves a relative URL against the base URL.
// It returns "" for links that cannot be fetched over HTTP.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
