package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/nao1215/webcrawler/internal/crawler"
)

// Default HTTP settings.
const (
	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "webcrawler/1.0 (+https://github.com/nao1215/webcrawler)"

	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits how much of a response body is kept.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// HTTPDownloader fetches pages over HTTP(S).
//
// Design decision: We ask for compressed responses and decode them ourselves
// instead of relying on net/http's transparent gzip because:
//  1. The transport only handles gzip, and many servers prefer brotli
//  2. Clients built for SOCKS proxies disable transparent compression
type HTTPDownloader struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	sites       SiteLookup
	sameHost    bool
	logger      *slog.Logger
}

var _ crawler.Downloader = (*HTTPDownloader)(nil)

// Option configures an HTTPDownloader.
type Option func(*HTTPDownloader)

// WithClient sets the HTTP client, for example one that dials through Tor.
func WithClient(client *http.Client) Option {
	return func(d *HTTPDownloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithTimeout sets the per-request timeout of the underlying client.
func WithTimeout(timeout time.Duration) Option {
	return func(d *HTTPDownloader) {
		d.client.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *HTTPDownloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithMaxBodySize sets how many body bytes are kept. Non-positive values
// keep the default.
func WithMaxBodySize(size int64) Option {
	return func(d *HTTPDownloader) {
		if size > 0 {
			d.maxBodySize = size
		}
	}
}

// WithSites sets the per-host settings lookup.
func WithSites(lookup SiteLookup) Option {
	return func(d *HTTPDownloader) {
		d.sites = lookup
	}
}

// WithSameHost restricts extracted links to the host of the page they
// appear on.
func WithSameHost(sameHost bool) Option {
	return func(d *HTTPDownloader) {
		d.sameHost = sameHost
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *HTTPDownloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewHTTPDownloader creates a downloader. Options are applied in order, so
// WithTimeout after WithClient adjusts the supplied client.
func NewHTTPDownloader(opts ...Option) *HTTPDownloader {
	d := &HTTPDownloader{
		client:      &http.Client{Timeout: DefaultTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download implements crawler.Downloader.
func (d *HTTPDownloader) Download(ctx context.Context, address string) (crawler.Document, error) {
	return d.Fetch(ctx, address)
}

// Fetch downloads address and returns the page.
func (d *HTTPDownloader) Fetch(ctx context.Context, address string) (*Page, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	site := d.site(u.Hostname())
	for key, value := range site.Headers {
		req.Header.Set(key, value)
	}
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := d.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{
		URL:         address,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}
	if page.IsHTML() {
		page.Body = toUTF8(page.Body, page.ContentType)
	}

	d.logger.Debug("fetched page",
		"url", address,
		"finalURL", page.FinalURL,
		"status", resp.StatusCode,
		"contentType", page.ContentType,
		"bytes", len(page.Body),
	)

	return d.bind(page), nil
}

// bind attaches the link scope for the host that served the page.
func (d *HTTPDownloader) bind(page *Page) *Page {
	u, err := url.Parse(page.Base())
	if err != nil {
		return page
	}
	host := strings.ToLower(u.Hostname())
	site := d.site(host)
	if !d.sameHost && len(site.IgnorePatterns) == 0 && len(site.FollowPatterns) == 0 {
		page.scope = nil
		return page
	}
	page.scope = &scope{
		host:     host,
		sameHost: d.sameHost,
		ignore:   site.IgnorePatterns,
		follow:   site.FollowPatterns,
	}
	return page
}

func (d *HTTPDownloader) site(host string) Site {
	if d.sites == nil {
		return Site{}
	}
	return d.sites(strings.ToLower(host))
}

// readBody decompresses the body according to Content-Encoding and reads at
// most maxBodySize bytes of the result.
func (d *HTTPDownloader) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		// Servers disagree on whether "deflate" means zlib or raw DEFLATE.
		raw, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize))
		if err != nil {
			return nil, err
		}
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			reader = flate.NewReader(bytes.NewReader(raw))
		} else {
			defer zr.Close()
			reader = zr
		}
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	return io.ReadAll(io.LimitReader(reader, d.maxBodySize))
}

// toUTF8 converts an HTML body to UTF-8 using the declared or sniffed
// charset. The body is returned unchanged when it is already UTF-8 or the
// conversion fails.
func toUTF8(body []byte, contentType string) []byte {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || enc == nil {
		return body
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}
