package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawler"

	// DefaultDepth fetches the seed and every page it links to.
	DefaultDepth = 2

	// DefaultPerHost caps concurrent downloads per host. Three keeps a single
	// crawl from looking like an attack on small sites.
	DefaultPerHost = 3

	// DefaultTimeout bounds a single HTTP request including the body.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of seeds crawled at the same time.
	DefaultBatchSize = 4

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultCacheTTL is how long cached pages are served without refetching.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultShutdownGrace is how long worker pools get to finish on exit.
	DefaultShutdownGrace = 10 * time.Second

	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "webcrawler/1.0 (+https://github.com/nao1215/webcrawler)"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// DefaultPoolSize is the default size of each worker pool: two workers per
// logical CPU.
func DefaultPoolSize() int {
	return runtime.NumCPU() * 2
}

// Config holds all configuration options for a crawl.
// It is populated from CLI flags and passed down explicitly rather than
// kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// because the number of options is manageable and every command reads
// only a handful of them.
type Config struct {
	// Targets are the seed addresses to crawl.
	Targets []string

	// Depth is the number of levels to crawl; 1 fetches only the seed.
	// A site's depth in the config file overrides it for seeds on that host.
	Depth int

	// Downloaders is the number of concurrent downloads.
	Downloaders int

	// Extractors is the number of concurrent link extractions.
	Extractors int

	// PerHost is the maximum number of concurrent downloads per host.
	PerHost int

	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ShutdownGrace is how long worker pools get to finish on exit.
	ShutdownGrace time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to keep.
	// Zero selects the default.
	MaxBodySize int64

	// SameHost restricts followed links to the host of the page they are on.
	SameHost bool

	// Verbose enables debug logging.
	Verbose bool

	// Quiet disables the progress spinner.
	Quiet bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .webcrawler is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report; empty means stdout.
	ReportFile string

	// UseCache serves pages from the local page cache while they are fresh.
	UseCache bool

	// CacheTTL is how long cached pages stay fresh.
	CacheTTL time.Duration

	// SaveToDB records every finished crawl in the history database.
	SaveToDB bool

	// DBDir is the directory holding the SQLite database.
	DBDir string

	// ProxyAddress is a SOCKS5 proxy in host:port form. Empty means direct.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap.
	TorStartupTimeout time.Duration
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		Downloaders:       DefaultPoolSize(),
		Extractors:        DefaultPoolSize(),
		PerHost:           DefaultPerHost,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		ShutdownGrace:     DefaultShutdownGrace,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		CacheTTL:          DefaultCacheTTL,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for webcrawler.
// On Linux: ~/.local/share/webcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webcrawler.
// On Linux: ~/.config/webcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for webcrawler.
// On Linux: ~/.cache/webcrawler
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate once after CLI parsing, before any network
// activity, and stop at the first error because fixing one often makes
// others irrelevant.
func (c *Config) Validate() error {
	switch {
	case len(c.Targets) == 0:
		return ErrNoTarget
	case c.Depth <= 0:
		return ErrInvalidDepth
	case c.Downloaders <= 0:
		return ErrInvalidDownloaders
	case c.Extractors <= 0:
		return ErrInvalidExtractors
	case c.PerHost <= 0:
		return ErrInvalidPerHost
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	case c.BatchSize <= 0:
		return ErrInvalidBatchSize
	case c.JSONReport && c.MarkdownReport:
		return ErrConflictingReportFormats
	case c.MaxBodySize < 0:
		return ErrInvalidMaxBodySize
	case c.UseCache && c.CacheTTL <= 0:
		return ErrInvalidCacheTTL
	case c.UseTor && c.ProxyAddress != "":
		return ErrConflictingProxy
	}
	return nil
}

// DepthFor returns the crawl depth for a seed on host, honouring a site
// override from the config file.
func (c *Config) DepthFor(host string) int {
	if c.SiteConfigs == nil {
		return c.Depth
	}
	if depth := c.SiteConfigs.GetSiteConfig(host).Depth; depth > 0 {
		return depth
	}
	return c.Depth
}
