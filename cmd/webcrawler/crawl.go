package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/nao1215/webcrawler/internal/batch"
	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/fetcher"
	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/report"
	"github.com/nao1215/webcrawler/internal/tor"
	"github.com/spf13/cobra"
)

// errSeedsFailed is returned when at least one seed could not be crawled.
var errSeedsFailed = errors.New("some seeds could not be crawled")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Download every page reachable from the given URLs",
		Long: `Crawl downloads each seed URL and every page reachable from it within
--depth link hops. Depth 1 downloads only the seed.

Each address is downloaded at most once per seed, no matter how many pages
link to it. A page that cannot be downloaded is reported and its links are
not followed; the rest of the crawl continues.

Examples:
  # Crawl a site two levels deep
  webcrawler crawl https://example.com/

  # Crawl deeper, gently
  webcrawler crawl -d 4 -p 1 https://example.com/

  # Stay on the seed host and write a Markdown report
  webcrawler crawl --same-host -m -o report.md https://example.com/

  # Reuse pages fetched within the last hour
  webcrawler crawl --cache --cache-ttl 1h https://example.com/

  # Crawl an onion service through the embedded Tor daemon
  webcrawler crawl --tor http://<56 chars>.onion/

  # Crawl through an existing SOCKS5 proxy
  webcrawler crawl -x 127.0.0.1:9050 https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl shape
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Number of link levels to download (1 = seed only)")
	cmd.Flags().IntP("downloaders", "D", config.DefaultPoolSize(),
		"Number of concurrent downloads")
	cmd.Flags().IntP("extractors", "E", config.DefaultPoolSize(),
		"Number of concurrent link extractions")
	cmd.Flags().IntP("per-host", "p", config.DefaultPerHost,
		"Maximum concurrent downloads per host, per seed")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")
	cmd.Flags().Bool("same-host", false,
		"Only follow links to the host of the page they appear on")
	cmd.Flags().Duration("shutdown-grace", config.DefaultShutdownGrace,
		"How long in-flight work may finish after the crawl is interrupted")

	// HTTP
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: ./.webcrawler, then $XDG_CONFIG_HOME/webcrawler/config.yaml, then ~/.webcrawler)")

	// Reports
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not show the progress spinner")

	// Storage
	cmd.Flags().Bool("cache", false,
		"Serve pages from the local page cache while they are fresh")
	cmd.Flags().Duration("cache-ttl", config.DefaultCacheTTL,
		"How long cached pages stay fresh")
	cmd.Flags().Bool("no-save", false,
		"Do not record this crawl in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history and page cache database")

	// Proxies
	cmd.Flags().StringP("proxy", "x", "",
		"Crawl through the SOCKS5 proxy at host:port")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Depth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.Downloaders, err = cmd.Flags().GetInt("downloaders")
	if err != nil {
		return nil, err
	}

	cfg.Extractors, err = cmd.Flags().GetInt("extractors")
	if err != nil {
		return nil, err
	}

	cfg.PerHost, err = cmd.Flags().GetInt("per-host")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.SameHost, err = cmd.Flags().GetBool("same-host")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Quiet, err = cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}

	cfg.UseCache, err = cmd.Flags().GetBool("cache")
	if err != nil {
		return nil, err
	}

	cfg.CacheTTL, err = cmd.Flags().GetDuration("cache-ttl")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	cfg.ShutdownGrace, err = cmd.Flags().GetDuration("shutdown-grace")
	if err != nil {
		return nil, err
	}

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit config path must exist; the default search may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		cfg.Targets = append(cfg.Targets, crawler.Normalize(arg))
	}
	return cfg, nil
}

// siteLookup adapts the config file to the downloader's per-host lookup.
func siteLookup(file *config.File) fetcher.SiteLookup {
	if file == nil {
		return nil
	}
	return func(host string) fetcher.Site {
		sc := file.GetSiteConfig(host)
		return fetcher.Site{
			Headers:        sc.Headers,
			Cookie:         sc.Cookie,
			IgnorePatterns: sc.IgnorePatterns,
			FollowPatterns: sc.FollowPatterns,
		}
	}
}

// runCrawl wires the components together and crawls every target.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	proxied := cfg.UseTor || cfg.ProxyAddress != ""
	for _, target := range cfg.Targets {
		if err := tor.CheckSeed(target, proxied); err != nil {
			return err
		}
	}

	client, stopProxy, err := setupProxy(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stopProxy()

	var db *database.CrawlDB
	if cfg.SaveToDB || cfg.UseCache {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	httpDownloader := fetcher.NewHTTPDownloader(
		fetcher.WithClient(client),
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithSites(siteLookup(cfg.SiteConfigs)),
		fetcher.WithSameHost(cfg.SameHost),
		fetcher.WithLogger(logger),
	)

	var downloader crawler.Downloader = httpDownloader
	var cache *fetcher.CachingDownloader
	if cfg.UseCache {
		if n, err := db.PruneDocuments(ctx, time.Now().Add(-cfg.CacheTTL)); err != nil {
			logger.Warn("failed to prune page cache", "error", err)
		} else if n > 0 {
			logger.Debug("pruned stale cached pages", "count", n)
		}
		cache = fetcher.NewCachingDownloader(httpDownloader, db,
			fetcher.WithTTL(cfg.CacheTTL),
			fetcher.WithCacheLogger(logger),
		)
		downloader = cache
	}

	c, err := crawler.New(downloader,
		crawler.WithDownloaders(cfg.Downloaders),
		crawler.WithExtractors(cfg.Extractors),
		crawler.WithPerHost(cfg.PerHost),
		crawler.WithShutdownGrace(cfg.ShutdownGrace),
		crawler.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("crawler shutdown", "error", err)
		}
	}()

	jobs := make([]batch.Job, len(cfg.Targets))
	for i, target := range cfg.Targets {
		jobs[i] = batch.Job{Seed: target, Depth: cfg.DepthFor(hostOf(target))}
	}

	progress := newProgress(stderr, cfg.Quiet, len(jobs))
	progress.start()

	reports := make([]*report.CrawlReport, len(jobs))
	var mu sync.Mutex
	batchErr := batch.New(c,
		batch.WithConcurrency(cfg.BatchSize),
		batch.WithLogger(logger),
	).ProcessWithCallback(ctx, jobs, func(o batch.Outcome, i int) {
		r := report.FromOutcome(o)
		if o.Err == nil && db != nil && cfg.SaveToDB {
			run := database.NewRun(o.Job.Seed, o.Job.Depth, o.StartedAt, o.FinishedAt, o.Result)
			// The crawl context may be cancelled by now; the history row
			// still belongs to a finished crawl.
			if id, err := db.SaveRun(context.WithoutCancel(ctx), run); err != nil {
				logger.Error("failed to save crawl run", "seed", o.Job.Seed, "error", err)
			} else {
				r.RunID = id
			}
		}

		mu.Lock()
		reports[i] = r
		mu.Unlock()
		progress.done(o.Job.Seed)
	})
	progress.stop()

	if cache != nil {
		hits, misses := cache.Stats()
		logger.Info("page cache", "hits", hits, "misses", misses)
	}

	if err := writeReport(cfg, reports, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if batchErr != nil {
		return batchErr
	}
	for _, r := range reports {
		if r.Failed() {
			return errSeedsFailed
		}
	}
	return nil
}

// setupProxy returns the HTTP client for the configured proxy, or nil for
// direct connections, and a function releasing what it started.
func setupProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*http.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %w (is a SOCKS5 proxy running at %s?)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client.NewHTTPClient(), noop, nil

	case cfg.UseTor:
		fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
		fmt.Fprintln(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

		daemon := tor.NewDaemon(
			tor.WithStartupTimeout(cfg.TorStartupTimeout),
			tor.WithDaemonLogger(logger),
		)
		if err := daemon.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stopDaemon := func() {
			if err := daemon.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		client, err := daemon.NewClient(cfg.Timeout)
		if err != nil {
			stopDaemon()
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			stopDaemon()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
		}
		fmt.Fprintf(stderr, "Embedded Tor ready, SOCKS proxy at %s\n\n", daemon.SocksAddr())
		return client.NewHTTPClient(), stopDaemon, nil

	default:
		return nil, noop, nil
	}
}

func hostOf(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// writeReport writes reports in the requested format to the report file
// or stdout.
func writeReport(cfg *config.Config, reports []*report.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output)
	}
	_, err := w.Write(reports)
	return err
}

// progress shows a spinner on stderr while seeds are crawled.
type progress struct {
	spinner *spinner.Spinner
	total   int

	mu       sync.Mutex
	finished int
}

func newProgress(w io.Writer, quiet bool, total int) *progress {
	p := &progress{total: total}
	if quiet {
		return p
	}
	p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	p.spinner.Suffix = fmt.Sprintf(" crawling 0/%d seeds", total)
	return p
}

func (p *progress) start() {
	if p.spinner != nil {
		p.spinner.Start()
	}
}

func (p *progress) stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

func (p *progress) done(seed string) {
	p.mu.Lock()
	p.finished++
	finished := p.finished
	p.mu.Unlock()

	if p.spinner == nil {
		return
	}
	p.spinner.Lock()
	p.spinner.Suffix = fmt.Sprintf(" crawling %d/%d seeds (finished %s)", finished, p.total, seed)
	p.spinner.Unlock()
}
