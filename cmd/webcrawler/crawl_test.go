package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/report"
)

// newTestSite serves a small site:
//
//	/      -> /a, /b, /missing
//	/a     -> /c
//	/b     -> /
//	/c     -> (nothing)
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/":  `<a href="/a">a</a><a href="/b">b</a><a href="/missing">gone</a>`,
		"/a": `<a href="/c">c</a>`,
		"/b": `<a href="/">home</a>`,
		"/c": `<p>leaf</p>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "depth", shorthand: "d", defValue: "2"},
		{name: "downloaders", shorthand: "D"},
		{name: "extractors", shorthand: "E"},
		{name: "per-host", shorthand: "p", defValue: "3"},
		{name: "batch", shorthand: "b", defValue: "4"},
		{name: "timeout", shorthand: "t", defValue: "30s"},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "quiet", shorthand: "q", defValue: "false"},
		{name: "proxy", shorthand: "x", defValue: ""},
		{name: "tor", defValue: "false"},
		{name: "tor-timeout", shorthand: "T", defValue: "3m0s"},
		{name: "cache", defValue: "false"},
		{name: "cache-ttl", defValue: "24h0m0s"},
		{name: "no-save", defValue: "false"},
		{name: "same-host", defValue: "false"},
		{name: "user-agent"},
		{name: "max-body-size"},
		{name: "shutdown-grace", defValue: "10s"},
		{name: "db-dir"},
	}

	for _, tt := range flags {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if tt.defValue != "" && flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestCrawlCmdPerHostHelp(t *testing.T) {
	t.Parallel()

	// The cap is tracked per Download call, so concurrent seeds on one host
	// each get their own.
	usage := NewCrawlCmd().Flags().Lookup("per-host").Usage
	if !strings.Contains(usage, "per seed") {
		t.Errorf("expected per-host help to say the cap is per seed, got %q", usage)
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags are copied", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "crawl.yaml")
		if err := os.WriteFile(configPath, []byte("sites:\n  example.com:\n    depth: 5\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		args := []string{
			"-d", "3", "-D", "5", "-E", "6", "-p", "2", "-b", "7",
			"-t", "5s", "--same-host", "--no-save", "--cache", "--cache-ttl", "1h",
			"-j", "-o", "out.json", "-q", "-x", "127.0.0.1:9050",
			"-c", configPath,
			"https://example.com/#top", "https://example.org/",
		}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, cmd.Flags().Args())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Depth != 3 || cfg.Downloaders != 5 || cfg.Extractors != 6 || cfg.PerHost != 2 || cfg.BatchSize != 7 {
			t.Errorf("unexpected crawl shape: %+v", cfg)
		}
		if cfg.Timeout.String() != "5s" || cfg.CacheTTL.String() != "1h0m0s" {
			t.Errorf("unexpected durations: timeout=%s ttl=%s", cfg.Timeout, cfg.CacheTTL)
		}
		if !cfg.SameHost || !cfg.UseCache || !cfg.JSONReport || !cfg.Quiet {
			t.Errorf("expected boolean flags to be set: %+v", cfg)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-save to disable SaveToDB")
		}
		if cfg.ReportFile != "out.json" || cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("unexpected strings: %+v", cfg)
		}
		want := []string{"https://example.com/", "https://example.org/"}
		if strings.Join(cfg.Targets, " ") != strings.Join(want, " ") {
			t.Errorf("expected targets %v, got %v", want, cfg.Targets)
		}
		if got := cfg.DepthFor("example.com"); got != 5 {
			t.Errorf("expected site depth 5, got %d", got)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("explicit config must exist", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatal(err)
		}

		_, err := buildConfig(cmd, []string{"https://example.com/"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestRunCrawlCmd_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "no target", args: []string{"crawl", "-q"}, wantErr: config.ErrNoTarget},
		{name: "zero depth", args: []string{"crawl", "-d", "0", "http://127.0.0.1/"}, wantErr: config.ErrInvalidDepth},
		{name: "json and markdown", args: []string{"crawl", "-j", "-m", "http://127.0.0.1/"}, wantErr: config.ErrConflictingReportFormats},
		{name: "proxy and tor", args: []string{"crawl", "--tor", "-x", "127.0.0.1:9050", "http://127.0.0.1/"}, wantErr: config.ErrConflictingProxy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRunCrawlCmd_OnionNeedsProxy(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "crawl", "-q", "--no-save", "http://example.onion/")
	if err == nil || !strings.Contains(err.Error(), "proxy") {
		t.Errorf("expected proxy error for onion seed, got %v", err)
	}
}

func TestRunCrawlCmd_Simple(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	stdout, _, err := execute(t, "crawl", "-q", "--no-save", "-d", "3", srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"OK: " + srv.URL + "/\n",
		"OK: " + srv.URL + "/a\n",
		"OK: " + srv.URL + "/b\n",
		"OK: " + srv.URL + "/c\n",
		"FAIL: " + srv.URL + "/missing - ",
		"4 downloaded, 1 failed",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Count(stdout, "OK: "+srv.URL+"/\n") != 1 {
		t.Errorf("expected the seed to be downloaded once, got:\n%s", stdout)
	}
}

func TestRunCrawlCmd_DepthOne(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	stdout, _, err := execute(t, "crawl", "-q", "--no-save", "-d", "1", srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stdout, srv.URL+"/a") {
		t.Errorf("expected only the seed at depth 1, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "1 downloaded, 0 failed") {
		t.Errorf("expected one download, got:\n%s", stdout)
	}
}

func TestRunCrawlCmd_JSONReportFile(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	outputPath := filepath.Join(t.TempDir(), "reports", "crawl.json")
	stdout, _, err := execute(t, "crawl", "-q", "--no-save", "-j", "-o", outputPath, srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got: %s", stdout)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	var doc report.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}
	if len(doc.Crawls) != 1 {
		t.Fatalf("expected 1 crawl, got %d", len(doc.Crawls))
	}
	// Depth 2: the seed and the three pages it links to.
	if got := len(doc.Crawls[0].Downloaded); got != 3 {
		t.Errorf("expected 3 downloaded pages, got %d: %v", got, doc.Crawls[0].Downloaded)
	}
	if got := len(doc.Crawls[0].Errors); got != 1 {
		t.Errorf("expected 1 error, got %d", got)
	}
}

func TestRunCrawlCmd_MarkdownReport(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	stdout, _, err := execute(t, "crawl", "-q", "--no-save", "-m", srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "# Crawl Report") {
		t.Errorf("expected Markdown report, got:\n%s", stdout)
	}
}

func TestRunCrawlCmd_IgnorePatterns(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	configPath := filepath.Join(t.TempDir(), ".webcrawler")
	content := "defaults:\n  ignorePatterns:\n    - \"/a\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "crawl", "-q", "--no-save", "-d", "3", "-c", configPath, srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(stdout, srv.URL+"/a") || strings.Contains(stdout, srv.URL+"/c") {
		t.Errorf("expected /a and its links to be ignored, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "OK: "+srv.URL+"/b") {
		t.Errorf("expected /b to be crawled, got:\n%s", stdout)
	}
}

func TestRunCrawlCmd_SavesHistoryAndCaches(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	dbDir := t.TempDir()

	for range 2 {
		if _, _, err := execute(t, "crawl", "-q", "--cache", "--db-dir", dbDir, srv.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stdout, _, err := execute(t, "history", "--db-dir", dbDir, srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "(2 runs)") {
		t.Errorf("expected two stored runs, got:\n%s", stdout)
	}
}
