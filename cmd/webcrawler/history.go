package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// This command reads crawls recorded by 'webcrawler crawl'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show previous crawls stored in the database",
		Long: `History shows crawls recorded by 'webcrawler crawl'.

Without flags it lists the runs for the given seed, newest first.
With --compare it shows which pages appeared or disappeared between two runs.

Examples:
  # List every seed that has been crawled
  webcrawler history --seeds

  # List runs for a seed
  webcrawler history https://example.com/

  # Show the pages of one run
  webcrawler history --id 7

  # Compare the latest two runs of a seed
  webcrawler history --compare https://example.com/

  # Compare the latest run with run 3
  webcrawler history --compare --with-id 3 https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("seeds", "s", false,
		"List every seed with stored runs")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the run with this ID")
	cmd.Flags().BoolP("compare", "C", false,
		"Compare the latest run of the seed with an earlier one")
	cmd.Flags().Int64("with-id", 0,
		"Earlier run to compare with (default: the previous run)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	seed    string
	seeds   bool
	id      int64
	compare bool
	withID  int64
	json    bool
	dbDir   string
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	// Validate before opening the database so bad input does not create it.
	if !opts.seeds && opts.id == 0 && opts.seed == "" {
		return errors.New("a seed URL is required (use --seeds to list crawled seeds)")
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.seeds:
		return listSeeds(ctx, db, out, opts.json)
	case opts.id != 0:
		return showRun(ctx, db, out, opts.id, opts.json)
	case opts.compare:
		return compareRuns(ctx, db, out, opts.seed, opts.withID, opts.json)
	default:
		return listRuns(ctx, db, out, opts.seed, opts.json)
	}
}

func parseHistoryFlags(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{}
	var err error

	if opts.seeds, err = cmd.Flags().GetBool("seeds"); err != nil {
		return nil, err
	}
	if opts.id, err = cmd.Flags().GetInt64("id"); err != nil {
		return nil, err
	}
	if opts.compare, err = cmd.Flags().GetBool("compare"); err != nil {
		return nil, err
	}
	if opts.withID, err = cmd.Flags().GetInt64("with-id"); err != nil {
		return nil, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		opts.seed = crawler.Normalize(args[0])
	}
	return opts, nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// listSeeds prints every seed that has stored runs.
func listSeeds(ctx context.Context, db *database.CrawlDB, w io.Writer, asJSON bool) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		if seeds == nil {
			seeds = []string{}
		}
		return writeJSON(w, seeds)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(w, "No crawls found in the database.")
		fmt.Fprintln(w, "\nUse 'webcrawler crawl <url>' to crawl a site.")
		return nil
	}
	fmt.Fprintf(w, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(w, "  • %s\n", seed)
	}
	fmt.Fprintln(w, "\nUse 'webcrawler history <url>' to see the runs of a seed.")
	return nil
}

// listRuns prints the run summaries of seed, newest first.
func listRuns(ctx context.Context, db *database.CrawlDB, w io.Writer, seed string, asJSON bool) error {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No crawls found for %s\n", seed)
		return nil
	}
	fmt.Fprintf(w, "Crawl history for %s (%d runs):\n\n", seed, len(runs))
	fmt.Fprintf(w, "  %-6s  %-20s  %-5s  %-10s  %s\n", "ID", "Date", "Depth", "Downloaded", "Errors")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 60))
	for _, r := range runs {
		fmt.Fprintf(w, "  %-6d  %-20s  %-5d  %-10d  %d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Depth,
			r.DownloadedCount,
			r.ErrorCount,
		)
	}
	return nil
}

// showRun prints every page of one run.
func showRun(ctx context.Context, db *database.CrawlDB, w io.Writer, id int64, asJSON bool) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("crawl run %d not found", id)
	}
	if asJSON {
		return writeJSON(w, run)
	}

	fmt.Fprintf(w, "Run %d: %s (depth %d)\n", run.ID, run.Seed, run.Depth)
	fmt.Fprintf(w, "Started %s, took %s\n\n",
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	for _, address := range run.Downloaded {
		fmt.Fprintf(w, "OK: %s\n", address)
	}
	for _, address := range slices.Sorted(maps.Keys(run.Errors)) {
		fmt.Fprintf(w, "FAIL: %s - %s\n", address, run.Errors[address])
	}
	return nil
}

// RunDiff lists the pages that changed between two runs of a seed.
type RunDiff struct {
	Seed       string   `json:"seed"`
	PreviousID int64    `json:"previous_id"`
	CurrentID  int64    `json:"current_id"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	NewErrors  []string `json:"new_errors"`
	Recovered  []string `json:"recovered"`
	Unchanged  int      `json:"unchanged"`
}

// diffRuns compares the downloaded and failed pages of two runs.
func diffRuns(previous, current *database.Run) *RunDiff {
	d := &RunDiff{
		Seed:       current.Seed,
		PreviousID: previous.ID,
		CurrentID:  current.ID,
		Added:      []string{},
		Removed:    []string{},
		NewErrors:  []string{},
		Recovered:  []string{},
	}

	before := make(map[string]bool, len(previous.Downloaded))
	for _, address := range previous.Downloaded {
		before[address] = true
	}
	now := make(map[string]bool, len(current.Downloaded))
	for _, address := range current.Downloaded {
		now[address] = true
		if before[address] {
			d.Unchanged++
		} else if _, failed := previous.Errors[address]; failed {
			d.Recovered = append(d.Recovered, address)
		} else {
			d.Added = append(d.Added, address)
		}
	}
	for _, address := range previous.Downloaded {
		if now[address] {
			continue
		}
		if _, failed := current.Errors[address]; !failed {
			d.Removed = append(d.Removed, address)
		}
	}
	for address := range current.Errors {
		if _, failed := previous.Errors[address]; !failed {
			d.NewErrors = append(d.NewErrors, address)
		}
	}

	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	slices.Sort(d.NewErrors)
	slices.Sort(d.Recovered)
	return d
}

// compareRuns compares the latest run of seed with withID, or with the
// run before it.
func compareRuns(ctx context.Context, db *database.CrawlDB, w io.Writer, seed string, withID int64, asJSON bool) error {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no crawls found for %s", seed)
	}
	if len(runs) < 2 && withID == 0 {
		return fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(runs))
	}

	current, err := db.GetRun(ctx, runs[0].ID)
	if err != nil {
		return err
	}
	previousID := withID
	if previousID == 0 {
		previousID = runs[1].ID
	}
	previous, err := db.GetRun(ctx, previousID)
	if err != nil {
		return err
	}
	if previous == nil {
		return fmt.Errorf("crawl run %d not found", previousID)
	}
	if previous.Seed != seed {
		return fmt.Errorf("crawl run %d belongs to %s, not %s", previousID, previous.Seed, seed)
	}

	diff := diffRuns(previous, current)
	if asJSON {
		return writeJSON(w, diff)
	}

	fmt.Fprintf(w, "Comparing run %d with run %d for %s\n\n", diff.CurrentID, diff.PreviousID, diff.Seed)
	section := func(title, prefix string, addresses []string) {
		if len(addresses) == 0 {
			return
		}
		fmt.Fprintf(w, "%s (%d):\n", title, len(addresses))
		for _, address := range addresses {
			fmt.Fprintf(w, "  %s %s\n", prefix, address)
		}
		fmt.Fprintln(w)
	}
	section("New pages", "+", diff.Added)
	section("Gone pages", "-", diff.Removed)
	section("New errors", "!", diff.NewErrors)
	section("Recovered pages", "*", diff.Recovered)
	fmt.Fprintf(w, "Unchanged pages: %d\n", diff.Unchanged)
	return nil
}
