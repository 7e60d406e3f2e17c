package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxListedPages caps the downloaded-pages table per seed. Larger crawls
// are folded into a details block.
const maxListedPages = 50

// MarkdownWriter outputs reports in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
//  1. Type-safe tables, lists and code blocks
//  2. GitHub-flavored alerts and mermaid charts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs all reports as one Markdown document.
func (w *MarkdownWriter) Write(reports []*CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := Summarize(reports)

	md.H1("Crawl Report")
	md.PlainText("")
	w.writeSummary(md, summary)

	for _, r := range reports {
		w.writeCrawl(md, r)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webcrawler](https://github.com/nao1215/webcrawler)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s Summary) {
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Seeds", strconv.Itoa(s.Seeds)},
			{"Downloaded", strconv.Itoa(s.Downloaded)},
			{"Fetch errors", strconv.Itoa(s.FetchErrors)},
			{"Extraction errors", strconv.Itoa(s.ExtractErrs)},
			{"Panics", strconv.Itoa(s.Panics)},
		},
	})
	md.PlainText("")

	if s.Downloaded+s.Errors() > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case s.FailedSeeds > 0:
		md.Cautionf("%d seed(s) could not be crawled at all.", s.FailedSeeds)
	case s.Errors() > 0:
		md.Warningf("%d address(es) failed.", s.Errors())
	default:
		md.Tip("Every address was downloaded successfully.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)

	if s.Downloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(s.Downloaded))
	}
	if s.FetchErrors > 0 {
		chart.LabelAndIntValue("Fetch errors", uint64(s.FetchErrors))
	}
	if s.ExtractErrs > 0 {
		chart.LabelAndIntValue("Extraction errors", uint64(s.ExtractErrs))
	}
	if s.Panics > 0 {
		chart.LabelAndIntValue("Panics", uint64(s.Panics))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeCrawl(md *markdown.Markdown, r *CrawlReport) {
	md.H2(r.Seed)
	md.PlainText("")

	rows := [][]string{
		{"Depth", strconv.Itoa(r.Depth)},
		{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Elapsed", r.Elapsed().Round(time.Millisecond).String()},
		{"Downloaded", strconv.Itoa(len(r.Downloaded))},
		{"Errors", strconv.Itoa(len(r.Errors))},
	}
	if r.RunID != 0 {
		rows = append(rows, []string{"Run ID", strconv.FormatInt(r.RunID, 10)})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	if r.Failed() {
		md.Cautionf("Crawl failed: %s", r.Failure)
		md.PlainText("")
		return
	}

	if len(r.Errors) > 0 {
		md.H3("Errors")
		md.PlainText("")
		errRows := make([][]string, len(r.Errors))
		for i, e := range r.Errors {
			errRows[i] = []string{"`" + e.URL + "`", e.Kind, truncateString(e.Error, 80)}
		}
		md.Table(markdown.TableSet{Header: []string{"URL", "Kind", "Error"}, Rows: errRows})
		md.PlainText("")
	}

	if len(r.Downloaded) == 0 {
		return
	}
	md.H3("Downloaded")
	md.PlainText("")
	if len(r.Downloaded) <= maxListedPages {
		md.BulletList(r.Downloaded...)
		md.PlainText("")
		return
	}
	md.BulletList(r.Downloaded[:maxListedPages]...)
	md.PlainText("")
	md.Details(strconv.Itoa(len(r.Downloaded)-maxListedPages)+" more", strings.Join(r.Downloaded[maxListedPages:], "\n"))
	md.PlainText("")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
