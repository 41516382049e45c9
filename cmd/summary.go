package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/worklog/internal/report"
	"github.com/Tiliavir/worklog/internal/timecalc"
)

var (
	summaryFilter filterFlags
	summaryFormat string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show hours spent per project",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	summaryFilter.register(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryFormat, "format", "md", "Output format: md, csv, json")
}

func runSummary(cmd *cobra.Command, args []string) error {
	filter, order, err := summaryFilter.build()
	if err != nil {
		return err
	}
	all, err := app.svc.GetAllDailyTasks(cmd.Context())
	if err != nil {
		return err
	}
	days := report.Apply(all, filter, order, now())
	s := report.Summarize(days)
	s.From, s.To = filter.Bounds(now())

	out := cmd.OutOrStdout()
	switch summaryFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "csv":
		printSummaryCSV(out, s)
	case "md":
		printSummaryMarkdown(out, s, filter.Preset)
	default:
		return fmt.Errorf("unknown format %q (want md, csv or json)", summaryFormat)
	}
	return nil
}

func printSummaryMarkdown(w io.Writer, s report.Summary, preset report.Preset) {
	title := "all time"
	switch {
	case s.From != "" && s.To != "":
		title = s.From + " – " + s.To
	case s.From != "":
		title = "since " + s.From
	case s.To != "":
		title = "until " + s.To
	}
	fmt.Fprintf(w, "## Summary (%s, %s)\n\n", preset, title)
	if len(s.Projects) == 0 {
		fmt.Fprintf(w, "No hours booked on %d day(s).\n", s.Entries)
		return
	}
	fmt.Fprintln(w, "| Project | Hours | Time |")
	fmt.Fprintln(w, "|---------|------:|------|")
	for _, p := range s.Projects {
		fmt.Fprintf(w, "| %s | %.2f | %s |\n", p.Project, p.Hours, timecalc.FormatHours(p.Hours))
	}
	fmt.Fprintf(w, "| **Total** | **%.2f** | **%s** |\n", s.Total, timecalc.FormatHours(s.Total))
}

func printSummaryCSV(w io.Writer, s report.Summary) {
	fmt.Fprintln(w, "project,hours")
	for _, p := range s.Projects {
		fmt.Fprintf(w, "%s,%.2f\n", csvEscape(p.Project), p.Hours)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
