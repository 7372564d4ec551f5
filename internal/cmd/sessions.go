package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/export"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/render"
	"github.com/aira-metrics/dashboard/internal/services"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "📋 List and export sessions",
	Long: `# 📋 Sessions

**List sessions and export a session's conversation.**`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "📋 List sessions matching filters",
	Long: `# 📋 List Sessions

**Print the sessions selected by the filters, with headline metrics.**

## 💡 Examples
` + "```bash\naira sessions list --user \"John Doe\" --range month --sort tokens\naira sessions list --range custom --from 2025-08-01 --to 2025-08-31 --format json\n```",
	Args: cobra.NoArgs,
	RunE: runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "📤 Show or export one session",
	Long: `# 📤 Show a Session

**Print a session's requests, tool calls and responses.**

Markdown output is rendered for the terminal unless redirected. Use **--output**
to write the export to a file.

## 💡 Examples
` + "```bash\naira sessions show ae620910-91bf-4a0e-892a-58fec8da54f2\naira sessions show ae620910-91bf-4a0e-892a-58fec8da54f2 --format yaml -o session.yaml\n```",
	Args: cobra.ExactArgs(1),
	RunE: runSessionsShow,
}

var (
	filterUsers   []string
	filterProject string
	filterRange   string
	filterFrom    string
	filterTo      string
	filterSort    string
	filterOrder   string

	listFormat string
	showFormat string
	showOutput string
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)

	addFilterFlags(sessionsListCmd)
	sessionsListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format: table, json or yaml")

	sessionsShowCmd.Flags().StringVarP(&showFormat, "format", "f", string(export.FormatMarkdown), "Output format: md, json or yaml")
	sessionsShowCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write to this file instead of stdout")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&filterUsers, "user", "u", nil, "User names (repeat or comma separated)")
	cmd.Flags().StringVarP(&filterProject, "project", "p", "", "Project name")
	cmd.Flags().StringVar(&filterRange, "range", string(filter.RangeWeek), "day, week, month, quarter, custom or all")
	cmd.Flags().StringVar(&filterFrom, "from", "", "Custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filterTo, "to", "", "Custom range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filterSort, "sort", string(filter.SortTimestamp), "timestamp, tokens, duration or interactions")
	cmd.Flags().StringVar(&filterOrder, "order", string(filter.Desc), "asc or desc")
}

// filterOptions reads the filter flags. Unlike query strings, flags with
// unknown values are rejected rather than reset.
func filterOptions() (filter.Options, error) {
	q := url.Values{"user": filterUsers}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("project", filterProject)
	set("range", filterRange)
	set("from", filterFrom)
	set("to", filterTo)
	set("sort", filterSort)
	set("order", filterOrder)

	opts := filter.ParseQuery(q)
	if string(opts.DateRange) != filterRange {
		return opts, fmt.Errorf("unknown date range %q", filterRange)
	}
	if string(opts.SortBy) != filterSort {
		return opts, fmt.Errorf("unknown sort key %q", filterSort)
	}
	if string(opts.SortOrder) != filterOrder {
		return opts, fmt.Errorf("unknown sort order %q", filterOrder)
	}
	for name, value := range map[string]string{"from": filterFrom, "to": filterTo} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(filter.DateLayout, value); err != nil {
			return opts, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
		}
	}
	return opts, opts.Validate()
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	opts, err := filterOptions()
	if err != nil {
		return err
	}
	svc, policy, err := newAnalytics(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	r := svc.SessionList(cmd.Context(), opts, policy)
	if err := reportSource(cmd, r.Message(), r.HasData()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch listFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Data)
	case "yaml":
		return yaml.NewEncoder(out).Encode(r.Data)
	case "table":
		printSessions(out, r.Data)
		return nil
	default:
		return fmt.Errorf("unknown format %q (use table, json or yaml)", listFormat)
	}
}

func printSessions(w io.Writer, sessions []models.SessionSummary) {
	mt := analytics.ComputeMetrics(sessions)
	fmt.Fprintf(w, "%s sessions · %s interactions · %s users · avg %s · %s tokens\n\n",
		analytics.FormatNumber(int64(mt.TotalSessions)),
		analytics.FormatNumber(int64(mt.TotalInteractions)),
		analytics.FormatNumber(int64(mt.UniqueUsers)),
		analytics.FormatDuration(mt.AverageDuration),
		analytics.FormatTokenCount(mt.TotalTokens))

	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions match these filters.")
		return
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "USER", "PROJECT", "DURATION", "INTERACTIONS", "TOKENS", "SESSION").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, s := range sessions {
		t.Row(
			analytics.FormatTime(s.StartTime, time.Local),
			s.Username,
			s.ProjectName,
			analytics.FormatDuration(s.Duration),
			analytics.FormatNumber(int64(s.InteractionCount)),
			analytics.FormatTokenCount(s.TotalTokens),
			s.SessionID,
		)
	}
	fmt.Fprintln(w, t.Render())
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	exporter, err := export.NewExporter(showFormat)
	if err != nil {
		return err
	}
	svc, policy, err := newAnalytics(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	id := args[0]
	r := services.WithFallback(svc.SessionDetail(cmd.Context(), id), policy)
	if err := reportSource(cmd, r.Message(), r.HasData()); err != nil {
		return err
	}

	report := export.Build(id, svc.FindSummary(id), r.Data.Interactions)

	var buf bytes.Buffer
	if err := exporter.Export(&buf, report); err != nil {
		return err
	}

	if showOutput != "" {
		if err := os.WriteFile(showOutput, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", showOutput, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", showOutput)
		return nil
	}

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && exporter.Extension() == "md" && term.IsTerminal(int(f.Fd())) {
		width, _, err := term.GetSize(int(f.Fd()))
		if err != nil {
			width = 100
		}
		fmt.Fprintln(out, render.Terminal(buf.String(), width))
		return nil
	}
	_, err = out.Write(buf.Bytes())
	return err
}

// reportSource tells the operator on stderr when substituted data is shown,
// and fails when there is none.
func reportSource(cmd *cobra.Command, msg string, hasData bool) error {
	if msg == "" {
		return nil
	}
	if !hasData {
		return fmt.Errorf("%s", msg)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", strings.TrimSpace(msg))
	return nil
}
