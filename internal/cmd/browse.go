package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aira-metrics/dashboard/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse [session-id]",
	Short: "🖥️  Browse sessions in the terminal",
	Long: `# 🖥️  Terminal Browser

**Explore sessions without leaving the terminal.**

## ⌨️  Keys
- **enter** opens a session, **esc** goes back
- **f** opens the filter panel; changes take effect on **enter**
- **s** / **o** change the sort key and order
- **r** refreshes, **q** quits

Inside a session, **enter** expands a request or a tool call, **e** expands every request.

Set **AIRA_TUI_LOG** to a file path to keep the log while browsing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
	addFilterFlags(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	opts, err := filterOptions()
	if err != nil {
		return err
	}
	svc, policy, err := newAnalytics(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	browseOpts := tui.Options{
		Service:  svc,
		Fallback: policy,
		Filters:  opts,
		Location: time.Local,
	}
	if len(args) == 1 {
		browseOpts.SessionID = args[0]
	}
	return tui.NewApp(browseOpts).Run(ctx)
}
