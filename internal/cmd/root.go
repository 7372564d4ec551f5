package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aira-metrics/dashboard/internal/config"
	"github.com/aira-metrics/dashboard/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "aira",
	Short: "📊 AIRA Metrics - agent session analytics",
	Long: `# 📊 AIRA Metrics

**Browse the conversations between users and AI coding agents.**

## ✨ Features

- 🌐 **Web dashboard** with Google sign-in, filters and per-session drill-down
- 🖥️  **Terminal browser** with the same filters and request view
- 📤 **Exports** of a session as Markdown, JSON or YAML
- 🛟 **Fallback data** from the last good response when the API is down

## 🚀 Getting Started

Run **aira serve** to start the dashboard, or **aira browse** to explore in the terminal.

Configuration is read from **aira.yaml** and **AIRA_*** environment variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var (
	configPath string
	debug      bool

	// cfg and vcfg are loaded before any subcommand runs.
	cfg  *config.Config
	vcfg *viper.Viper
)

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: aira.yaml in ., ~/.aira or /etc/aira)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Set custom help function to use glamour for markdown rendering
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderMarkdownHelp(cmd)
	})
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, v, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg, vcfg = c, v

	level := logger.GetLogLevelFromEnv(logger.ParseLevel(cfg.Log.Level))
	if debug {
		level = logger.LevelDebug
	}
	logger.Configure(level, cfg.Log.Dev)
	logger.Debugf("runtime %s, config %q", config.Runtime.Mode, vcfg.ConfigFileUsed())
	return nil
}

// renderMarkdownHelp renders command help using glamour
func renderMarkdownHelp(cmd *cobra.Command) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	} else if cmd.Short != "" {
		help.WriteString("# " + cmd.Short)
		help.WriteString("\n\n")
	}

	help.WriteString("## 📖 Usage\n\n```bash\n")
	help.WriteString(cmd.UseLine())
	help.WriteString("\n```\n\n")

	if cmd.HasAvailableSubCommands() {
		help.WriteString("## 🔧 Available Commands\n\n")
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				fmt.Fprintf(&help, "- **%s** - %s\n", sub.Name(), sub.Short)
			}
		}
		help.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() {
		help.WriteString("## ⚙️  Flags\n\n```\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString("```\n\n")
	}

	if cmd.HasAvailableInheritedFlags() {
		help.WriteString("## 🌐 Global Flags\n\n```\n")
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("```\n\n")
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_ = cmd.Usage()
		return
	}
	rendered, err := renderer.Render(help.String())
	if err != nil {
		_ = cmd.Usage()
		return
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
}
