package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aira-metrics/dashboard/internal/auth"
	"github.com/aira-metrics/dashboard/internal/config"
	"github.com/aira-metrics/dashboard/internal/handlers"
	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/middleware"
	"github.com/aira-metrics/dashboard/internal/recovery"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "🌐 Serve the web dashboard",
	Long: `# 🌐 Serve the Dashboard

**Start the web dashboard and its JSON API.**

## 🔐 Sign-in
With **auth.enabled** set, visitors sign in with Google. The ID token is verified
against Google's published keys and exchanged for a session cookie.
Restrict access with **auth.allowed_domains**.

## 🛟 Fallback Data
When the analytics API fails, the dashboard shows the last good response or the
bundled placeholder data (see **fallback.sources**) and says so in a banner.

## 💡 Examples
` + "```bash\naira serve --listen :9000\nAIRA_AUTH_ENABLED=false aira serve --dev-proxy\n```",
	RunE: runServe,
}

var (
	listenAddr  string
	devProxy    bool
	watchConfig bool
	accessLog   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (overrides server.listen)")
	serveCmd.Flags().BoolVar(&devProxy, "dev-proxy", false, "Proxy /proxy/* to the analytics API (overrides server.dev_proxy)")
	serveCmd.Flags().BoolVar(&watchConfig, "watch-config", false, "Reload the log level when the config file changes")
	serveCmd.Flags().BoolVar(&accessLog, "access-log", true, "Log every request")
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if cmd.Flags().Changed("dev-proxy") {
		cfg.Server.DevProxy = devProxy
	}

	svc, policy, err := newAnalytics(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	am, err := middleware.NewAuthMiddleware(middleware.Config{
		Enabled: cfg.Auth.Enabled,
		Secret:  cfg.Auth.SessionSecret,
		TTL:     cfg.Auth.SessionTTL,
		Secure:  cfg.Auth.SecureCookie,
	})
	if err != nil {
		return err
	}

	var verifier handlers.IDTokenVerifier
	if cfg.Auth.Enabled {
		gv := auth.NewGoogleVerifier(auth.Config{
			ClientID:       cfg.Auth.GoogleClientID,
			AllowedDomains: cfg.Auth.AllowedDomains,
		})
		defer gv.Close()
		verifier = gv
	} else {
		logger.Warnf("sign-in is disabled; the dashboard is open to anyone who can reach %s", cfg.Server.Listen)
	}

	app, err := handlers.NewApp(handlers.AppConfig{
		Service:        svc,
		Fallback:       policy,
		Auth:           am,
		Verifier:       verifier,
		GoogleClientID: cfg.Auth.GoogleClientID,
		DevProxy:       cfg.Server.DevProxy,
		UpstreamURL:    cfg.API.BaseURL,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Location:       time.Local,
		AccessLog:      accessLog,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if watchConfig && vcfg.ConfigFileUsed() != "" {
		config.Watch(vcfg, func(c *config.Config) {
			level := logger.ParseLevel(c.Log.Level)
			if level != logger.CurrentLevel() {
				logger.Infof("config changed: log level %s", level)
				logger.SetLevel(level)
			}
		}, func(err error) {
			logger.Warnf("%v", err)
		})
		logger.Infof("watching %s", vcfg.ConfigFileUsed())
	}

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Infof("📊 AIRA dashboard listening on %s", cfg.Server.Listen)
	errChan := listenAsync("listener", func() error { return app.Listen(cfg.Server.Listen) })

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Infof("received %s, shutting down", sig)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// listenAsync runs listen in a goroutine. The channel receives its result, or
// an error if it panicked.
func listenAsync(name string, listen func() error) <-chan error {
	errChan := make(chan error, 1)
	recovery.SafeGoWithCleanup(name, func() {
		errChan <- listen()
	}, func() {
		select {
		case errChan <- fmt.Errorf("%s stopped unexpectedly", name):
		default:
		}
	})
	return errChan
}
