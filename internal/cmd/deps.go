package cmd

import (
	"time"

	"github.com/aira-metrics/dashboard/internal/cache"
	"github.com/aira-metrics/dashboard/internal/config"
	"github.com/aira-metrics/dashboard/internal/fixtures"
	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/services"
	"github.com/aira-metrics/dashboard/internal/upstream"
)

// newAnalytics builds the upstream client and the service on top of it.
// Placeholder fixtures are loaded only when the policy can use them.
func newAnalytics(c *config.Config) (*services.AnalyticsService, services.FallbackPolicy, error) {
	policy, err := services.ParseFallbackPolicy(c.Fallback.Sources)
	if err != nil {
		return nil, nil, err
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:        c.API.BaseURL,
		Timeout:        c.API.Timeout,
		Retries:        c.API.Retries,
		SessionsMethod: c.API.SessionsMethod,
		DetailPaths:    c.API.DetailPaths,
		UserAgent:      "aira/" + Version,
	})

	var fx *fixtures.Set
	if policy.Has(services.SourcePlaceholder) {
		if fx, err = fixtures.Load(time.Now()); err != nil {
			return nil, nil, err
		}
	}

	svc := services.NewAnalyticsService(client, fx, cache.Config{
		MaxSize:       c.Fallback.CacheSize,
		DefaultTTL:    c.Fallback.CacheTTL,
		CleanupPeriod: time.Minute,
	})
	logger.Debugf("analytics API %s, fallback %v", client.BaseURL(), policy)
	return svc, policy, nil
}
