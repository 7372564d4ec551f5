package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aira-metrics/dashboard/internal/assets"
	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/middleware"
	"github.com/aira-metrics/dashboard/internal/services"
)

// AppConfig wires the HTTP server.
type AppConfig struct {
	Service  *services.AnalyticsService
	Fallback services.FallbackPolicy

	// Auth is nil when sign-in is disabled.
	Auth           *middleware.AuthMiddleware
	Verifier       IDTokenVerifier
	GoogleClientID string

	// UpstreamURL is proxied under /proxy when DevProxy is set.
	DevProxy    bool
	UpstreamURL string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Location     *time.Location
	// AccessLog enables the request logger.
	AccessLog bool
}

// NewApp builds the fiber application serving the dashboard and its API.
func NewApp(cfg AppConfig) (*fiber.App, error) {
	views := NewViews(assets.Templates(), cfg.Location)
	if err := views.Load(); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               "aira-dashboard",
		Views:                 views,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		// Proxied responses keep the upstream's encoding.
		Next:  func(c *fiber.Ctx) bool { return strings.HasPrefix(c.Path(), "/proxy/") },
		Level: compress.LevelBestSpeed,
	}))
	if cfg.AccessLog {
		app.Use(SamplingLogger())
	}

	app.Use("/static", ServeStatic())
	app.Get("/healthz", Health(cfg.Service))

	app.Use(cfg.Auth.RequireAuth)

	authHandler := NewAuthHandler(cfg.Auth, cfg.Verifier, cfg.GoogleClientID)
	app.Get("/login", authHandler.LoginPage)
	app.Post("/auth/google", authHandler.GoogleCallback)
	app.Post("/auth/logout", authHandler.Logout)
	app.Get("/auth/me", authHandler.Me)

	pages := NewDashboardHandler(cfg.Service, cfg.Fallback)
	app.Get("/", pages.Dashboard)
	app.Get("/sessions/:id", pages.Session)

	api := NewAPIHandler(cfg.Service, cfg.Fallback)
	v1 := app.Group("/api")
	v1.Get("/users", api.Users)
	v1.Get("/sessions", api.ListSessions)
	v1.Post("/sessions", api.QuerySessions)
	v1.Get("/sessions/:id", api.GetSession)
	v1.Get("/sessions/:id/export", api.ExportSession)

	if cfg.DevProxy {
		logger.Infof("proxying /proxy/* to %s", cfg.UpstreamURL)
		app.All("/proxy/*", ProxyToUpstream(cfg.UpstreamURL))
	}

	return app, nil
}

// Health reports liveness and the fallback cache counters.
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /healthz [get]
func Health(svc *services.AnalyticsService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "caches": svc.CacheStats()})
	}
}

// Page is the data every page template receives.
type Page struct {
	Title      string
	User       *middleware.Claims
	Banner     string
	BannerKind string
}

func newPage(c *fiber.Ctx, title string) Page {
	return Page{Title: title, User: middleware.ClaimsFrom(c)}
}

// warn shows a warning banner for a failed fetch whose data was substituted,
// and an error banner when nothing could be shown.
func (p *Page) warn(msg string, hasData bool) {
	if msg == "" {
		return
	}
	if p.Banner != "" {
		p.Banner += " · " + msg
	} else {
		p.Banner = msg
	}
	if hasData && p.BannerKind != "error" {
		p.BannerKind = "warning"
	} else {
		p.BannerKind = "error"
	}
}

type errorPage struct {
	Page
	Status  int
	Message string
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	msg := err.Error()
	if code >= fiber.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Method(), c.Path(), err)
		msg = "Something went wrong."
	}

	if wantsJSON(c) {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	page := errorPage{Page: newPage(c, http.StatusText(code)), Status: code, Message: msg}
	if renderErr := c.Status(code).Render("error", page); renderErr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/proxy/") ||
		strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
