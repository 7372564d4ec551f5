package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/export"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/services"
)

// DashboardHandler renders the HTML pages
type DashboardHandler struct {
	service *services.AnalyticsService
	policy  services.FallbackPolicy
	now     func() time.Time
}

type dashboardPage struct {
	Page
	Options    filter.Options
	Users      []string
	Projects   []string
	DateRanges []filter.DateRange
	SortKeys   []filter.SortKey
	Sessions   []models.SessionSummary
	Metrics    analytics.Metrics
	RefreshURL string
}

type sessionPage struct {
	Page
	SessionID string
	Report    *export.Report
	Formats   []export.Format
}

// NewDashboardHandler creates the page handler
func NewDashboardHandler(service *services.AnalyticsService, policy services.FallbackPolicy) *DashboardHandler {
	return &DashboardHandler{service: service, policy: policy, now: time.Now}
}

// Dashboard renders the metric cards, filter form and sessions table. The
// query string holds the applied filters; submitting the form applies a new
// set and the Reset link returns to the defaults.
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	now := h.now()

	query := queryValues(c)
	opts := filter.ParseQuery(query)
	page := dashboardPage{
		Page:       newPage(c, "Sessions"),
		DateRanges: filter.DateRanges,
		SortKeys:   filter.SortKeys,
	}
	if err := opts.Validate(); err != nil {
		page.warn("Ignoring invalid filters: "+err.Error(), true)
		opts = filter.Defaults()
	}
	page.Options = opts
	page.RefreshURL = "/"
	if q := opts.Query().Encode(); q != "" {
		page.RefreshURL += "?" + q
	}

	users := h.service.UserNames(ctx, h.policy)
	page.Users = users.Data
	page.warn(users.Message(), users.HasData())

	fetched := services.WithFallback(h.service.Sessions(ctx, services.QueryFor(opts, now)), h.policy)
	page.warn(fetched.Message(), fetched.HasData())
	page.Projects = filter.Projects(fetched.Data)
	page.Sessions = filter.Apply(fetched.Data, opts, now)
	page.Metrics = analytics.ComputeMetrics(page.Sessions)

	status := fiber.StatusOK
	if !fetched.HasData() {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).Render("dashboard", page)
}

// Session renders one session's request groups.
func (h *DashboardHandler) Session(c *fiber.Ctx) error {
	id := c.Params("id")
	page := sessionPage{
		Page:      newPage(c, "Session "+analytics.Truncate(id, 13)),
		SessionID: id,
		Formats:   export.Formats,
	}

	r := services.WithFallback(h.service.SessionDetail(c.UserContext(), id), h.policy)
	page.warn(r.Message(), r.HasData())
	if !r.HasData() {
		return c.Status(fiber.StatusBadGateway).Render("session", page)
	}

	report := export.Build(id, h.service.FindSummary(id), r.Data.Interactions)
	page.Report = &report
	return c.Render("session", page)
}
