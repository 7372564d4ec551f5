package handlers

import (
	"bytes"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/export"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/services"
)

// APIHandler serves the JSON API
type APIHandler struct {
	service *services.AnalyticsService
	policy  services.FallbackPolicy
}

// Envelope wraps every API payload with where the data came from
// @Description API response with data provenance
type Envelope struct {
	Data   any             `json:"data"`
	Source services.Source `json:"source" example:"live"`
	Error  string          `json:"error,omitempty" example:"Failed to fetch sessions: 502 Bad Gateway (showing data cached 2m 0s ago)"`
}

// SessionListResponse is the sessions list with its headline metrics
// @Description Filtered sessions and metrics
type SessionListResponse struct {
	Count    int                     `json:"count"`
	Sessions []models.SessionSummary `json:"sessions"`
	Metrics  analytics.Metrics       `json:"metrics"`
	Filters  filter.Options          `json:"filters"`
}

// SessionDetailResponse is a session's normalized records and their report
// @Description Normalized interactions, request groups and stats
type SessionDetailResponse struct {
	SessionID    string               `json:"session_id"`
	Shape        models.DetailShape   `json:"shape"`
	Interactions []models.Interaction `json:"interactions"`
	Report       export.Report        `json:"report"`
}

// SessionsQuery is the POST /api/sessions body
// @Description Usernames plus optional filters; omitted range means all time
type SessionsQuery struct {
	Usernames []string `json:"usernames"`
	Project   string   `json:"project,omitempty"`
	Range     string   `json:"range,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Sort      string   `json:"sort,omitempty"`
	Order     string   `json:"order,omitempty"`
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(service *services.AnalyticsService, policy services.FallbackPolicy) *APIHandler {
	return &APIHandler{service: service, policy: policy}
}

// Users lists user display names
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {object} Envelope
// @Failure 502 {object} Envelope
// @Router /api/users [get]
func (h *APIHandler) Users(c *fiber.Ctx) error {
	r := h.service.UserNames(c.UserContext(), h.policy)
	if r.Data == nil {
		r.Data = []string{}
	}
	return respond(c, r.Data, r.Source, r.Message(), r.HasData())
}

// ListSessions lists sessions selected by query parameters
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Param user query []string false "User names (repeat or comma separated)"
// @Param project query string false "Project name"
// @Param range query string false "day, week, month, quarter, custom or all"
// @Param from query string false "Custom range start (YYYY-MM-DD)"
// @Param to query string false "Custom range end (YYYY-MM-DD)"
// @Param sort query string false "timestamp, tokens, duration or interactions"
// @Param order query string false "asc or desc"
// @Success 200 {object} Envelope
// @Failure 400 {object} map[string]string
// @Router /api/sessions [get]
func (h *APIHandler) ListSessions(c *fiber.Ctx) error {
	opts := filter.ParseQuery(queryValues(c))
	if err := opts.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return h.sessions(c, opts)
}

// QuerySessions lists the sessions of the given users
// @Summary Query sessions
// @Tags sessions
// @Accept json
// @Produce json
// @Param body body SessionsQuery true "Usernames and filters"
// @Success 200 {object} Envelope
// @Failure 400 {object} map[string]string
// @Router /api/sessions [post]
func (h *APIHandler) QuerySessions(c *fiber.Ctx) error {
	var body SessionsQuery
	if len(bytes.TrimSpace(c.Body())) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body: " + err.Error()})
		}
	}

	q := url.Values{}
	q["user"] = body.Usernames
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("project", body.Project)
	set("range", body.Range)
	set("from", body.From)
	set("to", body.To)
	set("sort", body.Sort)
	set("order", body.Order)
	if body.Range == "" {
		q.Set("range", string(filter.RangeAll))
	}

	opts := filter.ParseQuery(q)
	if err := opts.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return h.sessions(c, opts)
}

func (h *APIHandler) sessions(c *fiber.Ctx, opts filter.Options) error {
	r := h.service.SessionList(c.UserContext(), opts, h.policy)
	sessions := r.Data
	if sessions == nil {
		sessions = []models.SessionSummary{}
	}
	payload := SessionListResponse{
		Count:    len(sessions),
		Sessions: sessions,
		Metrics:  analytics.ComputeMetrics(sessions),
		Filters:  opts,
	}
	return respond(c, payload, r.Source, r.Message(), r.HasData())
}

// GetSession returns one session's normalized records
// @Summary Get session detail
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} Envelope
// @Failure 502 {object} Envelope
// @Router /api/sessions/{id} [get]
func (h *APIHandler) GetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	r := services.WithFallback(h.service.SessionDetail(c.UserContext(), id), h.policy)
	if !r.HasData() {
		return respond(c, nil, r.Source, r.Message(), false)
	}

	records := r.Data.Interactions
	if records == nil {
		records = []models.Interaction{}
	}
	payload := SessionDetailResponse{
		SessionID:    id,
		Shape:        r.Data.Shape,
		Interactions: records,
		Report:       export.Build(id, h.service.FindSummary(id), records),
	}
	return respond(c, payload, r.Source, r.Message(), true)
}

// ExportSession downloads a session report
// @Summary Export session
// @Tags sessions
// @Produce json,application/x-yaml,text/markdown
// @Param id path string true "Session ID"
// @Param format query string false "json, yaml or md"
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Failure 502 {object} Envelope
// @Router /api/sessions/{id}/export [get]
func (h *APIHandler) ExportSession(c *fiber.Ctx) error {
	exporter, err := export.NewExporter(c.Query("format"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	id := c.Params("id")
	r := services.WithFallback(h.service.SessionDetail(c.UserContext(), id), h.policy)
	if !r.HasData() {
		return respond(c, nil, r.Source, r.Message(), false)
	}

	report := export.Build(id, h.service.FindSummary(id), r.Data.Interactions)
	var buf bytes.Buffer
	if err := exporter.Export(&buf, report); err != nil {
		return err
	}

	if r.Err != nil {
		c.Set("X-Data-Source", string(r.Source))
	}
	c.Attachment(export.Filename(id, exporter))
	c.Set(fiber.HeaderContentType, exporter.ContentType())
	return c.Send(buf.Bytes())
}

// respond writes an envelope. A failed fetch with nothing to show is a 502.
func respond(c *fiber.Ctx, data any, source services.Source, msg string, hasData bool) error {
	status := fiber.StatusOK
	if !hasData {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(Envelope{Data: data, Source: source, Error: msg})
}

// queryValues copies the request's query string, keeping repeated keys.
func queryValues(c *fiber.Ctx) url.Values {
	q := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		q[k] = append(q[k], string(value))
	})
	return q
}
