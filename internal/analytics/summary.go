package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/aira-metrics/dashboard/internal/models"
)

// SummaryFromAPI converts a sessions endpoint row into a summary. Unparseable
// times are left zero; the duration is never negative.
func SummaryFromAPI(s models.APISession) models.SessionSummary {
	start, _ := models.ParseAPITime(s.FirstInteraction)
	end, _ := models.ParseAPITime(s.LastInteraction)

	var d time.Duration
	if !start.IsZero() && !end.IsZero() && end.After(start) {
		d = end.Sub(start)
	}

	return models.SessionSummary{
		SessionID:        s.SessionID,
		Username:         TitleCase(s.UserName),
		ProjectID:        s.ProjectID,
		ProjectName:      s.ProjectName,
		AgentID:          s.AgentID,
		StartTime:        start,
		EndTime:          end,
		Duration:         d,
		TotalTokens:      s.TotalTokens,
		InteractionCount: s.InteractionCount,
	}
}

// Summaries converts every row.
func Summaries(rows []models.APISession) []models.SessionSummary {
	out := make([]models.SessionSummary, len(rows))
	for i, row := range rows {
		out[i] = SummaryFromAPI(row)
	}
	return out
}

// UserNames returns title-cased display names, deduplicated without regard to
// case and sorted. Blank names are skipped.
func UserNames(users []models.User) []string {
	seen := make(map[string]bool, len(users))
	var names []string
	for _, u := range users {
		name := TitleCase(u.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetailHeader is the summary shown above a session's request groups.
type DetailHeader struct {
	SessionID   string    `json:"session_id" yaml:"session_id"`
	Username    string    `json:"username" yaml:"username"`
	ProjectName string    `json:"project_name" yaml:"project_name"`
	StartTime   time.Time `json:"start_time" yaml:"start_time"`
	EndTime     time.Time `json:"end_time" yaml:"end_time"`
	TotalTokens int64     `json:"total_tokens" yaml:"total_tokens"`
	Requests    int       `json:"requests" yaml:"requests"`
}

// BuildDetailHeader combines the list summary (may be nil) with the detail
// records. The first record's user and project take precedence over the
// summary's, and tokens are summed over the records.
func BuildDetailHeader(sessionID string, summary *models.SessionSummary, records []models.Interaction) DetailHeader {
	h := DetailHeader{SessionID: sessionID}
	if summary != nil {
		h.Username = summary.Username
		h.ProjectName = summary.ProjectName
		h.StartTime = summary.StartTime
		h.EndTime = summary.EndTime
	}
	if len(records) > 0 {
		first := records[0]
		if first.UserName != "" {
			h.Username = TitleCase(first.UserName)
		}
		if first.ProjectName != "" {
			h.ProjectName = first.ProjectName
		}
		if h.StartTime.IsZero() {
			h.StartTime = first.Time()
		}
		if h.EndTime.IsZero() {
			h.EndTime = records[len(records)-1].Time()
		}
	}
	h.TotalTokens = Group{Interactions: records}.TotalTokens()
	h.Requests = len(GroupBy(records, ByRequest))
	return h
}

// Metrics are the headline figures over a list of sessions.
type Metrics struct {
	TotalSessions     int           `json:"total_sessions"`
	TotalInteractions int           `json:"total_interactions"`
	UniqueUsers       int           `json:"unique_users"`
	AverageDuration   time.Duration `json:"average_duration"`
	TotalTokens       int64         `json:"total_tokens"`
}

// ComputeMetrics aggregates the headline figures.
func ComputeMetrics(sessions []models.SessionSummary) Metrics {
	m := Metrics{TotalSessions: len(sessions)}
	users := make(map[string]bool)
	var total time.Duration
	for _, s := range sessions {
		m.TotalInteractions += s.InteractionCount
		m.TotalTokens += s.TotalTokens
		total += s.Duration
		if s.Username != "" {
			users[strings.ToLower(s.Username)] = true
		}
	}
	m.UniqueUsers = len(users)
	if len(sessions) > 0 {
		m.AverageDuration = total / time.Duration(len(sessions))
	}
	return m
}
