package analytics

import (
	"time"

	"github.com/aira-metrics/dashboard/internal/models"
)

// Stats summarizes the interactions of one session.
type Stats struct {
	TotalRecords  int            `json:"total_records" yaml:"total_records"`
	Requests      int            `json:"requests" yaml:"requests"`
	UserPrompts   int            `json:"user_prompts" yaml:"user_prompts"`
	TextResponses int            `json:"text_responses" yaml:"text_responses"`
	ToolCalls     int            `json:"tool_calls" yaml:"tool_calls"`
	ToolResults   int            `json:"tool_results" yaml:"tool_results"`
	InputTokens   int64          `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens  int64          `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens   int64          `json:"total_tokens" yaml:"total_tokens"`
	ToolNames     map[string]int `json:"tool_names" yaml:"tool_names"`
	Agents        []string       `json:"agents" yaml:"agents"`
	FirstTime     time.Time      `json:"first_time" yaml:"first_time"`
	LastTime      time.Time      `json:"last_time" yaml:"last_time"`
	Duration      time.Duration  `json:"duration" yaml:"duration"`
	// OutOfBounds counts records whose timestamp falls outside the session
	// bounds passed to SetBounds. Such records are reported, not dropped.
	OutOfBounds int `json:"out_of_bounds" yaml:"out_of_bounds"`
}

// StatsAggregator accumulates Stats record by record.
type StatsAggregator struct {
	stats    *Stats
	requests map[string]bool
	agents   map[string]bool
	start    time.Time
	end      time.Time
}

// NewStatsAggregator creates an empty aggregator.
func NewStatsAggregator() *StatsAggregator {
	a := &StatsAggregator{}
	a.Reset()
	return a
}

// SetBounds sets the session bounds used for the OutOfBounds count. Zero
// values leave that side open.
func (a *StatsAggregator) SetBounds(start, end time.Time) {
	a.start = start
	a.end = end
}

// ProcessInteraction updates the statistics with one normalized record.
func (a *StatsAggregator) ProcessInteraction(rec models.Interaction) {
	a.stats.TotalRecords++

	if !a.requests[rec.RequestID] {
		a.requests[rec.RequestID] = true
		a.stats.Requests++
	}

	if rec.AgentID != "" && !a.agents[rec.AgentID] {
		a.agents[rec.AgentID] = true
		a.stats.Agents = append(a.stats.Agents, rec.AgentID)
	}

	// Counters belong to the wire record, which Normalize may have split.
	if rec.Primary() {
		a.stats.InputTokens += rec.InputTokens
		a.stats.OutputTokens += rec.OutputTokens
		a.stats.TotalTokens += rec.TotalTokens
		if rec.RequestType == models.RequestUserPrompt {
			a.stats.UserPrompts++
		}
		if rec.IsToolResult() {
			a.stats.ToolResults++
		}
	}

	switch rec.ResponseType {
	case models.ResponseText:
		a.stats.TextResponses++
	case models.ResponseToolUse:
		a.stats.ToolCalls++
		name := rec.ResponseToolName
		if name == "" {
			name = "unknown"
		}
		a.stats.ToolNames[name]++
	}

	if rec.Timestamp == 0 {
		return
	}
	ts := rec.Time()
	if a.stats.FirstTime.IsZero() || ts.Before(a.stats.FirstTime) {
		a.stats.FirstTime = ts
	}
	if ts.After(a.stats.LastTime) {
		a.stats.LastTime = ts
	}
	a.stats.Duration = a.stats.LastTime.Sub(a.stats.FirstTime)

	if (!a.start.IsZero() && ts.Before(a.start)) || (!a.end.IsZero() && ts.After(a.end)) {
		a.stats.OutOfBounds++
	}
}

// GetStats returns a copy of the current statistics.
func (a *StatsAggregator) GetStats() Stats {
	out := *a.stats
	out.ToolNames = make(map[string]int, len(a.stats.ToolNames))
	for k, v := range a.stats.ToolNames {
		out.ToolNames[k] = v
	}
	out.Agents = append([]string(nil), a.stats.Agents...)
	return out
}

// Reset clears all statistics. Bounds are kept.
func (a *StatsAggregator) Reset() {
	a.stats = &Stats{ToolNames: make(map[string]int)}
	a.requests = make(map[string]bool)
	a.agents = make(map[string]bool)
}

// ComputeStats aggregates records in one pass. The summary, when given,
// provides the session bounds.
func ComputeStats(records []models.Interaction, summary *models.SessionSummary) Stats {
	a := NewStatsAggregator()
	if summary != nil {
		a.SetBounds(summary.StartTime, summary.EndTime)
	}
	for _, rec := range records {
		a.ProcessInteraction(rec)
	}
	return a.GetStats()
}
