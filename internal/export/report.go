package export

import (
	"encoding/json"
	"time"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/models"
)

// Report is a session's detail arranged for reading: the header, aggregate
// stats and one entry per request.
type Report struct {
	Header   analytics.DetailHeader `json:"header" yaml:"header"`
	Stats    analytics.Stats        `json:"stats" yaml:"stats"`
	Requests []Request              `json:"requests" yaml:"requests"`
}

// Request is one request group.
type Request struct {
	RequestID   string      `json:"request_id" yaml:"request_id"`
	Timestamp   int64       `json:"timestamp" yaml:"timestamp"`
	Time        time.Time   `json:"time" yaml:"time"`
	UserPrompt  string      `json:"user_prompt,omitempty" yaml:"user_prompt,omitempty"`
	TotalTokens int64       `json:"total_tokens" yaml:"total_tokens"`
	Exchanges   []string    `json:"exchanges" yaml:"exchanges"`
	ToolResults []ToolEvent `json:"tool_results,omitempty" yaml:"tool_results,omitempty"`
	Text        []string    `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCalls   []ToolCall  `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	Other       []ToolEvent `json:"other,omitempty" yaml:"other,omitempty"`
}

// ToolEvent is a tool result delivered to the agent, or a response of an
// unrecognized type.
type ToolEvent struct {
	ToolID    string `json:"tool_id,omitempty" yaml:"tool_id,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Content   string `json:"content" yaml:"content"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// ToolCall is a tool invocation by the agent and, when found, its result.
type ToolCall struct {
	ToolID    string          `json:"tool_id" yaml:"tool_id"`
	Name      string          `json:"name" yaml:"name"`
	Inputs    json.RawMessage `json:"inputs,omitempty" yaml:"-"`
	InputText string          `json:"-" yaml:"inputs,omitempty"`
	Timestamp int64           `json:"timestamp" yaml:"timestamp"`
	Result    *ToolEvent      `json:"result,omitempty" yaml:"result,omitempty"`
}

// Build arranges records, which must be normalized and ordered by timestamp.
// summary may be nil.
func Build(sessionID string, summary *models.SessionSummary, records []models.Interaction) Report {
	r := Report{
		Header: analytics.BuildDetailHeader(sessionID, summary, records),
		Stats:  analytics.ComputeStats(records, summary),
	}

	for _, g := range analytics.RequestGroups(records) {
		req := Request{
			RequestID:   g.RequestID(),
			Timestamp:   g.Timestamp,
			Time:        models.Millis(g.Timestamp).Time(),
			UserPrompt:  g.UserPrompt,
			TotalTokens: g.TotalTokens(),
		}
		for _, ex := range g.Exchanges() {
			req.Exchanges = append(req.Exchanges, ex.Key)
		}

		c := g.Classify()
		for _, rec := range c.ToolResults {
			req.ToolResults = append(req.ToolResults, toolEvent(rec.RequestToolID, "", rec.RequestContent, rec.Timestamp))
		}
		for _, rec := range c.Text {
			req.Text = append(req.Text, rec.ResponseContent)
		}
		for _, rec := range c.ToolCalls {
			call := ToolCall{
				ToolID:    rec.ResponseToolID,
				Name:      rec.ResponseToolName,
				Inputs:    rec.ResponseToolInputs,
				InputText: string(rec.ResponseToolInputs),
				Timestamp: rec.Timestamp,
			}
			if res, ok := g.ToolResultFor(rec); ok {
				ev := toolEvent(res.RequestToolID, "", res.RequestContent, res.Timestamp)
				call.Result = &ev
			}
			req.ToolCalls = append(req.ToolCalls, call)
		}
		for _, rec := range c.Other {
			req.Other = append(req.Other, toolEvent(rec.ResponseToolID, rec.ResponseType, rec.ResponseContent, rec.Timestamp))
		}

		r.Requests = append(r.Requests, req)
	}
	return r
}

func toolEvent(id, typ, content string, ts int64) ToolEvent {
	return ToolEvent{ToolID: id, Type: typ, Content: content, Timestamp: ts}
}
