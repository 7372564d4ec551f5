package models

import (
	"encoding/json"
	"time"
)

// Request types seen in interaction records
const (
	RequestUserPrompt = "user_prompt"
	RequestToolResult = "tool_result"
)

// Response types seen in interaction records
const (
	ResponseText    = "text"
	ResponseToolUse = "tool_use"
)

// RawInteraction is one logged request/response pair exactly as the analytics API
// sends it. The response fields may carry several response parts.
type RawInteraction struct {
	ExchangeID         string     `json:"exchange_id"`
	RequestID          string     `json:"request_id"`
	SessionID          string     `json:"session_id"`
	UserName           string     `json:"user_name"`
	ProjectName        string     `json:"project_name"`
	AgentID            string     `json:"agent_id"`
	Timestamp          Millis     `json:"timestamp"`
	RequestType        string     `json:"request_type"`
	RequestContent     string     `json:"request_content"`
	RequestToolID      string     `json:"request_tool_id,omitempty"`
	ResponseType       FlexString `json:"response_type"`
	ResponseContent    FlexString `json:"response_content"`
	ResponseToolID     FlexString `json:"response_tool_id"`
	ResponseToolName   FlexString `json:"response_tool_name"`
	ResponseToolInputs FlexRaw    `json:"response_tool_inputs"`
	TotalTokens        int64      `json:"total_tokens,omitempty"`
	InputTokens        int64      `json:"input_tokens,omitempty"`
	OutputTokens       int64      `json:"output_tokens,omitempty"`
}

// Interaction is a normalized interaction record holding a single response part.
// @Description One request and one response part of an agent session
type Interaction struct {
	ExchangeID         string          `json:"exchange_id" yaml:"exchange_id"`
	RequestID          string          `json:"request_id" yaml:"request_id"`
	SessionID          string          `json:"session_id" yaml:"session_id"`
	UserName           string          `json:"user_name" yaml:"user_name"`
	ProjectName        string          `json:"project_name" yaml:"project_name"`
	AgentID            string          `json:"agent_id" yaml:"agent_id"`
	Timestamp          int64           `json:"timestamp" yaml:"timestamp"`
	RequestType        string          `json:"request_type" yaml:"request_type"`
	RequestContent     string          `json:"request_content" yaml:"request_content"`
	RequestToolID      string          `json:"request_tool_id,omitempty" yaml:"request_tool_id,omitempty"`
	ResponseType       string          `json:"response_type" yaml:"response_type"`
	ResponseContent    string          `json:"response_content" yaml:"response_content"`
	ResponseToolID     string          `json:"response_tool_id,omitempty" yaml:"response_tool_id,omitempty"`
	ResponseToolName   string          `json:"response_tool_name,omitempty" yaml:"response_tool_name,omitempty"`
	ResponseToolInputs json.RawMessage `json:"response_tool_inputs,omitempty" yaml:"-"`
	TotalTokens        int64           `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`
	InputTokens        int64           `json:"input_tokens,omitempty" yaml:"input_tokens,omitempty"`
	OutputTokens       int64           `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
	// Part is the index of this record among those expanded from one wire
	// record. The wire record's counters are attributed to part 0 only.
	Part int `json:"part,omitempty" yaml:"part,omitempty"`
}

// Primary reports whether the record carries its wire record's counters.
func (i Interaction) Primary() bool {
	return i.Part == 0
}

// Time returns the interaction timestamp as a time.Time.
func (i Interaction) Time() time.Time {
	return Millis(i.Timestamp).Time()
}

// IsToolResult reports whether the request side carries a tool result.
func (i Interaction) IsToolResult() bool {
	return i.RequestType == RequestToolResult
}

// IsToolCall reports whether the response side is a tool invocation.
func (i Interaction) IsToolCall() bool {
	return i.ResponseType == ResponseToolUse
}

// APISession is a session row as returned by the sessions endpoint.
type APISession struct {
	SessionID        string `json:"session_id"`
	FirstInteraction string `json:"first_interaction"`
	LastInteraction  string `json:"last_interaction"`
	InteractionCount int    `json:"interaction_count"`
	ProjectID        string `json:"project_id"`
	ProjectName      string `json:"project_name"`
	UserName         string `json:"user_name"`
	AgentID          string `json:"agent_id,omitempty"`
	TotalTokens      int64  `json:"total_tokens,omitempty"`
}

// SessionsResponse is the envelope of the sessions endpoint.
type SessionsResponse struct {
	Count int          `json:"count"`
	Data  []APISession `json:"data"`
}

// SessionSummary is the list-view aggregate of one session.
// @Description Session summary used by the sessions table
type SessionSummary struct {
	SessionID        string        `json:"session_id" yaml:"session_id"`
	Username         string        `json:"username" yaml:"username"`
	ProjectID        string        `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	ProjectName      string        `json:"project_name" yaml:"project_name"`
	AgentID          string        `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	StartTime        time.Time     `json:"start_time" yaml:"start_time"`
	EndTime          time.Time     `json:"end_time" yaml:"end_time"`
	Duration         time.Duration `json:"duration_ms" yaml:"duration"`
	TotalTokens      int64         `json:"total_tokens" yaml:"total_tokens"`
	InteractionCount int           `json:"interaction_count" yaml:"interaction_count"`
}

// MarshalJSON reports the duration in milliseconds.
func (s SessionSummary) MarshalJSON() ([]byte, error) {
	type alias SessionSummary
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration_ms"`
	}{alias: alias(s), Duration: s.Duration.Milliseconds()})
}

// User is a user descriptor from the users endpoint. The endpoint has returned
// both bare names and objects over time.
type User struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	LastActive    string `json:"lastActive,omitempty"`
	TotalSessions int    `json:"totalSessions,omitempty"`
	TotalTokens   int64  `json:"totalTokens,omitempty"`
}

// UnmarshalJSON accepts either a JSON string or an object.
func (u *User) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*u = User{Name: name}
		return nil
	}

	var obj struct {
		ID            json.RawMessage `json:"id"`
		Name          string          `json:"name"`
		UserName      string          `json:"user_name"`
		Username      string          `json:"username"`
		Email         string          `json:"email"`
		LastActive    string          `json:"lastActive"`
		TotalSessions int             `json:"totalSessions"`
		TotalTokens   int64           `json:"totalTokens"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*u = User{
		ID:            rawToString(obj.ID),
		Name:          obj.Name,
		Email:         obj.Email,
		LastActive:    obj.LastActive,
		TotalSessions: obj.TotalSessions,
		TotalTokens:   obj.TotalTokens,
	}
	for _, candidate := range []string{obj.UserName, obj.Username, obj.Email, u.ID} {
		if u.Name != "" {
			break
		}
		u.Name = candidate
	}
	return nil
}
