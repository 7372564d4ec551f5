package analytics

import "github.com/aira-metrics/dashboard/internal/models"

// Classification splits records by what they carry. The request side and the
// response side are classified independently, so one record can appear both
// in ToolResults and in Text.
type Classification struct {
	Text        []models.Interaction
	ToolCalls   []models.Interaction
	Other       []models.Interaction
	ToolResults []models.Interaction
}

// Classify classifies records, keeping their order.
func Classify(records []models.Interaction) Classification {
	var c Classification
	for _, rec := range records {
		if rec.IsToolResult() {
			c.ToolResults = append(c.ToolResults, rec)
		}
		switch rec.ResponseType {
		case models.ResponseText:
			c.Text = append(c.Text, rec)
		case models.ResponseToolUse:
			c.ToolCalls = append(c.ToolCalls, rec)
		case "":
		default:
			c.Other = append(c.Other, rec)
		}
	}
	return c
}

// ToolNames counts tool calls by tool name. Unnamed calls count under "unknown".
func (c Classification) ToolNames() map[string]int {
	names := make(map[string]int, len(c.ToolCalls))
	for _, call := range c.ToolCalls {
		name := call.ResponseToolName
		if name == "" {
			name = "unknown"
		}
		names[name]++
	}
	return names
}
