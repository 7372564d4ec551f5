package analytics

import (
	"fmt"
	"sort"

	"github.com/aira-metrics/dashboard/internal/models"
)

// Normalize expands one wire record into records that each hold a single
// response part. Array-valued response fields are paired by index; scalar or
// absent fields occupy index 0 only. Request-side fields are copied unchanged.
//
// A record whose response fields are all empty arrays still yields one record
// so its request side stays visible.
func Normalize(raw models.RawInteraction) []models.Interaction {
	n := max(
		raw.ResponseType.Len(),
		raw.ResponseContent.Len(),
		raw.ResponseToolID.Len(),
		raw.ResponseToolName.Len(),
		raw.ResponseToolInputs.Len(),
		1,
	)

	out := make([]models.Interaction, n)
	for i := range n {
		rec := models.Interaction{
			ExchangeID:         raw.ExchangeID,
			RequestID:          raw.RequestID,
			SessionID:          raw.SessionID,
			UserName:           raw.UserName,
			ProjectName:        raw.ProjectName,
			AgentID:            raw.AgentID,
			Timestamp:          int64(raw.Timestamp),
			RequestType:        raw.RequestType,
			RequestContent:     raw.RequestContent,
			RequestToolID:      raw.RequestToolID,
			ResponseType:       raw.ResponseType.At(i),
			ResponseContent:    raw.ResponseContent.At(i),
			ResponseToolID:     raw.ResponseToolID.At(i),
			ResponseToolName:   raw.ResponseToolName.At(i),
			ResponseToolInputs: raw.ResponseToolInputs.At(i),
			TotalTokens:        raw.TotalTokens,
			InputTokens:        raw.InputTokens,
			OutputTokens:       raw.OutputTokens,
			Part:               i,
		}
		if n > 1 {
			rec.ExchangeID = fmt.Sprintf("%s-response-%d", raw.ExchangeID, i+1)
		}
		out[i] = rec
	}
	return out
}

// NormalizeAll normalizes every record and orders the result by timestamp.
// Records sharing a timestamp keep their input order.
func NormalizeAll(raws []models.RawInteraction) []models.Interaction {
	var out []models.Interaction
	for _, raw := range raws {
		out = append(out, Normalize(raw)...)
	}
	sortByTimestamp(out)
	return out
}

// NormalizePayload flattens a session detail payload and normalizes it.
func NormalizePayload(payload models.SessionDetailPayload) []models.Interaction {
	return NormalizeAll(payload.Flatten())
}

func sortByTimestamp(records []models.Interaction) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
}
