package analytics

import (
	"sort"
	"strings"

	"github.com/aira-metrics/dashboard/internal/models"
)

// KeyFunc extracts the grouping key of a record.
type KeyFunc func(models.Interaction) string

// ByRequest keys records by request id.
func ByRequest(i models.Interaction) string { return i.RequestID }

// ByExchange keys records by exchange id with any "-response-N" suffix
// removed, so the parts of one expanded record stay together.
func ByExchange(i models.Interaction) string { return BaseExchangeID(i.ExchangeID) }

// Group is a set of records sharing a key.
type Group struct {
	Key          string
	Interactions []models.Interaction
	// Timestamp is the smallest member timestamp.
	Timestamp int64
}

// TotalTokens sums the token counts of the group's wire records. Records
// expanded from one wire record share its counters and are counted once.
func (g Group) TotalTokens() int64 {
	var total int64
	for _, rec := range g.Interactions {
		if rec.Primary() {
			total += rec.TotalTokens
		}
	}
	return total
}

// GroupBy partitions records by key. Members are ordered by timestamp and
// groups by their smallest member timestamp; both orders are stable. Records
// with an empty key are kept in the group whose key is "".
func GroupBy(records []models.Interaction, key KeyFunc) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, rec := range records {
		k := key(rec)
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, Group{Key: k, Timestamp: rec.Timestamp})
		}
		g := &groups[pos]
		g.Interactions = append(g.Interactions, rec)
		if rec.Timestamp < g.Timestamp {
			g.Timestamp = rec.Timestamp
		}
	}

	for i := range groups {
		sortByTimestamp(groups[i].Interactions)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Timestamp < groups[j].Timestamp
	})
	return groups
}

// ExchangeGroups groups records by exchange.
func ExchangeGroups(records []models.Interaction) []Group {
	return GroupBy(records, ByExchange)
}

// RequestGroup is one user request with every record produced while serving it.
type RequestGroup struct {
	Group
	// UserPrompt is the content of the first user_prompt record, if any.
	UserPrompt string
}

// RequestID is the group key.
func (r RequestGroup) RequestID() string { return r.Key }

// Exchanges projects the request's records onto exchange groups. One request
// may span several exchanges.
func (r RequestGroup) Exchanges() []Group {
	return ExchangeGroups(r.Interactions)
}

// Classify classifies the request's records.
func (r RequestGroup) Classify() Classification {
	return Classify(r.Interactions)
}

// ToolResultFor finds the tool result answering call: the first record at or
// after the call's timestamp whose request is a tool_result carrying the call's
// tool id. ok is false when there is none or the call has no tool id.
func (r RequestGroup) ToolResultFor(call models.Interaction) (models.Interaction, bool) {
	return FindToolResult(r.Interactions, call)
}

// RequestGroups groups records by request id.
func RequestGroups(records []models.Interaction) []RequestGroup {
	groups := GroupBy(records, ByRequest)
	out := make([]RequestGroup, len(groups))
	for i, g := range groups {
		out[i] = RequestGroup{Group: g}
		for _, rec := range g.Interactions {
			if rec.RequestType == models.RequestUserPrompt {
				out[i].UserPrompt = rec.RequestContent
				break
			}
		}
	}
	return out
}

// FindToolResult is the correlation rule behind RequestGroup.ToolResultFor,
// usable over any record slice ordered by timestamp.
func FindToolResult(records []models.Interaction, call models.Interaction) (models.Interaction, bool) {
	if call.ResponseToolID == "" {
		return models.Interaction{}, false
	}
	for _, rec := range records {
		if rec.Timestamp < call.Timestamp {
			continue
		}
		if rec.RequestType == models.RequestToolResult && rec.RequestToolID == call.ResponseToolID {
			return rec, true
		}
	}
	return models.Interaction{}, false
}

// BaseExchangeID strips the "-response-N" suffix added by Normalize.
func BaseExchangeID(id string) string {
	const marker = "-response-"
	idx := strings.LastIndex(id, marker)
	if idx < 0 {
		return id
	}
	suffix := id[idx+len(marker):]
	if suffix == "" {
		return id
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return id
		}
	}
	return id[:idx]
}
