package tui

import (
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/services"
)

// Data fetch messages. Each carries the loader sequence number it was
// started with; stale ones are dropped on arrival.
type usersMsg struct {
	seq    uint64
	result services.Result[[]string]
}

type sessionsMsg struct {
	seq    uint64
	opts   filter.Options
	result services.Result[[]models.SessionSummary]
}

type detailMsg struct {
	seq    uint64
	id     string
	result services.Result[services.SessionDetail]
}
