// Package filter narrows and orders session lists.
package filter

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aira-metrics/dashboard/internal/models"
)

// DateRange selects how far back sessions are shown.
type DateRange string

const (
	RangeDay     DateRange = "day"
	RangeWeek    DateRange = "week"
	RangeMonth   DateRange = "month"
	RangeQuarter DateRange = "quarter"
	RangeCustom  DateRange = "custom"
	RangeAll     DateRange = "all"
)

// DateRanges lists the ranges in display order.
var DateRanges = []DateRange{RangeDay, RangeWeek, RangeMonth, RangeQuarter, RangeCustom, RangeAll}

var rangeSpans = map[DateRange]time.Duration{
	RangeDay:     24 * time.Hour,
	RangeWeek:    7 * 24 * time.Hour,
	RangeMonth:   30 * 24 * time.Hour,
	RangeQuarter: 90 * 24 * time.Hour,
}

// Label is the human-readable name of the range.
func (r DateRange) Label() string {
	switch r {
	case RangeDay:
		return "Last 24 hours"
	case RangeWeek:
		return "Last 7 days"
	case RangeMonth:
		return "Last 30 days"
	case RangeQuarter:
		return "Last 90 days"
	case RangeCustom:
		return "Custom range"
	case RangeAll:
		return "All time"
	}
	return string(r)
}

// SortKey is the field sessions are ordered by.
type SortKey string

const (
	SortTimestamp    SortKey = "timestamp"
	SortTokens       SortKey = "tokens"
	SortDuration     SortKey = "duration"
	SortInteractions SortKey = "interactions"
)

// SortKeys lists the sort keys in display order.
var SortKeys = []SortKey{SortTimestamp, SortTokens, SortDuration, SortInteractions}

// Label is the human-readable name of the key.
func (k SortKey) Label() string {
	switch k {
	case SortTimestamp:
		return "Date"
	case SortTokens:
		return "Tokens"
	case SortDuration:
		return "Duration"
	case SortInteractions:
		return "Interactions"
	}
	return string(k)
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// DateLayout is the format of custom range bounds in queries and forms.
const DateLayout = "2006-01-02"

// Options are the filter and sort settings of a session list.
type Options struct {
	Users       []string  `json:"users"`
	Project     string    `json:"project"`
	DateRange   DateRange `json:"dateRange"`
	CustomStart time.Time `json:"customStart,omitempty"`
	CustomEnd   time.Time `json:"customEnd,omitempty"`
	SortBy      SortKey   `json:"sortBy"`
	SortOrder   SortOrder `json:"sortOrder"`
}

// Defaults returns the reset state: everyone, every project, the last week,
// newest first.
func Defaults() Options {
	return Options{
		DateRange: RangeWeek,
		SortBy:    SortTimestamp,
		SortOrder: Desc,
	}
}

// Equal reports whether two option sets select and order the same way.
// User order and case are not significant.
func (o Options) Equal(other Options) bool {
	return slices.Equal(normalizedUsers(o.Users), normalizedUsers(other.Users)) &&
		strings.EqualFold(o.Project, other.Project) &&
		o.DateRange == other.DateRange &&
		o.CustomStart.Equal(other.CustomStart) &&
		o.CustomEnd.Equal(other.CustomEnd) &&
		o.SortBy == other.SortBy &&
		o.SortOrder == other.SortOrder
}

// Clone returns a copy that shares no slices with o.
func (o Options) Clone() Options {
	o.Users = slices.Clone(o.Users)
	return o
}

// Validate rejects unknown enum values and inverted custom ranges.
func (o Options) Validate() error {
	if !slices.Contains(DateRanges, o.DateRange) {
		return fmt.Errorf("unknown date range %q", o.DateRange)
	}
	if !slices.Contains(SortKeys, o.SortBy) {
		return fmt.Errorf("unknown sort key %q", o.SortBy)
	}
	if o.SortOrder != Asc && o.SortOrder != Desc {
		return fmt.Errorf("unknown sort order %q", o.SortOrder)
	}
	if o.DateRange == RangeCustom && !o.CustomStart.IsZero() && !o.CustomEnd.IsZero() && o.CustomEnd.Before(o.CustomStart) {
		return fmt.Errorf("custom range ends before it starts")
	}
	return nil
}

// Window returns the inclusive time window selected by the options relative to
// now. A zero bound is open.
func (o Options) Window(now time.Time) (from, to time.Time) {
	if span, ok := rangeSpans[o.DateRange]; ok {
		return now.Add(-span), time.Time{}
	}
	if o.DateRange == RangeCustom {
		from = o.CustomStart
		if !o.CustomEnd.IsZero() {
			y, m, d := o.CustomEnd.Date()
			to = time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), o.CustomEnd.Location())
		}
	}
	return from, to
}

// Apply returns the sessions selected by opts, ordered by opts. The input is
// not modified. Ties are broken by session id.
func Apply(sessions []models.SessionSummary, opts Options, now time.Time) []models.SessionSummary {
	users := make(map[string]bool, len(opts.Users))
	for _, u := range opts.Users {
		if u = strings.TrimSpace(u); u != "" {
			users[strings.ToLower(u)] = true
		}
	}
	from, to := opts.Window(now)
	bounded := !from.IsZero() || !to.IsZero()

	out := make([]models.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		if len(users) > 0 && !users[strings.ToLower(s.Username)] {
			continue
		}
		if opts.Project != "" && !strings.EqualFold(s.ProjectName, opts.Project) {
			continue
		}
		if bounded {
			if s.StartTime.IsZero() {
				continue
			}
			if !from.IsZero() && s.StartTime.Before(from) {
				continue
			}
			if !to.IsZero() && s.StartTime.After(to) {
				continue
			}
		}
		out = append(out, s)
	}

	Sort(out, opts.SortBy, opts.SortOrder)
	return out
}

// Sort orders sessions in place.
func Sort(sessions []models.SessionSummary, key SortKey, order SortOrder) {
	cmp := compareFunc(key)
	sort.SliceStable(sessions, func(i, j int) bool {
		c := cmp(sessions[i], sessions[j])
		if c == 0 {
			return sessions[i].SessionID < sessions[j].SessionID
		}
		if order == Asc {
			return c < 0
		}
		return c > 0
	})
}

func compareFunc(key SortKey) func(a, b models.SessionSummary) int {
	switch key {
	case SortTokens:
		return func(a, b models.SessionSummary) int { return compareInt(a.TotalTokens, b.TotalTokens) }
	case SortDuration:
		return func(a, b models.SessionSummary) int { return compareInt(int64(a.Duration), int64(b.Duration)) }
	case SortInteractions:
		return func(a, b models.SessionSummary) int {
			return compareInt(int64(a.InteractionCount), int64(b.InteractionCount))
		}
	default:
		return func(a, b models.SessionSummary) int { return a.StartTime.Compare(b.StartTime) }
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Projects returns the distinct project names in sorted order.
func Projects(sessions []models.SessionSummary) []string {
	return distinct(sessions, func(s models.SessionSummary) string { return s.ProjectName })
}

// Users returns the distinct user names in sorted order.
func Users(sessions []models.SessionSummary) []string {
	return distinct(sessions, func(s models.SessionSummary) string { return s.Username })
}

func distinct(sessions []models.SessionSummary, field func(models.SessionSummary) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sessions {
		v := field(s)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func normalizedUsers(users []string) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// ParseQuery reads options from a query string. Missing or unknown values fall
// back to the defaults; "user" may repeat.
func ParseQuery(q url.Values) Options {
	opts := Defaults()
	for _, u := range q["user"] {
		for _, part := range strings.Split(u, ",") {
			if part = strings.TrimSpace(part); part != "" {
				opts.Users = append(opts.Users, part)
			}
		}
	}
	opts.Project = strings.TrimSpace(q.Get("project"))

	if r := DateRange(q.Get("range")); slices.Contains(DateRanges, r) {
		opts.DateRange = r
	}
	if k := SortKey(q.Get("sort")); slices.Contains(SortKeys, k) {
		opts.SortBy = k
	}
	if o := SortOrder(q.Get("order")); o == Asc || o == Desc {
		opts.SortOrder = o
	}
	if t, err := time.Parse(DateLayout, q.Get("from")); err == nil {
		opts.CustomStart = t
	}
	if t, err := time.Parse(DateLayout, q.Get("to")); err == nil {
		opts.CustomEnd = t
	}
	return opts
}

// Query encodes the options so ParseQuery restores them. Default values are
// omitted.
func (o Options) Query() url.Values {
	q := url.Values{}
	for _, u := range o.Users {
		q.Add("user", u)
	}
	if o.Project != "" {
		q.Set("project", o.Project)
	}
	if o.DateRange != "" && o.DateRange != RangeWeek {
		q.Set("range", string(o.DateRange))
	}
	if o.SortBy != "" && o.SortBy != SortTimestamp {
		q.Set("sort", string(o.SortBy))
	}
	if o.SortOrder != "" && o.SortOrder != Desc {
		q.Set("order", string(o.SortOrder))
	}
	if o.DateRange == RangeCustom {
		if !o.CustomStart.IsZero() {
			q.Set("from", o.CustomStart.Format(DateLayout))
		}
		if !o.CustomEnd.IsZero() {
			q.Set("to", o.CustomEnd.Format(DateLayout))
		}
	}
	return q
}

// HasUser reports whether name is among the selected users.
func (o Options) HasUser(name string) bool {
	return slices.ContainsFunc(o.Users, func(u string) bool { return strings.EqualFold(u, name) })
}
