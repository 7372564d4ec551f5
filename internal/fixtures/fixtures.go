// Package fixtures serves placeholder analytics data for when the API is
// unreachable and nothing has been cached yet.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aira-metrics/dashboard/internal/models"
)

//go:embed data
var dataFS embed.FS

const httpDate = "Mon, 02 Jan 2006 15:04:05 GMT"

// Set is the placeholder data, with session times moved so the latest session
// ended an hour before the reference time.
type Set struct {
	users    []models.User
	sessions []models.APISession
	details  map[string]models.SessionDetailPayload
	offset   time.Duration
}

// Load decodes the embedded data relative to now.
func Load(now time.Time) (*Set, error) {
	var users []models.User
	if err := decodeFile("data/users.json", &users); err != nil {
		return nil, err
	}

	var sessions models.SessionsResponse
	if err := decodeFile("data/sessions.json", &sessions); err != nil {
		return nil, err
	}

	set := &Set{users: users, details: make(map[string]models.SessionDetailPayload)}
	set.offset = shiftFor(sessions.Data, now)
	set.sessions = make([]models.APISession, len(sessions.Data))
	for i, s := range sessions.Data {
		s.FirstInteraction = shiftTime(s.FirstInteraction, set.offset)
		s.LastInteraction = shiftTime(s.LastInteraction, set.offset)
		set.sessions[i] = s
	}

	entries, err := fs.ReadDir(dataFS, "data/details")
	if err != nil {
		return nil, fmt.Errorf("read fixture details: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := dataFS.ReadFile(path.Join("data/details", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", entry.Name(), err)
		}
		payload, err := models.DecodeSessionDetail(raw)
		if err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", entry.Name(), err)
		}
		set.details[strings.TrimSuffix(entry.Name(), ".json")] = shiftPayload(payload, set.offset)
	}
	return set, nil
}

// MustLoad is Load for callers that cannot recover from corrupt embedded data.
func MustLoad(now time.Time) *Set {
	set, err := Load(now)
	if err != nil {
		panic(err)
	}
	return set
}

// Users returns the placeholder users.
func (s *Set) Users() []models.User {
	return append([]models.User(nil), s.users...)
}

// Sessions returns placeholder sessions, limited to usernames when given.
func (s *Set) Sessions(usernames []string) []models.APISession {
	if len(usernames) == 0 {
		return append([]models.APISession(nil), s.sessions...)
	}
	var out []models.APISession
	for _, sess := range s.sessions {
		for _, u := range usernames {
			if strings.EqualFold(u, sess.UserName) {
				out = append(out, sess)
				break
			}
		}
	}
	return out
}

// SessionDetail returns the placeholder detail for id, if there is one.
func (s *Set) SessionDetail(id string) (models.SessionDetailPayload, bool) {
	p, ok := s.details[id]
	return p, ok
}

func decodeFile(name string, v any) error {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode fixture %s: %w", name, err)
	}
	return nil
}

// shiftFor is the whole-minute offset that moves the latest session end to
// an hour before now.
func shiftFor(sessions []models.APISession, now time.Time) time.Duration {
	var latest time.Time
	for _, s := range sessions {
		if t, err := models.ParseAPITime(s.LastInteraction); err == nil && t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() || now.IsZero() {
		return 0
	}
	return now.Add(-time.Hour).Sub(latest).Truncate(time.Minute)
}

func shiftTime(value string, offset time.Duration) string {
	t, err := models.ParseAPITime(value)
	if err != nil {
		return value
	}
	return t.Add(offset).UTC().Format(httpDate)
}

func shiftPayload(p models.SessionDetailPayload, offset time.Duration) models.SessionDetailPayload {
	ms := models.Millis(offset.Milliseconds())
	shift := func(records []models.RawInteraction) []models.RawInteraction {
		out := make([]models.RawInteraction, len(records))
		for i, r := range records {
			if r.Timestamp != 0 {
				r.Timestamp += ms
			}
			out[i] = r
		}
		return out
	}

	switch p.Shape {
	case models.DetailByRequest:
		shifted := make(map[string][]models.RawInteraction, len(p.ByRequest))
		for k, v := range p.ByRequest {
			shifted[k] = shift(v)
		}
		p.ByRequest = shifted
	default:
		p.Records = shift(p.Records)
	}
	return p
}
