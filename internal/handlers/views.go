package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/render"
)

const layoutFile = "layout.html"

// Views renders the embedded page templates. Every page is parsed together
// with the layout and executed through it. It implements fiber.Views.
type Views struct {
	files fs.FS
	loc   *time.Location
	pages map[string]*template.Template
}

// NewViews creates a view engine over files; times are shown in loc.
func NewViews(files fs.FS, loc *time.Location) *Views {
	if loc == nil {
		loc = time.Local
	}
	return &Views{files: files, loc: loc}
}

// Load parses every page template.
func (v *Views) Load() error {
	names, err := fs.Glob(v.files, "*.html")
	if err != nil {
		return err
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutFile {
			continue
		}
		t, err := template.New(name).Funcs(v.funcs()).ParseFS(v.files, layoutFile, name)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		pages[strings.TrimSuffix(name, ".html")] = t
	}
	v.pages = pages
	return nil
}

// Render executes page name with the layout.
func (v *Views) Render(w io.Writer, name string, data interface{}, _ ...string) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

func (v *Views) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": render.HTML,
		"toolInputs": func(raw json.RawMessage) string {
			return render.ToolInputs(raw)
		},
		"duration": analytics.FormatDuration,
		"tokens": func(n any) string {
			return analytics.FormatTokenCount(toInt64(n))
		},
		"number": func(n any) string {
			return analytics.FormatNumber(toInt64(n))
		},
		"ts": func(ms int64) string {
			return analytics.FormatTimestamp(ms, v.loc)
		},
		"when": func(t time.Time) string {
			return analytics.FormatTime(t, v.loc)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(filter.DateLayout)
		},
		"title": func(s string) string {
			return analytics.TitleCase(strings.ReplaceAll(s, "_", " "))
		},
		"truncate": func(s string, n int) string {
			return analytics.Truncate(s, n)
		},
		"inc": func(i int) int { return i + 1 },
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		return 0
	}
}
