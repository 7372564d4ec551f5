// Package render turns interaction content, which agents write as markdown,
// into sanitized HTML for the web dashboard and styled text for terminals.
package render

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// HTML renders markdown to HTML that is safe to embed in a page.
func HTML(markdown string) template.HTML {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(markdown))
	}
	// #nosec G203 -- sanitized by bluemonday
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

var (
	termMu        sync.Mutex
	termRenderers = map[int]*glamour.TermRenderer{}
)

// Terminal renders markdown for a terminal of the given width. The input is
// returned unchanged when rendering fails.
func Terminal(markdown string, width int) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	if width < 20 {
		width = 20
	}

	termMu.Lock()
	defer termMu.Unlock()

	r, ok := termRenderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return markdown
		}
		termRenderers[width] = r
	}

	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(out, "\n")
}

// ToolInputs formats a tool call's input object as indented JSON. Input
// that is not valid JSON is returned as is.
func ToolInputs(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ToolInputsMarkdown wraps ToolInputs in a fenced json block.
func ToolInputsMarkdown(raw json.RawMessage) string {
	s := ToolInputs(raw)
	if s == "" {
		return ""
	}
	return "```json\n" + s + "\n```"
}
