// Package export writes session reports as JSON, YAML or Markdown.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/render"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatYAML, FormatMarkdown}

// Exporter writes a report in one format.
type Exporter interface {
	Export(w io.Writer, r Report) error
	ContentType() string
	Extension() string
}

// ParseFormat accepts the format names and their common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use json, yaml or md)", s)
}

// NewExporter returns the exporter for a format name.
func NewExporter(format string) (Exporter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatYAML:
		return yamlExporter{}, nil
	case FormatMarkdown:
		return &MarkdownExporter{Location: time.Local}, nil
	default:
		return jsonExporter{}, nil
	}
}

// Filename is the download name for a session's export.
func Filename(sessionID string, e Exporter) string {
	return "session-" + sessionID + "." + e.Extension()
}

type jsonExporter struct{}

func (jsonExporter) Export(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (jsonExporter) ContentType() string { return "application/json" }
func (jsonExporter) Extension() string   { return "json" }

type yamlExporter struct{}

func (yamlExporter) Export(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlExporter) ContentType() string { return "application/x-yaml" }
func (yamlExporter) Extension() string   { return "yaml" }

// MarkdownExporter writes a human-readable transcript.
type MarkdownExporter struct {
	Location *time.Location
}

func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
func (e *MarkdownExporter) Extension() string   { return "md" }

func (e *MarkdownExporter) Export(w io.Writer, r Report) error {
	var b strings.Builder
	h := r.Header

	fmt.Fprintf(&b, "# Session %s\n\n", h.SessionID)
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| User | %s |\n", cell(h.Username))
	fmt.Fprintf(&b, "| Project | %s |\n", cell(h.ProjectName))
	fmt.Fprintf(&b, "| Started | %s |\n", analytics.FormatTime(h.StartTime, e.Location))
	fmt.Fprintf(&b, "| Duration | %s |\n", analytics.FormatDuration(r.Stats.Duration))
	fmt.Fprintf(&b, "| Requests | %d |\n", h.Requests)
	fmt.Fprintf(&b, "| Tool calls | %d |\n", r.Stats.ToolCalls)
	fmt.Fprintf(&b, "| Tokens | %s |\n", analytics.FormatNumber(h.TotalTokens))

	for i, req := range r.Requests {
		fmt.Fprintf(&b, "\n## Request %d · %s\n\n", i+1, analytics.FormatTimestamp(req.Timestamp, e.Location))
		fmt.Fprintf(&b, "`%s` · %s tokens\n", req.RequestID, analytics.FormatTokenCount(req.TotalTokens))

		if req.UserPrompt != "" {
			fmt.Fprintf(&b, "\n### User prompt\n\n%s\n", req.UserPrompt)
		}
		for _, res := range req.ToolResults {
			fmt.Fprintf(&b, "\n### Tool result `%s`\n\n%s\n", res.ToolID, fence(res.Content))
		}
		for _, text := range req.Text {
			fmt.Fprintf(&b, "\n### Response\n\n%s\n", text)
		}
		for _, call := range req.ToolCalls {
			fmt.Fprintf(&b, "\n### Tool call: %s\n\nTool ID: `%s`\n", call.Name, call.ToolID)
			if in := render.ToolInputsMarkdown(call.Inputs); in != "" {
				fmt.Fprintf(&b, "\n%s\n", in)
			}
			if call.Result != nil {
				fmt.Fprintf(&b, "\nResult:\n\n%s\n", fence(call.Result.Content))
			} else {
				b.WriteString("\n_No response found_\n")
			}
		}
		for _, other := range req.Other {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", analytics.TitleCase(strings.ReplaceAll(other.Type, "_", " ")), other.Content)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

// fence wraps content in a code fence long enough not to be closed by it.
func fence(content string) string {
	marker := "```"
	for strings.Contains(content, marker) {
		marker += "`"
	}
	return marker + "\n" + strings.TrimRight(content, "\n") + "\n" + marker
}
