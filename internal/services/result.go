package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aira-metrics/dashboard/internal/analytics"
)

// Source says where the data in a Result came from.
type Source string

const (
	SourceLive        Source = "live"
	SourceCache       Source = "cache"
	SourcePlaceholder Source = "placeholder"
	SourceNone        Source = "none"
)

// FallbackPolicy is the ordered list of sources to substitute when a live
// fetch fails. An empty policy substitutes nothing.
type FallbackPolicy []Source

// DefaultFallbackPolicy prefers the last good response over placeholder data.
var DefaultFallbackPolicy = FallbackPolicy{SourceCache, SourcePlaceholder}

// ParseFallbackPolicy reads policy names from configuration. "fixtures" and
// "placeholder" are the same source.
func ParseFallbackPolicy(names []string) (FallbackPolicy, error) {
	policy := make(FallbackPolicy, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "cache":
			policy = append(policy, SourceCache)
		case "fixtures", "placeholder":
			policy = append(policy, SourcePlaceholder)
		case "", "none":
		default:
			return nil, fmt.Errorf("unknown fallback source %q", name)
		}
	}
	return policy, nil
}

// Has reports whether the policy falls back to source.
func (p FallbackPolicy) Has(source Source) bool {
	return slices.Contains(p, source)
}

type fallbackFunc[T any] func() (T, time.Duration, bool)

// Result is the outcome of a fetch. Err is kept even when fallback data has
// been substituted, so callers can always tell the operator what went wrong.
type Result[T any] struct {
	Data   T
	Err    error
	Source Source
	// Age is how old cached data is.
	Age time.Duration

	fallbacks map[Source]fallbackFunc[T]
}

// OK reports a successful live fetch.
func (r Result[T]) OK() bool {
	return r.Err == nil && r.Source == SourceLive
}

// HasData reports whether Data is usable.
func (r Result[T]) HasData() bool {
	return r.Source != SourceNone && r.Source != ""
}

// Message is a one-line description of the failure and the data shown
// instead, or "" when the fetch succeeded.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	switch r.Source {
	case SourceCache:
		return fmt.Sprintf("%v (showing data cached %s ago)", r.Err, analytics.FormatDuration(r.Age))
	case SourcePlaceholder:
		return fmt.Sprintf("%v (showing placeholder data)", r.Err)
	default:
		return r.Err.Error()
	}
}

// WithFallback substitutes data from the first source in policy that has
// some. The error is preserved. Successful results are returned unchanged.
func WithFallback[T any](r Result[T], policy FallbackPolicy) Result[T] {
	if r.Err == nil {
		return r
	}
	for _, src := range policy {
		fn, ok := r.fallbacks[src]
		if !ok {
			continue
		}
		if data, age, ok := fn(); ok {
			r.Data = data
			r.Source = src
			r.Age = age
			return r
		}
	}
	return r
}

func live[T any](data T) Result[T] {
	return Result[T]{Data: data, Source: SourceLive}
}

func failed[T any](err error, fallbacks map[Source]fallbackFunc[T]) Result[T] {
	return Result[T]{Err: err, Source: SourceNone, fallbacks: fallbacks}
}
