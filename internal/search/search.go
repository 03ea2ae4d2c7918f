// Package search queries web search backends and returns company-shaped
// results with normalized domains.
package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
	"github.com/sells-group/leadgen-cli/pkg/google"
	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// Provider names accepted by New.
const (
	NameDuckDuckGo = "duckduckgo"
	NameGoogle     = "google"
	NameJina       = "jina"
)

// MaxResults caps a single provider call.
const MaxResults = 25

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Domain  string `json:"domain"`
}

// Provider runs a query against one backend. Implementations return an
// empty slice rather than an error when the backend fails.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Deps carries the backends New may select from.
type Deps struct {
	Fetcher browser.Fetcher
	Google  google.Client // nil when unconfigured
	Jina    jina.Client
}

// New selects a provider by its config name.
func New(name string, deps Deps) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameDuckDuckGo:
		if deps.Fetcher == nil {
			return nil, eris.New("search: duckduckgo requires a browser")
		}
		return NewDuckDuckGo(deps.Fetcher), nil
	case NameGoogle:
		return NewGoogleCSE(deps.Google), nil
	case NameJina:
		if deps.Jina == nil {
			return nil, eris.New("search: jina client not configured")
		}
		return NewJina(deps.Jina), nil
	default:
		return nil, eris.Errorf("search: unknown provider %q", name)
	}
}

// EventType maps a provider name to the source event type it records.
func EventType(provider string) model.SourceEventType {
	switch provider {
	case NameGoogle:
		return model.SourceEventGoogleSearch
	case NameJina:
		return model.SourceEventJinaSearch
	default:
		return model.SourceEventSERP
	}
}

func clampLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

// collect normalizes, filters, and deduplicates raw hits up to limit.
func collect(raw []Result, f *Filter, limit int) []Result {
	out := make([]Result, 0, min(len(raw), limit))
	seen := make(map[string]struct{})
	for _, r := range raw {
		domain, ok := normalize.Domain(r.URL)
		if !ok || f.Excluded(domain) {
			continue
		}
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		r.Domain = domain
		r.Title = strings.TrimSpace(r.Title)
		r.Snippet = strings.TrimSpace(r.Snippet)
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}
