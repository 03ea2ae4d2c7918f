package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/pkg/google"
)

// GoogleCSE queries the Google Custom Search JSON API.
type GoogleCSE struct {
	client google.Client
	filter *Filter
}

// NewGoogleCSE returns a provider; a nil client means the key or engine id
// is missing and every search returns nothing.
func NewGoogleCSE(c google.Client) *GoogleCSE {
	return &GoogleCSE{client: c, filter: defaultFilter}
}

func (g *GoogleCSE) Name() string { return NameGoogle }

func (g *GoogleCSE) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if g.client == nil {
		zap.L().Warn("google: custom search not configured", zap.String("query", query))
		return []Result{}, nil
	}
	num := clampLimit(limit, google.MaxResultsPerRequest)
	resp, err := g.client.Search(ctx, query, num)
	if err != nil {
		zap.L().Error("google: search failed", zap.String("query", query), zap.Error(err))
		return []Result{}, nil
	}

	raw := make([]Result, 0, len(resp.Items))
	for _, it := range resp.Items {
		raw = append(raw, Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return collect(raw, g.filter, num), nil
}
