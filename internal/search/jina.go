package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// Jina queries the Jina search API.
type Jina struct {
	client jina.Client
	filter *Filter
}

// NewJina returns a Jina provider.
func NewJina(c jina.Client) *Jina {
	return &Jina{client: c, filter: defaultFilter}
}

func (j *Jina) Name() string { return NameJina }

func (j *Jina) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	resp, err := j.client.Search(ctx, query)
	if err != nil {
		zap.L().Error("jina: search failed", zap.String("query", query), zap.Error(err))
		return []Result{}, nil
	}
	raw := make([]Result, 0, len(resp.Data))
	for _, d := range resp.Data {
		raw = append(raw, Result{Title: d.Title, URL: d.URL, Snippet: d.Description})
	}
	return collect(raw, j.filter, clampLimit(limit, MaxResults)), nil
}
