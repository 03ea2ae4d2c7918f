package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/browser"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/?q="

// Tried in order; the first selector with any match wins.
var resultSelectors = []string{
	"a.result__a",
	"article a[data-testid=result-title-a]",
	"h2 a",
	"a[href^=http]",
}

// DuckDuckGo scrapes the HTML results page through a headless browser.
type DuckDuckGo struct {
	fetcher browser.Fetcher
	filter  *Filter
}

// NewDuckDuckGo returns a DuckDuckGo provider.
func NewDuckDuckGo(f browser.Fetcher) *DuckDuckGo {
	return &DuckDuckGo{fetcher: f, filter: defaultFilter}
}

func (d *DuckDuckGo) Name() string { return NameDuckDuckGo }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	snap, err := d.fetcher.Fetch(ctx, duckDuckGoURL+url.QueryEscape(query))
	if err != nil {
		zap.L().Warn("duckduckgo: fetch failed", zap.String("query", query), zap.Error(err))
		return []Result{}, nil
	}
	raw, err := ParseDuckDuckGo(snap.HTML)
	if err != nil {
		zap.L().Warn("duckduckgo: parse failed", zap.String("query", query), zap.Error(err))
		return []Result{}, nil
	}
	if len(raw) == 0 {
		if blocked, kind := browser.DetectBlock(snap); blocked {
			zap.L().Warn("duckduckgo: results page blocked", zap.String("query", query), zap.String("block", string(kind)))
		}
	}
	return collect(raw, d.filter, clampLimit(limit, MaxResults)), nil
}

// ParseDuckDuckGo extracts result anchors from a results page.
func ParseDuckDuckGo(html string) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, sel := range resultSelectors {
		anchors := doc.Find(sel)
		if anchors.Length() == 0 {
			continue
		}
		anchors.Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			target := resolveRedirect(href)
			if target == "" {
				return
			}
			out = append(out, Result{
				Title:   a.Text(),
				URL:     target,
				Snippet: a.Closest(".result").Find(".result__snippet").First().Text(),
			})
		})
		break
	}
	return out, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= links and drops anything
// that is not an absolute http(s) URL.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	} else if strings.HasPrefix(href, "/") {
		href = "https://duckduckgo.com" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return resolveRedirect(target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
