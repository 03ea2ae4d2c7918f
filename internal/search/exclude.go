package search

import (
	"strings"

	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// excludedDomains never represent a prospect company.
var excludedDomains = []string{
	// search engines
	"duckduckgo.com", "google.com", "bing.com", "yahoo.com",
	// social
	"facebook.com", "instagram.com", "linkedin.com", "twitter.com", "x.com",
	"tiktok.com", "pinterest.com", "reddit.com", "youtube.com",
	// reference and code hosting
	"wikipedia.org", "wikimedia.org", "github.com", "gitlab.com", "bitbucket.org",
	// aggregators and directories
	"medium.com", "quora.com", "yelp.com", "tripadvisor.com", "yellowpages.com",
	"bbb.org", "crunchbase.com", "glassdoor.com", "indeed.com", "angi.com",
	"mapquest.com", "foursquare.com", "doordash.com", "ubereats.com", "grubhub.com",
}

// Filter reports whether a domain should be dropped from results.
type Filter struct {
	domains map[string]struct{}
}

// NewFilter returns the built-in exclusions plus extra.
func NewFilter(extra ...string) *Filter {
	f := &Filter{domains: make(map[string]struct{}, len(excludedDomains)+len(extra))}
	for _, d := range excludedDomains {
		f.domains[d] = struct{}{}
	}
	for _, d := range extra {
		if nd, ok := normalize.Domain(d); ok {
			f.domains[nd] = struct{}{}
		}
	}
	return f
}

var defaultFilter = NewFilter()

// Excluded applies the built-in exclusions only.
func Excluded(domain string) bool {
	return defaultFilter.Excluded(domain)
}

// Excluded matches the domain itself or any parent domain.
func (f *Filter) Excluded(domain string) bool {
	d := strings.ToLower(strings.TrimSpace(domain))
	for d != "" {
		if _, ok := f.domains[d]; ok {
			return true
		}
		_, rest, found := strings.Cut(d, ".")
		if !found {
			break
		}
		d = rest
	}
	return false
}
