package serp

import (
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Template placeholders.
const (
	PlaceholderIndustry = "{industry}"
	PlaceholderGeo      = "{geo}"
	PlaceholderTech     = "{tech}"
	PlaceholderTitle    = "{title}"
	PlaceholderLanguage = "{language}"
)

// valuesPerPlaceholder bounds the Cartesian expansion.
const valuesPerPlaceholder = 3

// DefaultTemplates are used when neither the job nor config supply any.
var DefaultTemplates = []string{
	"{industry} companies in {geo}",
	"{industry} in {geo} using {tech}",
	"{industry} {geo} {title} contact",
	"{language} speaking {industry} business {geo}",
}

// GenericTemplates back the GenericFallback strategy.
var GenericTemplates = []string{
	"{industry} {geo}",
	"{industry} companies in {geo}",
	"local {industry} near {geo}",
}

// ExpandTemplates fills each template with every combination of up to three
// values per placeholder it uses. Templates whose placeholders have no values
// are skipped. The output is deduplicated and capped at maxQueries.
func ExpandTemplates(templates []string, p model.TargetingProfile, maxQueries int) []string {
	values := map[string][]string{
		PlaceholderIndustry: head(p.Industries),
		PlaceholderGeo:      head(p.Geos),
		PlaceholderTech:     head(p.TechStack),
		PlaceholderTitle:    head(p.Titles),
		PlaceholderLanguage: head(p.Languages),
	}
	order := []string{PlaceholderIndustry, PlaceholderGeo, PlaceholderTech, PlaceholderTitle, PlaceholderLanguage}

	var out []string
	seen := make(map[string]bool)
	for _, tmpl := range templates {
		var used []string
		usable := true
		for _, ph := range order {
			if strings.Contains(tmpl, ph) {
				if len(values[ph]) == 0 {
					usable = false
					break
				}
				used = append(used, ph)
			}
		}
		if !usable {
			continue
		}
		for _, q := range fill(tmpl, used, values) {
			k := strings.ToLower(q)
			if q == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, q)
			if maxQueries > 0 && len(out) == maxQueries {
				return out
			}
		}
	}
	return out
}

func fill(tmpl string, placeholders []string, values map[string][]string) []string {
	if len(placeholders) == 0 {
		return []string{strings.Join(strings.Fields(tmpl), " ")}
	}
	ph, rest := placeholders[0], placeholders[1:]
	var out []string
	for _, v := range values[ph] {
		out = append(out, fill(strings.ReplaceAll(tmpl, ph, v), rest, values)...)
	}
	return out
}

func head(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
		if len(out) == valuesPerPlaceholder {
			break
		}
	}
	return out
}

// aiQueryCount is min(15, ceil(maxCompanies/5)), at least 1.
func aiQueryCount(maxCompanies int) int {
	n := (maxCompanies + 4) / 5
	return max(1, min(15, n))
}
