package ai

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const expandSystem = `You turn a plain-language description of ideal customers into a targeting profile for B2B lead generation.
Return {"industries":[],"company_sizes":[],"geos":[],"tech_stack":[],"titles":[],"languages":[],"notes":""}.
Company sizes use ranges such as "1-10", "11-50", "51-200". Titles are decision-maker job titles.`

const queriesSystem = `You write web search queries that surface the homepages of small and mid-sized companies matching a targeting profile.
Return {"queries":[]}. Each query is short, specific, and likely to return company websites rather than directories.`

// Profile defaults applied to any list left empty.
var (
	DefaultIndustry     = "General Business"
	DefaultCompanySizes = []string{"1-10", "11-50", "51-200"}
	DefaultGeos         = []string{"United States"}
	DefaultTechStack    = []string{"Website"}
	DefaultTitles       = []string{"Owner", "CEO", "General Manager"}
	DefaultLanguages    = []string{"English"}
)

// ExpandTargeting derives a targeting profile from a free-text prompt. Every
// list in the result is non-empty.
func (s *Service) ExpandTargeting(ctx context.Context, prompt string) model.TargetingProfile {
	p := WithFallback(ctx, s, "expand_targeting", func(ctx context.Context) (model.TargetingProfile, error) {
		return completeJSON[model.TargetingProfile](ctx, s, expandSystem, prompt)
	}, model.TargetingProfile{})
	return s.defaultProfile(p, prompt)
}

func (s *Service) defaultProfile(p model.TargetingProfile, prompt string) model.TargetingProfile {
	p.Industries = cleanList(p.Industries, 0)
	if len(p.Industries) == 0 {
		if ind, ok := s.industries.Infer(prompt); ok {
			p.Industries = []string{ind}
		} else {
			p.Industries = []string{DefaultIndustry}
		}
	}
	p.CompanySizes = orDefault(p.CompanySizes, DefaultCompanySizes)
	p.Geos = orDefault(p.Geos, DefaultGeos)
	p.TechStack = orDefault(p.TechStack, DefaultTechStack)
	p.Titles = orDefault(p.Titles, DefaultTitles)
	p.Languages = orDefault(p.Languages, DefaultLanguages)
	return p
}

func orDefault(v, def []string) []string {
	if v = cleanList(v, 0); len(v) > 0 {
		return v
	}
	return append([]string(nil), def...)
}

// GenerateQueries asks for up to n search queries for profile. The result is
// trimmed, deduplicated, and never longer than n.
func (s *Service) GenerateQueries(ctx context.Context, profile model.TargetingProfile, n int) []string {
	if n < 1 {
		n = 1
	}
	fallback := cleanList(FallbackQueries(profile), n)
	return WithFallback(ctx, s, "generate_queries", func(ctx context.Context) ([]string, error) {
		user := fmt.Sprintf("Targeting profile:\n%s\n\nWrite %d queries.", mustJSON(profile), n)
		out, err := completeJSON[struct {
			Queries []string `json:"queries"`
		}](ctx, s, queriesSystem, user)
		if err != nil {
			return nil, err
		}
		q := cleanList(out.Queries, n)
		if len(q) == 0 {
			return nil, eris.New("ai: model returned no queries")
		}
		return q, nil
	}, fallback)
}

// FallbackQueries is the fixed query set built from the profile's first
// industry and geo.
func FallbackQueries(p model.TargetingProfile) []string {
	industry, geo := "local business", DefaultGeos[0]
	if v := cleanList(p.Industries, 1); len(v) > 0 {
		industry = v[0]
	}
	if v := cleanList(p.Geos, 1); len(v) > 0 {
		geo = v[0]
	}
	return []string{
		fmt.Sprintf("%s companies in %s", industry, geo),
		fmt.Sprintf("%s %s contact", industry, geo),
		fmt.Sprintf("best %s %s", industry, geo),
		fmt.Sprintf("site:linkedin.com/company %s %s", industry, geo),
	}
}
