package ai

import (
	"context"
	"fmt"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

const classifySystem = `You classify a company from its domain and website description.
Return {"industry":"","company_type":"","tech_stack":[],"business_model":"","target_market":"","confidence":0}.
company_type is one of "B2B", "B2C", "B2B2C", "Nonprofit", "Government". confidence is 0-100.`

const fitSystem = `You score how well a company fits a targeting profile for outbound sales.
Return {"score":0,"reasoning":"","recommendations":[]}. score is 0-100; reasoning is one or two sentences.`

const duplicateSystem = `You decide whether two company records describe the same business.
Return {"are_same":false,"confidence":0,"reasoning":""}. confidence is 0-100.`

// FitUnavailable is the reasoning attached to the fallback fit score.
const FitUnavailable = "AI scoring unavailable"

// Company is the view of a company passed to the model.
type Company struct {
	Domain      string   `json:"domain"`
	Name        string   `json:"company_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	TechStack   []string `json:"tech_stack,omitempty"`
}

// Classification is the model's reading of a company.
type Classification struct {
	Industry      string   `json:"industry"`
	CompanyType   string   `json:"company_type"`
	TechStack     []string `json:"tech_stack"`
	BusinessModel string   `json:"business_model"`
	TargetMarket  string   `json:"target_market"`
	Confidence    int      `json:"confidence"`
}

// FitScore rates a company against a targeting profile.
type FitScore struct {
	Score           int      `json:"score"`
	Reasoning       string   `json:"reasoning"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// DuplicateResolution is the verdict on two possibly identical companies.
type DuplicateResolution struct {
	AreSame    bool   `json:"are_same"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// ClassifyCompany labels a company. The fallback is an empty classification
// with zero confidence.
func (s *Service) ClassifyCompany(ctx context.Context, domain, description string) Classification {
	return WithFallback(ctx, s, "classify_company", func(ctx context.Context) (Classification, error) {
		user := fmt.Sprintf("Domain: %s\n\nDescription:\n%s", domain, normalize.Truncate(description, 4000))
		c, err := completeJSON[Classification](ctx, s, classifySystem, user)
		if err != nil {
			return Classification{}, err
		}
		c.TechStack = model.MergeTechStack(c.TechStack)
		c.Confidence = normalize.Clamp(c.Confidence)
		return c, nil
	}, Classification{})
}

// ScoreFit rates company against profile. The fallback scores 50.
func (s *Service) ScoreFit(ctx context.Context, company Company, profile model.TargetingProfile) FitScore {
	return WithFallback(ctx, s, "score_fit", func(ctx context.Context) (FitScore, error) {
		user := fmt.Sprintf("Company:\n%s\n\nTargeting profile:\n%s", mustJSON(company), mustJSON(profile))
		f, err := completeJSON[FitScore](ctx, s, fitSystem, user)
		if err != nil {
			return FitScore{}, err
		}
		f.Score = normalize.Clamp(f.Score)
		f.Recommendations = cleanList(f.Recommendations, 0)
		return f, nil
	}, FitScore{Score: model.DefaultCandidateScore, Reasoning: FitUnavailable})
}

// ResolveDuplicate decides whether a and b are the same business. The
// fallback compares normalized domains, then normalized names.
func (s *Service) ResolveDuplicate(ctx context.Context, a, b Company) DuplicateResolution {
	return WithFallback(ctx, s, "resolve_duplicate", func(ctx context.Context) (DuplicateResolution, error) {
		user := fmt.Sprintf("Record A:\n%s\n\nRecord B:\n%s", mustJSON(a), mustJSON(b))
		d, err := completeJSON[DuplicateResolution](ctx, s, duplicateSystem, user)
		if err != nil {
			return DuplicateResolution{}, err
		}
		d.Confidence = normalize.Clamp(d.Confidence)
		return d, nil
	}, HeuristicDuplicate(a, b))
}

// HeuristicDuplicate compares a and b without a model.
func HeuristicDuplicate(a, b Company) DuplicateResolution {
	da, okA := normalize.Domain(a.Domain)
	db, okB := normalize.Domain(b.Domain)
	if okA && okB && da == db {
		return DuplicateResolution{AreSame: true, Confidence: 95, Reasoning: "same normalized domain"}
	}
	na, nb := normalize.CompanyName(a.Name), normalize.CompanyName(b.Name)
	if na != "" && na == nb {
		return DuplicateResolution{AreSame: true, Confidence: 70, Reasoning: "same normalized company name"}
	}
	return DuplicateResolution{AreSame: false, Confidence: 60, Reasoning: "domains and names differ"}
}
