package normalize

import (
	"sort"
	"strings"
)

// DefaultIndustryKeywords maps an industry label to the keywords that suggest it.
func DefaultIndustryKeywords() map[string][]string {
	return map[string][]string{
		"Restaurant":            {"restaurant", "menu", "dine", "dining", "cafe", "bistro", "catering", "taco", "pizza", "grill", "kitchen"},
		"Retail":                {"shop", "store", "retail", "boutique", "shopify", "woocommerce", "cart", "products"},
		"Healthcare":            {"clinic", "medical", "health", "dental", "dentist", "patient", "physician", "therapy", "pharmacy"},
		"Legal":                 {"law firm", "attorney", "lawyer", "legal", "litigation", "counsel"},
		"Real Estate":           {"real estate", "realtor", "property", "properties", "homes for sale", "leasing", "mortgage"},
		"Construction":          {"construction", "contractor", "roofing", "plumbing", "hvac", "remodel", "builder", "electrician"},
		"Software":              {"software", "saas", "platform", "developer", "cloud", "react", "kubernetes"},
		"Marketing":             {"marketing", "agency", "seo", "advertising", "branding", "social media", "ppc"},
		"Finance":               {"accounting", "bookkeeping", "cpa", "tax", "financial", "wealth", "insurance", "bank"},
		"Manufacturing":         {"manufacturing", "fabrication", "machining", "industrial", "factory", "oem"},
		"Education":             {"school", "academy", "tutoring", "education", "course", "university", "training"},
		"Hospitality":           {"hotel", "resort", "lodging", "bed and breakfast", "booking"},
		"Automotive":            {"auto repair", "dealership", "automotive", "tire", "collision"},
		"Fitness":               {"gym", "fitness", "yoga", "pilates", "crossfit", "personal trainer"},
		"Professional Services": {"consulting", "consultant", "staffing", "recruiting", "services firm"},
	}
}

// IndustryClassifier infers an industry by counting keyword hits.
type IndustryClassifier struct {
	keywords   map[string][]string
	industries []string
}

// NewIndustryClassifier builds a classifier over a keyword dictionary.
func NewIndustryClassifier(keywords map[string][]string) *IndustryClassifier {
	if len(keywords) == 0 {
		keywords = DefaultIndustryKeywords()
	}
	// Config loaders lowercase map keys; restore display casing only for
	// those. "SaaS" and "HVAC" stay as written.
	dict := make(map[string][]string, len(keywords))
	for name, kws := range keywords {
		if name == strings.ToLower(name) {
			name = Name(name)
		}
		dict[name] = append(dict[name], kws...)
	}
	names := make([]string, 0, len(dict))
	for name := range dict {
		names = append(names, name)
	}
	sort.Strings(names)
	return &IndustryClassifier{keywords: dict, industries: names}
}

// Infer joins parts into one lowercased string and returns the industry with
// the most keyword hits. Ties resolve alphabetically. It returns false when no
// keyword matches.
func (c *IndustryClassifier) Infer(parts ...string) (string, bool) {
	text := strings.ToLower(strings.Join(parts, " "))
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	best, bestHits := "", 0
	for _, industry := range c.industries {
		hits := 0
		for _, kw := range c.keywords[industry] {
			if strings.Contains(text, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = industry, hits
		}
	}
	return best, bestHits > 0
}
