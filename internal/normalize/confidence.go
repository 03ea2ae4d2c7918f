package normalize

// Weights are the additive points each present signal contributes to a
// confidence score. Scores are clamped to [0,100].
type Weights struct {
	EmailValid          int
	EmailPersonal       int
	EmailDomainMatch    int
	GenericEmailPenalty int

	PersonEmail    int
	PersonPhone    int
	PersonName     int
	PersonTitle    int
	PersonLinkedIn int

	CompanyDomain      int
	CompanyName        int
	CompanyDescription int
	CompanyIndustry    int
	CompanyEmail       int
	CompanyPhone       int
	CompanyTechStack   int
	CompanySocial      int
}

// DefaultWeights returns the built-in scoring weights.
func DefaultWeights() Weights {
	return Weights{
		EmailValid:          50,
		EmailPersonal:       30,
		EmailDomainMatch:    20,
		GenericEmailPenalty: 20,

		PersonEmail:    30,
		PersonPhone:    20,
		PersonName:     20,
		PersonTitle:    15,
		PersonLinkedIn: 15,

		CompanyDomain:      20,
		CompanyName:        15,
		CompanyDescription: 15,
		CompanyIndustry:    10,
		CompanyEmail:       15,
		CompanyPhone:       10,
		CompanyTechStack:   5,
		CompanySocial:      10,
	}
}

// PersonSignals are the fields considered by PersonConfidence.
type PersonSignals struct {
	Name     string
	Title    string
	Email    string
	Phone    string
	LinkedIn string
}

// CompanySignals are the fields considered by CompanyConfidence.
type CompanySignals struct {
	Domain      string
	Name        string
	Description string
	Industry    string
	Emails      []string
	Phones      []string
	TechStack   []string
	HasSocial   bool
}

// Scorer computes heuristic confidence scores from configured weights.
type Scorer struct {
	w Weights
}

// NewScorer returns a Scorer using w.
func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

// EmailConfidence scores a single address, rewarding personal mailboxes on
// the company's own domain and penalizing role accounts.
func (s *Scorer) EmailConfidence(email, companyDomain string) int {
	e, ok := Email(email)
	if !ok {
		return 0
	}
	score := s.w.EmailValid
	if IsGenericEmail(e) {
		score -= s.w.GenericEmailPenalty
	} else {
		score += s.w.EmailPersonal
	}
	if d, ok := Domain(companyDomain); ok && EmailDomain(e) == d {
		score += s.w.EmailDomainMatch
	}
	return Clamp(score)
}

// PersonConfidence scores a contact by the channels and identity fields present.
func (s *Scorer) PersonConfidence(p PersonSignals) int {
	score := 0
	if e, ok := Email(p.Email); ok {
		score += s.w.PersonEmail
		if IsGenericEmail(e) {
			score -= s.w.GenericEmailPenalty
		}
	}
	if _, ok := Phone(p.Phone, DefaultCountryCode); ok {
		score += s.w.PersonPhone
	}
	if Name(p.Name) != "" && p.Name != DirectContactName {
		score += s.w.PersonName
	}
	if p.Title != "" {
		score += s.w.PersonTitle
	}
	if p.LinkedIn != "" {
		score += s.w.PersonLinkedIn
	}
	return Clamp(score)
}

// CompanyConfidence scores a company by how completely it has been resolved.
func (s *Scorer) CompanyConfidence(c CompanySignals) int {
	score := 0
	if _, ok := Domain(c.Domain); ok {
		score += s.w.CompanyDomain
	}
	if c.Name != "" {
		score += s.w.CompanyName
	}
	if c.Description != "" {
		score += s.w.CompanyDescription
	}
	if c.Industry != "" {
		score += s.w.CompanyIndustry
	}
	if len(c.Emails) > 0 {
		score += s.w.CompanyEmail
		allGeneric := true
		for _, e := range c.Emails {
			if !IsGenericEmail(e) {
				allGeneric = false
				break
			}
		}
		if allGeneric {
			score -= s.w.GenericEmailPenalty / 2
		}
	}
	if len(c.Phones) > 0 {
		score += s.w.CompanyPhone
	}
	if len(c.TechStack) > 0 {
		score += s.w.CompanyTechStack
	}
	if c.HasSocial {
		score += s.w.CompanySocial
	}
	return Clamp(score)
}

// DirectContactName stands in for a contact whose name could not be resolved.
const DirectContactName = "Direct"

// Clamp bounds a score to [0,100].
func Clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
