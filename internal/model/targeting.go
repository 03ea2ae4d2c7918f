package model

import "slices"

// TargetingLimits bound how much a job collects.
type TargetingLimits struct {
	MaxCompanies          int `json:"max_companies" yaml:"max_companies"`
	MaxContactsPerCompany int `json:"max_contacts_per_company" yaml:"max_contacts_per_company"`
}

// TargetingProfile describes the companies a tenant wants (the ICP).
type TargetingProfile struct {
	Industries     []string        `json:"industries" yaml:"industries"`
	CompanySizes   []string        `json:"company_sizes" yaml:"company_sizes"`
	Geos           []string        `json:"geos" yaml:"geos"`
	TechStack      []string        `json:"tech_stack" yaml:"tech_stack"`
	Titles         []string        `json:"titles" yaml:"titles"`
	Languages      []string        `json:"languages" yaml:"languages"`
	ExcludeDomains []string        `json:"exclude_domains,omitempty" yaml:"exclude_domains,omitempty"`
	Notes          string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	Limits         TargetingLimits `json:"limits" yaml:"limits"`
}

const (
	defaultMaxCompanies          = 50
	defaultMaxContactsPerCompany = 3
)

// MaxCompanies returns the configured company limit or the default.
func (p TargetingProfile) MaxCompanies() int {
	if p.Limits.MaxCompanies > 0 {
		return p.Limits.MaxCompanies
	}
	return defaultMaxCompanies
}

// MaxContactsPerCompany returns the configured contact limit or the default.
func (p TargetingProfile) MaxContactsPerCompany() int {
	if p.Limits.MaxContactsPerCompany > 0 {
		return p.Limits.MaxContactsPerCompany
	}
	return defaultMaxContactsPerCompany
}

// Clone returns a deep copy so strategies can loosen criteria without
// mutating the caller's profile.
func (p TargetingProfile) Clone() TargetingProfile {
	out := p
	out.Industries = slices.Clone(p.Industries)
	out.CompanySizes = slices.Clone(p.CompanySizes)
	out.Geos = slices.Clone(p.Geos)
	out.TechStack = slices.Clone(p.TechStack)
	out.Titles = slices.Clone(p.Titles)
	out.Languages = slices.Clone(p.Languages)
	out.ExcludeDomains = slices.Clone(p.ExcludeDomains)
	return out
}

// Pool is a tenant's working set of candidates and its targeting profile.
type Pool struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Targeting TargetingProfile `json:"targeting"`
}
