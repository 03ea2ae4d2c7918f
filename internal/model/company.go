// Package model defines the lead-generation entities shared across the pipeline.
package model

import (
	"sort"
	"strings"
	"time"
)

// CompanyStatus is the lifecycle state of a global company row.
type CompanyStatus string

const (
	CompanyStatusActive   CompanyStatus = "ACTIVE"
	CompanyStatusInactive CompanyStatus = "INACTIVE"
)

// CandidateStatus is the review state of a company inside a pool.
type CandidateStatus string

const (
	CandidateStatusNew       CandidateStatus = "NEW"
	CandidateStatusViewed    CandidateStatus = "VIEWED"
	CandidateStatusQualified CandidateStatus = "QUALIFIED"
	CandidateStatusRejected  CandidateStatus = "REJECTED"
)

// DefaultCandidateScore is assigned to a candidate before enrichment.
const DefaultCandidateScore = 50

// Provenance sources.
const (
	SourceSERP       = "serp"
	SourceAgent      = "agent"
	SourceEnrichment = "enrichment"
)

// ProvenanceEntry records one job's contribution to a company row.
type ProvenanceEntry struct {
	Source    string    `json:"source"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}

// GlobalCompany is the cross-tenant deduplicated index entry for a domain.
type GlobalCompany struct {
	ID          string            `json:"id"`
	Domain      string            `json:"domain"`
	DedupeKey   string            `json:"dedupe_key"`
	CompanyName string            `json:"company_name"`
	Description string            `json:"description,omitempty"`
	Industry    string            `json:"industry,omitempty"`
	TechStack   []string          `json:"tech_stack,omitempty"`
	Status      CompanyStatus     `json:"status"`
	Provenance  []ProvenanceEntry `json:"provenance"`
	FirstSeen   time.Time         `json:"first_seen"`
	LastSeen    time.Time         `json:"last_seen"`
}

// LeadCandidate is a company as it appears in one tenant's working pool.
type LeadCandidate struct {
	ID          string          `json:"id"`
	PoolID      string          `json:"pool_id"`
	CompanyID   string          `json:"company_id,omitempty"`
	Domain      string          `json:"domain"`
	CompanyName string          `json:"company_name"`
	Description string          `json:"description,omitempty"`
	Industry    string          `json:"industry,omitempty"`
	TechStack   []string        `json:"tech_stack,omitempty"`
	HomepageURL string          `json:"homepage_url,omitempty"`
	Score       int             `json:"score"`
	Status      CandidateStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NeedsEnrichment reports whether descriptive fields are still missing.
func (c *LeadCandidate) NeedsEnrichment() bool {
	return c.Description == "" || c.Industry == ""
}

// MergeTechStack returns the case-insensitive union of the given sets,
// keeping the first spelling seen, sorted for stable storage.
func MergeTechStack(sets ...[]string) []string {
	seen := make(map[string]string)
	for _, set := range sets {
		for _, t := range set {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			k := strings.ToLower(t)
			if _, ok := seen[k]; !ok {
				seen[k] = t
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DomainCompanyName derives a display name from a domain, e.g.
// "taco-place.com" becomes "Taco Place".
func DomainCompanyName(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	words := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
