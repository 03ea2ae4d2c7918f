package model

import "time"

// ContactStatus is the verification state of a contact.
type ContactStatus string

const (
	ContactStatusNew      ContactStatus = "NEW"
	ContactStatusVerified ContactStatus = "VERIFIED"
	ContactStatusBounced  ContactStatus = "BOUNCED"
)

// ContactCandidate is a person attached to a lead candidate.
type ContactCandidate struct {
	ID          string        `json:"id"`
	CandidateID string        `json:"candidate_id"`
	PoolID      string        `json:"pool_id"`
	FullName    string        `json:"full_name"`
	Title       string        `json:"title,omitempty"`
	Email       string        `json:"email,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	LinkedInURL string        `json:"linkedin_url,omitempty"`
	DedupeKey   *string       `json:"dedupe_key,omitempty"`
	Confidence  int           `json:"confidence"`
	Status      ContactStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Reachable reports whether the contact carries an email or a phone.
func (c *ContactCandidate) Reachable() bool {
	return c.Email != "" || c.Phone != ""
}
