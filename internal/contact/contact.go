// Package contact turns raw contact details into normalized, scored
// ContactCandidate rows.
package contact

import (
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// Fields are the raw details as found on a page or returned by a model.
type Fields struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// Owner identifies the candidate a contact belongs to.
type Owner struct {
	PoolID      string
	CandidateID string
	Domain      string
}

// Build normalizes f into a contact for owner. It returns false when neither
// the email nor the phone survives normalization. A missing name becomes
// normalize.DirectContactName.
func Build(scorer *normalize.Scorer, owner Owner, f Fields) (*model.ContactCandidate, bool) {
	email, _ := normalize.Email(f.Email)
	phone, _ := normalize.Phone(f.Phone, normalize.DefaultCountryCode)
	if email == "" && phone == "" {
		return nil, false
	}

	name := normalize.Name(f.Name)
	if name == "" {
		name = normalize.DirectContactName
	}
	title := strings.Join(strings.Fields(f.Title), " ")
	linkedIn := ""
	if u, ok := normalize.URL(f.LinkedIn); ok {
		linkedIn = u
	}

	c := &model.ContactCandidate{
		CandidateID: owner.CandidateID,
		PoolID:      owner.PoolID,
		FullName:    name,
		Title:       title,
		Email:       email,
		Phone:       phone,
		LinkedInURL: linkedIn,
		Status:      model.ContactStatusNew,
	}
	keyName := name
	if name == normalize.DirectContactName {
		keyName = ""
	}
	if key, ok := normalize.PersonDedupeKey(email, keyName, owner.Domain, title); ok {
		c.DedupeKey = &key
	}
	c.Confidence = scorer.PersonConfidence(normalize.PersonSignals{
		Email:    email,
		Phone:    phone,
		Name:     name,
		Title:    title,
		LinkedIn: linkedIn,
	})
	if email != "" {
		c.Confidence = max(c.Confidence, scorer.EmailConfidence(email, owner.Domain))
	}
	return c, true
}

// FromPage builds "Direct" contacts from the emails and phones a page
// exposes: one per email, personal mailboxes first, with the first phone on
// the first contact. A page with phones but no emails yields one phone-only
// contact. At most limit contacts are returned.
func FromPage(scorer *normalize.Scorer, owner Owner, emails, phones []string, limit int) []*model.ContactCandidate {
	if limit <= 0 {
		return nil
	}
	ordered := make([]string, 0, len(emails))
	for _, e := range emails {
		if !normalize.IsGenericEmail(e) {
			ordered = append(ordered, e)
		}
	}
	for _, e := range emails {
		if normalize.IsGenericEmail(e) {
			ordered = append(ordered, e)
		}
	}

	var out []*model.ContactCandidate
	for i, e := range ordered {
		f := Fields{Email: e}
		if i == 0 && len(phones) > 0 {
			f.Phone = phones[0]
		}
		if c, ok := Build(scorer, owner, f); ok {
			out = append(out, c)
		}
		if len(out) == limit {
			return out
		}
	}
	if len(out) == 0 && len(phones) > 0 {
		if c, ok := Build(scorer, owner, Fields{Phone: phones[0]}); ok {
			out = append(out, c)
		}
	}
	return out
}
