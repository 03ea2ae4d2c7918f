package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

const contactsSystem = `You extract people who work at a company from website text.
Return {"contacts":[{"name":"","title":"","email":"","phone":"","linkedin":"","confidence":0}]}.
Only include details present in the text. confidence is 0-100.`

const outreachSystem = `You write short, plain cold emails to small-business decision makers.
Return {"subject":"","body":""}. The body is under 120 words, no placeholders, no links.`

// MaxContacts caps ExtractContacts results.
const MaxContacts = 10

// Contact is a person the model found in page text.
type Contact struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	LinkedIn   string `json:"linkedin"`
	Confidence int    `json:"confidence"`
}

// Recipient is who an outreach draft is addressed to.
type Recipient struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain,omitempty"`
}

// Outreach is a drafted first-touch email.
type Outreach struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ExtractContacts pulls people out of text. The fallback is no contacts.
func (s *Service) ExtractContacts(ctx context.Context, text string) []Contact {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return WithFallback(ctx, s, "extract_contacts", func(ctx context.Context) ([]Contact, error) {
		out, err := completeJSON[struct {
			Contacts []Contact `json:"contacts"`
		}](ctx, s, contactsSystem, normalize.Truncate(text, 12000))
		if err != nil {
			return nil, err
		}
		var contacts []Contact
		for _, c := range out.Contacts {
			c.Name = strings.TrimSpace(c.Name)
			c.Title = strings.TrimSpace(c.Title)
			c.Email = strings.TrimSpace(c.Email)
			c.Phone = strings.TrimSpace(c.Phone)
			c.LinkedIn = strings.TrimSpace(c.LinkedIn)
			if c.Name == "" && c.Email == "" && c.Phone == "" {
				continue
			}
			c.Confidence = normalize.Clamp(c.Confidence)
			contacts = append(contacts, c)
			if len(contacts) == MaxContacts {
				break
			}
		}
		return contacts, nil
	}, nil)
}

// DraftOutreach writes a first-touch email to r. Missing fields in the model
// reply are filled from the generic template.
func (s *Service) DraftOutreach(ctx context.Context, r Recipient, profile model.TargetingProfile) Outreach {
	fallback := TemplateOutreach(r, profile)
	o := WithFallback(ctx, s, "draft_outreach", func(ctx context.Context) (Outreach, error) {
		user := fmt.Sprintf("Recipient:\n%s\n\nWhat we look for in customers:\n%s", mustJSON(r), mustJSON(profile))
		return completeJSON[Outreach](ctx, s, outreachSystem, user)
	}, fallback)
	if strings.TrimSpace(o.Subject) == "" {
		o.Subject = fallback.Subject
	}
	if strings.TrimSpace(o.Body) == "" {
		o.Body = fallback.Body
	}
	return o
}

// TemplateOutreach is the generic draft used without a model.
func TemplateOutreach(r Recipient, profile model.TargetingProfile) Outreach {
	company := r.CompanyName
	if company == "" {
		company = model.DomainCompanyName(r.Domain)
	}
	if company == "" {
		company = "your team"
	}
	greeting := "Hi there"
	if first, _, _ := strings.Cut(strings.TrimSpace(r.Name), " "); first != "" && first != normalize.DirectContactName {
		greeting = "Hi " + first
	}
	industry := "businesses like yours"
	if len(profile.Industries) > 0 {
		industry = strings.ToLower(profile.Industries[0]) + " businesses"
	}
	return Outreach{
		Subject: "Quick question for " + company,
		Body: fmt.Sprintf("%s,\n\nI work with %s and came across %s. "+
			"Would you be open to a short call next week to see whether we could help?\n\nThanks,", greeting, industry, company),
	}
}
