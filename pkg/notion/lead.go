package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Property names of the lead database.
const (
	PropName      = "Name"
	PropDomain    = "Domain"
	PropWebsite   = "Website"
	PropIndustry  = "Industry"
	PropScore     = "Score"
	PropStatus    = "Status"
	PropTechStack = "Tech Stack"
	PropEmail     = "Email"
	PropPhone     = "Phone"
	PropContacts  = "Contacts"
	PropSummary   = "Description"
)

// maxRichText is Notion's per-block text limit.
const maxRichText = 2000

// LeadPage is one company row in the lead database.
type LeadPage struct {
	Name        string
	Domain      string
	Website     string
	Description string
	Industry    string
	Score       int
	Status      string
	TechStack   []string
	Email       string
	Phone       string
	Contacts    []string
}

// Properties renders the page as Notion properties. Empty values are omitted
// so updates never clear a field someone filled in by hand.
func (l LeadPage) Properties() notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(l.Name),
		},
		PropDomain: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(l.Domain),
		},
		PropScore: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(l.Score),
		},
	}
	if l.Website != "" {
		props[PropWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: l.Website}
	}
	if l.Description != "" {
		props[PropSummary] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(l.Description)}
	}
	if l.Industry != "" {
		props[PropIndustry] = notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: l.Industry}}
	}
	if l.Status != "" {
		props[PropStatus] = notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: l.Status}}
	}
	if len(l.TechStack) > 0 {
		opts := make([]notionapi.Option, len(l.TechStack))
		for i, t := range l.TechStack {
			opts[i] = notionapi.Option{Name: strings.ReplaceAll(t, ",", " ")}
		}
		props[PropTechStack] = notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: opts}
	}
	if l.Email != "" {
		props[PropEmail] = notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: l.Email}
	}
	if l.Phone != "" {
		props[PropPhone] = notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: l.Phone}
	}
	if len(l.Contacts) > 0 {
		props[PropContacts] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(strings.Join(l.Contacts, "\n")),
		}
	}
	return props
}

// UpsertLead updates the page matching the lead's domain or creates one.
// It reports whether a page was created.
func UpsertLead(ctx context.Context, c Client, dbID string, l LeadPage) (string, bool, error) {
	existing, err := FindByDomain(ctx, c, dbID, l.Domain)
	if err != nil {
		return "", false, err
	}

	if existing != nil {
		page, err := c.UpdatePage(ctx, string(existing.ID), &notionapi.PageUpdateRequest{Properties: l.Properties()})
		if err != nil {
			return "", false, eris.Wrap(err, "notion: upsert lead")
		}
		return string(page.ID), false, nil
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: l.Properties(),
	})
	if err != nil {
		return "", false, eris.Wrap(err, "notion: upsert lead")
	}
	return string(page.ID), true, nil
}

func richText(s string) []notionapi.RichText {
	if r := []rune(s); len(r) > maxRichText {
		s = string(r[:maxRichText])
	}
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}
