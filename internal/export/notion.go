package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/notion"
)

// Notion upserts one page per company into a Notion database.
type Notion struct {
	Client     notion.Client
	DatabaseID string
}

// Name implements Exporter.
func (n Notion) Name() string { return "notion" }

// Export implements Exporter. The database schema is checked first; after
// that a failed page is logged and skipped.
func (n Notion) Export(ctx context.Context, leads []Lead) (Result, error) {
	log := zap.L().With(zap.String("component", "export.notion"))
	var res Result
	if err := notion.CheckLeadSchema(ctx, n.Client, n.DatabaseID); err != nil {
		return res, err
	}
	for _, l := range leads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, _, err := notion.UpsertLead(ctx, n.Client, n.DatabaseID, leadPage(l))
		if err != nil {
			log.Warn("notion upsert failed", zap.String("domain", l.Candidate.Domain), zap.Error(err))
			res.Skipped++
			continue
		}
		res.Companies++
		res.Contacts += len(l.Contacts)
	}
	return res, nil
}

func leadPage(l Lead) notion.LeadPage {
	c := l.Candidate
	page := notion.LeadPage{
		Name:        c.CompanyName,
		Domain:      c.Domain,
		Website:     c.HomepageURL,
		Description: c.Description,
		Industry:    c.Industry,
		Score:       c.Score,
		Status:      string(c.Status),
		TechStack:   c.TechStack,
	}
	if p := l.PrimaryContact(); p != nil {
		page.Email, page.Phone = p.Email, p.Phone
	}
	for _, ct := range l.Contacts {
		page.Contacts = append(page.Contacts, contactLine(ct))
	}
	return page
}

func contactLine(c model.ContactCandidate) string {
	line := c.FullName
	if c.Title != "" {
		line += ", " + c.Title
	}
	if c.Email != "" {
		line += fmt.Sprintf(" <%s>", c.Email)
	}
	if c.Phone != "" {
		line += " " + c.Phone
	}
	return line
}
