package export

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	sfpkg "github.com/sells-group/leadgen-cli/pkg/salesforce"
)

// Salesforce matches companies to Accounts by website, creating missing
// Accounts, and adds Contacts that the Account does not already have.
type Salesforce struct {
	Client sfpkg.Client
}

// Name implements Exporter.
func (s Salesforce) Name() string { return "salesforce" }

// Export implements Exporter. A failed account is logged and skipped.
func (s Salesforce) Export(ctx context.Context, leads []Lead) (Result, error) {
	log := zap.L().With(zap.String("component", "export.salesforce"))
	var (
		res     Result
		pending []map[string]any
	)
	for _, l := range leads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		accountID, err := s.account(ctx, l.Candidate)
		if errors.Is(err, sfpkg.ErrDuplicate) {
			log.Info("salesforce duplicate rule blocked account", zap.String("domain", l.Candidate.Domain))
			res.Skipped++
			continue
		}
		if err != nil {
			log.Warn("salesforce account failed", zap.String("domain", l.Candidate.Domain), zap.Error(err))
			res.Skipped++
			continue
		}
		res.Companies++

		existing, err := sfpkg.FindContactsByAccountID(ctx, s.Client, accountID)
		if err != nil {
			log.Warn("salesforce contact lookup failed", zap.String("account", accountID), zap.Error(err))
			continue
		}
		for _, ct := range newContacts(l.Contacts, existing) {
			pending = append(pending, sfpkg.ContactRecord(accountID, ct.FullName, ct.Title, ct.Email, ct.Phone))
		}
	}

	if len(pending) == 0 {
		return res, nil
	}
	results, err := sfpkg.InsertContacts(ctx, s.Client, pending)
	for _, r := range results {
		switch {
		case r.Success:
			res.Contacts++
		case r.Duplicate:
			res.Skipped++
		default:
			log.Warn("salesforce contact rejected", zap.Strings("errors", r.Errors))
		}
	}
	return res, err
}

func (s Salesforce) account(ctx context.Context, c model.LeadCandidate) (string, error) {
	acct, err := sfpkg.FindAccountByWebsite(ctx, s.Client, c.Domain)
	if err != nil {
		return "", err
	}

	fields := map[string]any{}
	if c.Industry != "" {
		fields["Industry"] = c.Industry
	}
	if c.Description != "" {
		fields["Description"] = c.Description
	}

	if acct != nil {
		if len(fields) > 0 && (acct.Industry == "" || acct.Description == "") {
			if err := sfpkg.UpdateAccount(ctx, s.Client, acct.ID, fields); err != nil {
				return "", err
			}
		}
		return acct.ID, nil
	}

	fields["Name"] = c.CompanyName
	fields["Website"] = c.Domain
	return sfpkg.CreateAccount(ctx, s.Client, fields)
}

func newContacts(ours []model.ContactCandidate, theirs []sfpkg.Contact) []model.ContactCandidate {
	seen := make(map[string]bool, len(theirs)*2)
	for _, t := range theirs {
		if t.Email != "" {
			seen[t.Email] = true
		}
		if t.Phone != "" {
			seen[t.Phone] = true
		}
	}
	var out []model.ContactCandidate
	for _, c := range ours {
		if (c.Email != "" && seen[c.Email]) || (c.Email == "" && seen[c.Phone]) {
			continue
		}
		out = append(out, c)
	}
	return out
}
