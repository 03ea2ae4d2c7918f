package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// CreateAccount creates a new Account record and returns the new Salesforce ID.
func CreateAccount(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if fields["Name"] == nil || fields["Name"] == "" {
		return "", eris.New("sf: account Name is required")
	}
	id, err := c.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// UpdateAccount updates an Account record with the given fields.
func UpdateAccount(ctx context.Context, c Client, accountID string, fields map[string]any) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update account %s", accountID))
	}
	return nil
}

// ContactRecord builds Contact fields linked to an account. Salesforce
// requires LastName, so a single-word name lands there.
func ContactRecord(accountID, fullName, title, email, phone string) map[string]any {
	first, last := splitName(fullName)
	rec := map[string]any{
		"AccountId": accountID,
		"LastName":  last,
	}
	if first != "" {
		rec["FirstName"] = first
	}
	if title != "" {
		rec["Title"] = title
	}
	if email != "" {
		rec["Email"] = email
	}
	if phone != "" {
		rec["Phone"] = phone
	}
	return rec
}

func splitName(full string) (string, string) {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return "", full
}
