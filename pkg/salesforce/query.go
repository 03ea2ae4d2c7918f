package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents a Salesforce Account record.
type Account struct {
	ID          string `json:"Id" salesforce:"Id"`
	Name        string `json:"Name" salesforce:"Name"`
	Website     string `json:"Website" salesforce:"Website"`
	Industry    string `json:"Industry" salesforce:"Industry"`
	Description string `json:"Description" salesforce:"Description"`
	Phone       string `json:"Phone" salesforce:"Phone"`
}

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
	Phone     string `json:"Phone" salesforce:"Phone"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
}

var accountFields = []string{"Id", "Name", "Website", "Industry", "Description", "Phone"}

var contactFields = []string{"Id", "FirstName", "LastName", "Email", "Phone", "AccountId"}

// FindAccountByWebsite returns the Account whose Website contains domain, or nil.
func FindAccountByWebsite(ctx context.Context, c Client, domain string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Website LIKE '%%%s%%' LIMIT 1",
		strings.Join(accountFields, ", "),
		escapeSoql(domain),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by website %s", domain))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// FindContactsByAccountID lists the Contacts attached to an Account.
func FindContactsByAccountID(ctx context.Context, c Client, accountID string) ([]Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE AccountId = '%s'",
		strings.Join(contactFields, ", "),
		escapeSoql(accountID),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contacts for account %s", accountID))
	}
	return contacts, nil
}

// escapeSoql escapes SOQL string literal metacharacters.
func escapeSoql(s string) string {
	return strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(s)
}
