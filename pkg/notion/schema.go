package notion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// leadSchema is the property type each lead column must have. Required
// columns are written on every page.
var leadSchema = map[string]struct {
	kind     string
	required bool
}{
	PropName:      {"title", true},
	PropDomain:    {"rich_text", true},
	PropScore:     {"number", true},
	PropWebsite:   {"url", false},
	PropSummary:   {"rich_text", false},
	PropIndustry:  {"select", false},
	PropStatus:    {"select", false},
	PropTechStack: {"multi_select", false},
	PropEmail:     {"email", false},
	PropPhone:     {"phone_number", false},
	PropContacts:  {"rich_text", false},
}

// CheckLeadSchema verifies that the database can hold lead pages. Optional
// columns may be absent but must have the right type when present.
func CheckLeadSchema(ctx context.Context, c Client, dbID string) error {
	db, err := c.GetDatabase(ctx, dbID)
	if err != nil {
		return err
	}

	var problems []string
	for name, want := range leadSchema {
		cfg, ok := db.Properties[name]
		switch {
		case !ok && want.required:
			problems = append(problems, fmt.Sprintf("missing %q (%s)", name, want.kind))
		case ok && string(cfg.GetType()) != want.kind:
			problems = append(problems, fmt.Sprintf("%q is %s, want %s", name, cfg.GetType(), want.kind))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return eris.Errorf("notion: database %s: %s", dbID, strings.Join(problems, "; "))
}
