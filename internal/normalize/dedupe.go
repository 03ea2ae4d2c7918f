package normalize

import "strings"

const (
	companyKeyPrefix = "company:"
	personKeyPrefix  = "person:"
)

// CompanyDedupeKey returns "company:<domain>" for any form of the domain.
func CompanyDedupeKey(domain string) (string, bool) {
	d, ok := Domain(domain)
	if !ok {
		return "", false
	}
	return companyKeyPrefix + d, true
}

// PersonDedupeKey picks the strongest available identity for a person:
// email first, then full name at the company domain, then a single-token name
// qualified by title at the company domain. It returns false when nothing can
// link the person.
func PersonDedupeKey(email, name, domain, title string) (string, bool) {
	if e, ok := Email(email); ok {
		return personKeyPrefix + "email:" + e, true
	}

	nameSlug := Slug(name)
	d, hasDomain := Domain(domain)
	if nameSlug == "" || !hasDomain {
		return "", false
	}
	if len(strings.Fields(name)) >= 2 {
		return personKeyPrefix + "name-company:" + nameSlug + "@" + d, true
	}
	if titleSlug := Slug(title); titleSlug != "" {
		return personKeyPrefix + "name-title-company:" + nameSlug + ":" + titleSlug + "@" + d, true
	}
	return "", false
}
