// Package normalize canonicalizes contact and company identifiers and scores
// how much a record can be trusted. Every function is pure.
package normalize

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// disposableDomains are throwaway mailbox providers that never belong to a real lead.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"trashmail.com":     {},
	"getnada.com":       {},
	"sharklasers.com":   {},
	"dispostable.com":   {},
	"maildrop.cc":       {},
}

// genericLocalParts are role mailboxes that reach a team rather than a person.
var genericLocalParts = map[string]struct{}{
	"info":    {},
	"contact": {},
	"support": {},
	"admin":   {},
	"sales":   {},
	"help":    {},
}

// Email lowercases and validates an address. It returns false for malformed
// addresses and for disposable mailbox domains.
func Email(s string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(s))
	e = strings.TrimPrefix(e, "mailto:")
	if !emailPattern.MatchString(e) {
		return "", false
	}
	_, domain, _ := strings.Cut(e, "@")
	if _, bad := disposableDomains[domain]; bad {
		return "", false
	}
	return e, true
}

// IsGenericEmail reports whether the address uses a role-based local part
// such as info@ or sales@.
func IsGenericEmail(email string) bool {
	local, _, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok {
		return false
	}
	_, generic := genericLocalParts[local]
	return generic
}

// EmailDomain returns the part after the @, or "" when absent.
func EmailDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return domain
}
