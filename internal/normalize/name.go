package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	titleCaser   = cases.Title(language.Und)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	legalSuffix  = regexp.MustCompile(`(?i)[,\s]+(inc|llc|l\.l\.c|ltd|limited|corp|corporation|co|company|gmbh|plc)\.?$`)
)

// Name applies NFC normalization, collapses whitespace, and title-cases each word.
func Name(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

// CompanyName normalizes a company name and drops a trailing legal suffix.
func CompanyName(s string) string {
	n := Name(s)
	for {
		stripped := legalSuffix.ReplaceAllString(n, "")
		if stripped == n || stripped == "" {
			return n
		}
		n = strings.TrimSpace(stripped)
	}
}

// Slug lowercases s and joins its alphanumeric runs with hyphens.
func Slug(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
