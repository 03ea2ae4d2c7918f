// Package extract pulls company signals out of a rendered web page.
package extract

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

const (
	maxEmails      = 10
	maxPhones      = 5
	maxDescription = 300
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
	titleSplit   = regexp.MustCompile(`\s+[|\-–]\s+`)

	assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}
)

// Social holds the first profile link found per network.
type Social struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// Any reports whether any profile was found.
func (s Social) Any() bool {
	return s.LinkedIn != "" || s.Twitter != "" || s.Facebook != "" || s.Instagram != ""
}

// Page is what one extraction learned about a site.
type Page struct {
	URL              string   `json:"url"`
	Domain           string   `json:"domain"`
	Title            string   `json:"title,omitempty"`
	MetaDescription  string   `json:"meta_description,omitempty"`
	OGDescription    string   `json:"og_description,omitempty"`
	CompanyNameGuess string   `json:"company_name_guess,omitempty"`
	DescriptionGuess string   `json:"description_guess,omitempty"`
	Emails           []string `json:"emails,omitempty"`
	Phones           []string `json:"phones,omitempty"`
	TechStack        []string `json:"tech_stack,omitempty"`
	Social           Social   `json:"social"`
	Keywords         []string `json:"keywords,omitempty"`
	Confidence       int      `json:"confidence"`
	Err              string   `json:"error,omitempty"`
}

// Failed reports whether extraction could not load the page.
func (p *Page) Failed() bool { return p.Err != "" }

// Extractor loads a URL and returns its signals. It never returns nil;
// failures are reported through Page.Err.
type Extractor interface {
	Extract(ctx context.Context, url string) *Page
}

// Parser turns page HTML and text into a Page. It holds the configured
// fingerprint table and confidence weights.
type Parser struct {
	fingerprints []fingerprint
	scorer       *normalize.Scorer
}

type fingerprint struct {
	needle string
	tech   string
}

// NewParser builds a Parser. A nil fingerprint map uses the defaults.
func NewParser(fingerprints map[string]string, scorer *normalize.Scorer) *Parser {
	if len(fingerprints) == 0 {
		fingerprints = DefaultFingerprints()
	}
	if scorer == nil {
		scorer = normalize.NewScorer(normalize.DefaultWeights())
	}
	fps := make([]fingerprint, 0, len(fingerprints))
	for needle, tech := range fingerprints {
		fps = append(fps, fingerprint{needle: strings.ToLower(needle), tech: tech})
	}
	sort.Slice(fps, func(i, j int) bool { return fps[i].needle < fps[j].needle })
	return &Parser{fingerprints: fps, scorer: scorer}
}

// Parse extracts signals from html and its visible text. pageURL supplies
// the domain used for confidence scoring.
func (p *Parser) Parse(pageURL, html, text string) *Page {
	page := &Page{URL: pageURL}
	page.Domain, _ = normalize.Domain(pageURL)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		page.Err = "parse html: " + err.Error()
		return page
	}
	if text == "" {
		text = doc.Find("body").Text()
	}

	page.Title = clean(doc.Find("title").First().Text())
	page.MetaDescription = clean(metaContent(doc, `meta[name="description"]`))
	page.OGDescription = clean(metaContent(doc, `meta[property="og:description"]`))
	page.Keywords = splitKeywords(metaContent(doc, `meta[name="keywords"]`))

	page.CompanyNameGuess = clean(metaContent(doc, `meta[property="og:site_name"]`))
	if page.CompanyNameGuess == "" && page.Title != "" {
		page.CompanyNameGuess = strings.TrimSpace(titleSplit.Split(page.Title, 2)[0])
	}
	page.DescriptionGuess = firstNonEmpty(page.MetaDescription, page.OGDescription, firstParagraph(doc))

	page.Emails = findEmails(text, doc)
	page.Phones = findPhones(text, doc)
	page.TechStack = p.detectTech(strings.ToLower(html))
	page.Social = findSocial(doc)

	page.Confidence = p.scorer.CompanyConfidence(normalize.CompanySignals{
		Domain:      page.Domain,
		Name:        page.CompanyNameGuess,
		Description: page.DescriptionGuess,
		Emails:      page.Emails,
		Phones:      page.Phones,
		TechStack:   page.TechStack,
		HasSocial:   page.Social.Any(),
	})
	return page
}

func (p *Parser) detectTech(lowerHTML string) []string {
	var found []string
	for _, fp := range p.fingerprints {
		if strings.Contains(lowerHTML, fp.needle) && !slices.Contains(found, fp.tech) {
			found = append(found, fp.tech)
		}
	}
	sort.Strings(found)
	return found
}

// BrowserExtractor renders pages with headless Chrome before parsing.
type BrowserExtractor struct {
	fetcher browser.Fetcher
	parser  *Parser
}

// NewBrowserExtractor returns an Extractor over f.
func NewBrowserExtractor(f browser.Fetcher, p *Parser) *BrowserExtractor {
	return &BrowserExtractor{fetcher: f, parser: p}
}

func (e *BrowserExtractor) Extract(ctx context.Context, url string) *Page {
	snap, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		zap.L().Warn("extract: page load failed", zap.String("url", url), zap.Error(err))
		page := &Page{URL: url, Err: err.Error()}
		page.Domain, _ = normalize.Domain(url)
		return page
	}
	if blocked, kind := browser.DetectBlock(snap); blocked {
		zap.L().Warn("extract: page blocked", zap.String("url", url), zap.String("block", string(kind)))
		page := &Page{URL: url, Err: "blocked: " + string(kind)}
		page.Domain, _ = normalize.Domain(url)
		return page
	}
	return e.parser.Parse(url, snap.HTML, snap.Text)
}

func metaContent(doc *goquery.Document, sel string) string {
	v, _ := doc.Find(sel).First().Attr("content")
	return v
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstParagraph(doc *goquery.Document) string {
	var out string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := clean(s.Text())
		if len(t) >= 60 {
			out = normalize.Truncate(t, maxDescription)
			return false
		}
		return true
	})
	return out
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		k = strings.ToLower(clean(k))
		if k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func findEmails(text string, doc *goquery.Document) []string {
	candidates := emailPattern.FindAllString(text, -1)
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr, _, _ := strings.Cut(href, "?")
		candidates = append(candidates, addr)
	})

	var out []string
	for _, c := range candidates {
		if hasAssetSuffix(c) {
			continue
		}
		e, ok := normalize.Email(c)
		if !ok || slices.Contains(out, e) {
			continue
		}
		out = append(out, e)
		if len(out) == maxEmails {
			break
		}
	}
	return out
}

func hasAssetSuffix(s string) bool {
	ls := strings.ToLower(s)
	for _, suf := range assetSuffixes {
		if strings.HasSuffix(ls, suf) {
			return true
		}
	}
	return false
}

func findPhones(text string, doc *goquery.Document) []string {
	candidates := phonePattern.FindAllString(text, -1)
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		candidates = append(candidates, strings.TrimPrefix(href, "tel:"))
	})

	var out []string
	for _, c := range candidates {
		ph, ok := normalize.Phone(c, normalize.DefaultCountryCode)
		if !ok || slices.Contains(out, ph) {
			continue
		}
		out = append(out, ph)
		if len(out) == maxPhones {
			break
		}
	}
	return out
}

func findSocial(doc *goquery.Document) Social {
	var s Social
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		h := strings.ToLower(href)
		switch {
		case s.LinkedIn == "" && strings.Contains(h, "linkedin.com/company/"),
			s.LinkedIn == "" && strings.Contains(h, "linkedin.com/in/"):
			s.LinkedIn = href
		case s.Twitter == "" && (strings.Contains(h, "twitter.com/") || strings.Contains(h, "//x.com/")):
			s.Twitter = href
		case s.Facebook == "" && strings.Contains(h, "facebook.com/"):
			s.Facebook = href
		case s.Instagram == "" && strings.Contains(h, "instagram.com/"):
			s.Instagram = href
		}
	})
	return s
}
