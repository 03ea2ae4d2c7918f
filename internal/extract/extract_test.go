package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/browser"
)

const tacoPage = `<!doctype html>
<html><head>
<title>Taco Place | Best Tacos in Albuquerque</title>
<meta name="description" content="Family-owned taqueria serving Albuquerque since 1998.">
<meta property="og:site_name" content="Taco Place">
<meta name="keywords" content="Tacos, Burritos, tacos , Catering">
<link rel="stylesheet" href="/wp-content/themes/taco/style.css">
<script src="https://js.squareup.com/v2/paymentform"></script>
</head><body>
<p>Call us at (505) 555-1234 or email maria@tacoplace.com today.</p>
<a href="mailto:info@tacoplace.com?subject=hi">Email</a>
<a href="tel:+1-505-555-9876">Order</a>
<img src="logo@2x.png">
<a href="https://www.facebook.com/tacoplace">Facebook</a>
<a href="https://instagram.com/tacoplace">Instagram</a>
<a href="https://www.linkedin.com/company/taco-place">LinkedIn</a>
</body></html>`

func TestParse_Signals(t *testing.T) {
	p := NewParser(nil, nil)
	page := p.Parse("https://www.tacoplace.com/", tacoPage, "")

	assert.False(t, page.Failed())
	assert.Equal(t, "tacoplace.com", page.Domain)
	assert.Equal(t, "Taco Place", page.CompanyNameGuess)
	assert.Equal(t, "Family-owned taqueria serving Albuquerque since 1998.", page.DescriptionGuess)
	assert.Equal(t, []string{"maria@tacoplace.com", "info@tacoplace.com"}, page.Emails)
	assert.Equal(t, []string{"+15055551234", "+15055559876"}, page.Phones)
	assert.Equal(t, []string{"Square", "WordPress"}, page.TechStack)
	assert.Equal(t, []string{"tacos", "burritos", "catering"}, page.Keywords)
	assert.Equal(t, "https://www.facebook.com/tacoplace", page.Social.Facebook)
	assert.Equal(t, "https://instagram.com/tacoplace", page.Social.Instagram)
	assert.Equal(t, "https://www.linkedin.com/company/taco-place", page.Social.LinkedIn)
	assert.Empty(t, page.Social.Twitter)
	assert.Greater(t, page.Confidence, 50)
}

func TestParse_TitleFallbackForName(t *testing.T) {
	p := NewParser(nil, nil)
	page := p.Parse("https://burritobarn.com", `<html><head><title>Burrito Barn - Home</title></head><body></body></html>`, "")
	assert.Equal(t, "Burrito Barn", page.CompanyNameGuess)
	assert.Empty(t, page.Emails)
	assert.Empty(t, page.TechStack)
}

func TestParse_ParagraphDescription(t *testing.T) {
	html := `<html><body><p>Short.</p><p>We cater weddings, quinceañeras, and corporate lunches across the metro area.</p></body></html>`
	page := NewParser(nil, nil).Parse("https://x.com", html, "")
	assert.Contains(t, page.DescriptionGuess, "We cater weddings")
}

func TestParse_LongParagraphKeepsValidUTF8(t *testing.T) {
	html := `<html><body><p>a` + strings.Repeat("é", 200) + `</p></body></html>`
	page := NewParser(nil, nil).Parse("https://x.com", html, "")
	assert.True(t, utf8.ValidString(page.DescriptionGuess))
	assert.LessOrEqual(t, len(page.DescriptionGuess), maxDescription)
	assert.True(t, strings.HasSuffix(page.DescriptionGuess, "é"))
}

func TestParse_CustomFingerprints(t *testing.T) {
	p := NewParser(map[string]string{"X-Powered-By-Foo": "Foo"}, nil)
	page := p.Parse("https://a.com", `<html><body><!-- x-powered-by-foo --></body></html>`, "")
	assert.Equal(t, []string{"Foo"}, page.TechStack)
}

func TestParse_Caps(t *testing.T) {
	text := ""
	for i := 0; i < 15; i++ {
		text += " person" + string(rune('a'+i)) + "@corp.com"
	}
	page := NewParser(nil, nil).Parse("https://corp.com", "<html></html>", text)
	assert.Len(t, page.Emails, maxEmails)
}

type fakeFetcher struct {
	snap *browser.Snapshot
	err  error
}

func (f fakeFetcher) Fetch(_ context.Context, url string) (*browser.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.snap
	s.URL = url
	return &s, nil
}

func TestBrowserExtractor(t *testing.T) {
	ex := NewBrowserExtractor(fakeFetcher{snap: &browser.Snapshot{HTML: tacoPage}}, NewParser(nil, nil))
	page := ex.Extract(context.Background(), "https://tacoplace.com")
	require.NotNil(t, page)
	assert.Equal(t, "Taco Place", page.CompanyNameGuess)
}

func TestBrowserExtractor_FailureNeverErrors(t *testing.T) {
	ex := NewBrowserExtractor(fakeFetcher{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}, NewParser(nil, nil))
	page := ex.Extract(context.Background(), "https://gone.example.com/about")
	require.NotNil(t, page)
	assert.True(t, page.Failed())
	assert.Equal(t, "gone.example.com", page.Domain)
	assert.Contains(t, page.Err, "ERR_NAME_NOT_RESOLVED")
}

func TestBrowserExtractor_BlockedPage(t *testing.T) {
	snap := &browser.Snapshot{
		HTML: `<html><body><div class="g-recaptcha"></div></body></html>`,
		Text: "Please complete the captcha to continue",
	}
	ex := NewBrowserExtractor(fakeFetcher{snap: snap}, NewParser(nil, nil))
	page := ex.Extract(context.Background(), "https://tacoplace.com")
	require.NotNil(t, page)
	assert.True(t, page.Failed())
	assert.Equal(t, "blocked: captcha", page.Err)
	assert.Equal(t, "tacoplace.com", page.Domain)
}
