package extract

// DefaultFingerprints maps lowercase HTML substrings to the technology they
// reveal. The config key "fingerprints" replaces this table.
func DefaultFingerprints() map[string]string {
	return map[string]string{
		"wp-content":            "WordPress",
		"wp-includes":           "WordPress",
		"cdn.shopify.com":       "Shopify",
		"static.squarespace":    "Squarespace",
		"static.wixstatic.com":  "Wix",
		"weebly.com":            "Weebly",
		"squareup.com":          "Square",
		"square.site":           "Square",
		"toasttab.com":          "Toast",
		"clover.com":            "Clover",
		"js.stripe.com":         "Stripe",
		"googletagmanager.com":  "Google Tag Manager",
		"google-analytics.com":  "Google Analytics",
		"js.hs-scripts.com":     "HubSpot",
		"widget.intercom.io":    "Intercom",
		"chimpstatic.com":       "Mailchimp",
		"connect.facebook.net":  "Facebook Pixel",
		"cdnjs.cloudflare.com":  "Cloudflare",
		"/_next/static":         "Next.js",
		"data-reactroot":        "React",
		"jquery":                "jQuery",
		"bootstrap.min.css":     "Bootstrap",
		"calendly.com":          "Calendly",
		"opentable.com":         "OpenTable",
		"salesforce.com":        "Salesforce",
		"zendesk.com":           "Zendesk",
		"webflow.com":           "Webflow",
		"godaddy.com/websites":  "GoDaddy Website Builder",
	}
}
