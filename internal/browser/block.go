package browser

import "strings"

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// Pages with more visible text than this are treated as real content even
// when they embed a captcha widget, such as a contact form with reCAPTCHA.
const interstitialTextMax = 1000

// DetectBlock checks a rendered page for signs of anti-bot protection.
func DetectBlock(snap *Snapshot) (bool, BlockType) {
	if snap == nil {
		return false, BlockNone
	}

	html := strings.ToLower(snap.HTML)
	text := strings.TrimSpace(snap.Text)
	short := len(text) < interstitialTextMax

	// Cloudflare challenge page markers.
	if strings.Contains(html, "cf-browser-verification") ||
		strings.Contains(html, "challenge-platform") ||
		short && strings.Contains(html, "checking your browser") {
		return true, BlockCloudflare
	}

	if short {
		lowText := strings.ToLower(text)
		if strings.Contains(html, "captcha") ||
			strings.Contains(lowText, "bots use duckduckgo too") ||
			strings.Contains(lowText, "unusual traffic") {
			return true, BlockCaptcha
		}
	}

	// JS-only shell: nothing rendered, with noscript or meta refresh.
	if text == "" {
		if strings.Contains(html, "<noscript") || strings.Contains(html, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
