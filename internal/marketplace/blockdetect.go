package marketplace

import "strings"

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone    BlockType = ""
	BlockWAF     BlockType = "waf"
	BlockCaptcha BlockType = "captcha"
	BlockWall    BlockType = "login_wall"
)

// DetectBlock inspects a scraper response for signs that the portal is
// actively blocking us. Callers translate a positive detection into
// ErrPortalBlocked.
func DetectBlock(statusCode int, body []byte) (bool, BlockType) {
	if statusCode == 403 || statusCode == 429 || statusCode == 503 {
		return true, BlockWAF
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, BlockCaptcha
	}

	// Challenge interstitials from WAF products.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "access denied") && strings.Contains(lower, "automated") ||
		strings.Contains(lower, "unusual traffic") {
		return true, BlockWAF
	}

	// Small bodies demanding a login are walls, not results.
	if len(body) < 2000 {
		if strings.Contains(lower, "please log in") || strings.Contains(lower, "sign in to continue") {
			return true, BlockWall
		}
	}

	return false, BlockNone
}
