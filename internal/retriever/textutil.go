package retriever

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "GoRetrieve/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var domainRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?([-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6})/?`)

// GetDomain extracts the domain from a URL in 'example.com' form: no scheme,
// no 'www'. When keepSubdomain is false only the second-level and top-level
// parts are kept. Returns "" when no domain can be found.
func GetDomain(rawURL string, keepSubdomain bool) string {
	m := domainRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	domain := m[1]
	if !keepSubdomain {
		parts := strings.Split(domain, ".")
		if len(parts) > 2 {
			domain = strings.Join(parts[len(parts)-2:], ".")
		}
	}
	return strings.ToLower(domain)
}

var (
	mdLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	mdImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
)

// StripLinks removes hyperlink targets from markdown text, keeping only the
// anchor text. Image references lose their URL too but keep the alt text.
func StripLinks(md string) string {
	md = mdImageRe.ReplaceAllString(md, "$1")
	return mdLinkRe.ReplaceAllString(md, "$1")
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}
