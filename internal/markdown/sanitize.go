// ABOUTME: Denylist sanitizer for note.com HTML: drops dangerous elements and event attributes.
// ABOUTME: Not a general HTML sanitizer; anything off the lists passes through unchanged.

package markdown

import (
	"regexp"
)

// DeniedTags are removed together with their content.
var DeniedTags = []string{"script", "iframe", "object", "embed", "form", "input", "button"}

// DeniedAttributes are stripped from whichever element carries them.
var DeniedAttributes = []string{"onclick", "onload", "onerror", "onmouseover", "onfocus"}

var (
	deniedTagRes  []*regexp.Regexp
	deniedAttrRes []*regexp.Regexp
)

func init() {
	for _, tag := range DeniedTags {
		q := regexp.QuoteMeta(tag)
		deniedTagRes = append(deniedTagRes, regexp.MustCompile(`(?is)<`+q+`[^>]*>.*?</`+q+`>`))
	}
	for _, attr := range DeniedAttributes {
		q := regexp.QuoteMeta(attr)
		deniedAttrRes = append(deniedAttrRes, regexp.MustCompile(`(?is)\s`+q+`\s*=\s*["'][^"']*["']`))
	}
}

// Sanitize removes denied elements first, then denied attributes.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	for _, re := range deniedTagRes {
		html = re.ReplaceAllString(html, "")
	}
	for _, re := range deniedAttrRes {
		html = re.ReplaceAllString(html, "")
	}
	return html
}
