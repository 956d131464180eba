package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const opaqueBlobPlaceholder = "[binary content removed]"

var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Long runs of base64-ish characters are almost always inline
	// attachments or tracking payloads, never prose.
	opaqueBlobRe = regexp.MustCompile(`[A-Za-z0-9+/=]{100,}`)
)

// NormalizeContent turns decoded subject/body text into plain searchable
// text: markup removed, whitespace collapsed, opaque blobs redacted, then
// truncated to maxLen characters. Empty input yields an empty string.
func NormalizeContent(text string, maxLen int) string {
	if text == "" {
		return ""
	}

	if strings.Contains(text, "<") {
		text = stripMarkup(text)
	}

	text = whitespaceRe.ReplaceAllString(text, " ")
	text = opaqueBlobRe.ReplaceAllString(text, opaqueBlobPlaceholder)
	text = strings.TrimSpace(text)

	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = string(runes[:maxLen])
		}
	}
	return text
}

// stripMarkup extracts the text content of HTML-ish input. goquery handles
// well-formed markup and entity decoding; malformed input falls back to a
// plain tag-stripping pass.
func stripMarkup(html string) string {
	html = scriptRe.ReplaceAllString(html, "")
	html = styleRe.ReplaceAllString(html, "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stripMarkupSimple(html)
	}
	text := doc.Text()
	if strings.TrimSpace(text) == "" {
		return stripMarkupSimple(html)
	}
	return text
}

func stripMarkupSimple(html string) string {
	html = tagRe.ReplaceAllString(html, " ")

	html = strings.ReplaceAll(html, "&nbsp;", " ")
	html = strings.ReplaceAll(html, "&amp;", "&")
	html = strings.ReplaceAll(html, "&lt;", "<")
	html = strings.ReplaceAll(html, "&gt;", ">")
	html = strings.ReplaceAll(html, "&quot;", "\"")

	return html
}
