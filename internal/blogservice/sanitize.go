package blogservice

import "regexp"

var (
	scriptTagPattern = regexp.MustCompile(`(?is)<\s*script[^>]*>(.*?)<\s*/\s*script\s*>`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]+>`)
)

func sanitizeMarkdown(markdown string) string {
	return scriptTagPattern.ReplaceAllString(markdown, "")
}

func stripTags(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}
