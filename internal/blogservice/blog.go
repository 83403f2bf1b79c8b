package blogservice

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

const anonymousAuthor = "Anonymous"

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		// content may already be HTML from a rich text editor
		htmlrenderer.WithUnsafe(),
	),
)

// IsOwnedBy reports whether userID wrote the blog, going by the author
// (embedded or bare) or the userId field. An empty userID owns nothing.
func (b Blog) IsOwnedBy(userID string) bool {
	if userID == "" {
		return false
	}

	return b.Author.ID == userID || b.UserID == userID
}

// AuthorName is the name to show for the blog's author.
func (b Blog) AuthorName() string {
	switch {
	case b.Author.Name != "":
		return b.Author.Name
	case b.Username != "":
		return b.Username
	case b.Author.ID != "":
		return b.Author.ID
	default:
		return anonymousAuthor
	}
}

// Excerpt returns the content without markup, cut to at most n characters.
func (b Blog) Excerpt(n int) string {
	text := strings.TrimSpace(stripTags(sanitizeMarkdown(b.Content)))

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[:n]) + "..."
}

// RenderHTML renders the content with script blocks removed.
func (b Blog) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(sanitizeMarkdown(b.Content)), &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}
