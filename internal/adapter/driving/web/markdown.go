package web

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy

	mrkdwnLink = regexp.MustCompile(`<(https?://[^|>\s]+)\|([^>]*)>`)
	mrkdwnBold = regexp.MustCompile(`\*([^*\n]+)\*`)

	linkTextEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`)
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// MrkdwnToMarkdown rewrites chat mrkdwn into CommonMark: <url|text> links
// become [text](url) and single-asterisk bold becomes double-asterisk bold.
func MrkdwnToMarkdown(src string) string {
	out := mrkdwnLink.ReplaceAllStringFunc(src, func(m string) string {
		parts := mrkdwnLink.FindStringSubmatch(m)
		return "[" + linkTextEscaper.Replace(parts[2]) + "](" + parts[1] + ")"
	})
	return mrkdwnBold.ReplaceAllString(out, "**$1**")
}

// RenderMessage renders a chat message as sanitized HTML, one paragraph or
// rule per block.
func RenderMessage(msg model.RenderedMessage) string {
	parts := msg.Markdown()
	for i, p := range parts {
		parts[i] = MrkdwnToMarkdown(p)
	}
	return RenderMarkdown(strings.Join(parts, "\n\n"))
}
