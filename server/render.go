package main

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// textRenderer turns card descriptions into HTML and cleans user markup.
type textRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newTextRenderer() *textRenderer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &textRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: p,
	}
}

// Markdown renders source to sanitised HTML. Render errors fall back to the
// escaped source.
func (r *textRenderer) Markdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return r.policy.Sanitize(src)
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String()))
}

// Sanitize strips unsafe markup from user text before it is stored.
func (r *textRenderer) Sanitize(s string) string {
	return strings.TrimSpace(r.policy.Sanitize(s))
}
