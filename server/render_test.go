package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownRendersAndSanitises(t *testing.T) {
	r := newTextRenderer()

	out := r.Markdown("**ship it**\n\n<script>alert(1)</script>")
	assert.Contains(t, out, "<strong>ship it</strong>")
	assert.NotContains(t, out, "<script")

	assert.Equal(t, "", r.Markdown("   "))
}

func TestSanitizeKeepsSafeMarkup(t *testing.T) {
	r := newTextRenderer()
	assert.Equal(t, "hello <b>world</b>", r.Sanitize("hello <b>world</b><script>x()</script>"))
	assert.Equal(t, "plain", r.Sanitize("  plain  "))
}
