package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"auto_linkedin_post_publisher/content"
)

func TestBuildPostPromptAttributesSnippetsInOrder(t *testing.T) {
	sc := content.SearchContext{Topic: "AI ethics", Snippets: []content.Snippet{
		{Title: "Ethics report", Excerpt: "Most firms\nlack policies", Link: "https://a.example/report"},
		{Title: "Regulation update", Excerpt: "New rules", Link: "https://b.example/rules"},
	}}
	p := BuildPostPrompt("AI ethics", sc, 1200)

	assert.Equal(t, postSystemPrompt, p.System)
	assert.Equal(t, "AI ethics", p.Topic)
	assert.Contains(t, p.User, "about: AI ethics.")
	assert.Contains(t, p.User, "Not exceed 1200 characters")
	assert.Contains(t, p.User, "Summary: Most firms lack policies")
	first := strings.Index(p.User, "[1] Ethics report")
	second := strings.Index(p.User, "[2] Regulation update")
	assert.True(t, first >= 0 && second > first)
	assert.Contains(t, p.User, "Source: https://a.example/report")
	assert.Equal(t, 2, strings.Count(p.User, "---\n"))

	assert.Equal(t, p, BuildPostPrompt("AI ethics", sc, 1200))
}

func TestBuildPostPromptWithoutContext(t *testing.T) {
	p := BuildPostPrompt("Xyzzy123", content.SearchContext{}, 0)
	assert.Contains(t, p.User, "Xyzzy123")
	assert.Contains(t, p.User, "No reference material was found")
	assert.Contains(t, p.User, "Not exceed 1500 characters")
	assert.NotContains(t, p.User, "Source:")
}
