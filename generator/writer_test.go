package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/failure"
)

type stubLLM struct {
	out    Completion
	err    error
	prompt Prompt
	calls  int
}

func (s *stubLLM) Complete(_ context.Context, p Prompt) (Completion, error) {
	s.calls++
	s.prompt = p
	return s.out, s.err
}

func TestWriterGenerate(t *testing.T) {
	llm := &stubLLM{out: Completion{Text: "Hello AI", Model: "gpt-4o", TotalTokens: 42}}
	w, err := NewWriter(llm, 0)
	require.NoError(t, err)

	sc := content.SearchContext{Snippets: []content.Snippet{{Title: "Ref", Link: "https://x.example"}}}
	got, err := w.Generate(context.Background(), " AI ", sc)
	require.NoError(t, err)
	assert.Equal(t, content.GeneratedText{Content: "Hello AI", Model: "gpt-4o", TotalTokens: 42}, got)
	assert.Contains(t, llm.prompt.User, "[1] Ref")
	assert.Equal(t, "AI", llm.prompt.Topic)
}

func TestWriterRejectsBlankCompletion(t *testing.T) {
	w, err := NewWriter(&stubLLM{out: Completion{Text: " \n "}}, 0)
	require.NoError(t, err)

	_, err = w.Generate(context.Background(), "AI", content.SearchContext{})
	assert.Equal(t, failure.KindMalformedResponse, failure.KindOf(err))
}

func TestWriterPropagatesUpstreamKind(t *testing.T) {
	llm := &stubLLM{err: failure.New(failure.KindRateLimited, "openai chat", "quota")}
	w, err := NewWriter(llm, 0)
	require.NoError(t, err)

	_, err = w.Generate(context.Background(), "AI", content.SearchContext{})
	assert.Equal(t, failure.KindRateLimited, failure.KindOf(err))
	assert.Equal(t, 1, llm.calls)
}

func TestWriterValidatesTopic(t *testing.T) {
	llm := &stubLLM{}
	w, err := NewWriter(llm, 0)
	require.NoError(t, err)

	_, err = w.Generate(context.Background(), "  ", content.SearchContext{})
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
	assert.Zero(t, llm.calls)
}

func TestMockLLMOutputNormalizes(t *testing.T) {
	w, err := NewWriter(MockLLM{}, 0)
	require.NoError(t, err)

	got, err := w.Generate(context.Background(), "AI", content.SearchContext{})
	require.NoError(t, err)
	assert.Equal(t, "AI is changing how teams work.\n\nProfessionals who follow AI closely spot opportunities early.\n\nHow is your team approaching it?", Normalize(got.Content))
}
