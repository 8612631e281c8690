package generator

import (
	"context"
	"errors"
	"strings"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/failure"
)

// Writer 负责根据主题和检索上下文生成帖子正文。
type Writer struct {
	llm      LLMClient
	maxChars int
}

func NewWriter(llm LLMClient, maxChars int) (*Writer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Writer{llm: llm, maxChars: maxChars}, nil
}

// Generate asks the model for a post. A blank completion is a failure, never
// an empty post. Errors are not retried here.
func (w *Writer) Generate(ctx context.Context, topic string, sc content.SearchContext) (content.GeneratedText, error) {
	topic, err := content.ParseTopic(topic)
	if err != nil {
		return content.GeneratedText{}, err
	}
	prompt := BuildPostPrompt(topic, sc, w.maxChars)

	c, err := w.llm.Complete(ctx, prompt)
	if err != nil {
		return content.GeneratedText{}, failure.Classify("generate text", err)
	}
	if strings.TrimSpace(c.Text) == "" {
		return content.GeneratedText{}, failure.New(failure.KindMalformedResponse, "generate text", "model returned empty completion")
	}
	return content.GeneratedText{
		Content:     c.Text,
		Model:       c.Model,
		TotalTokens: c.TotalTokens,
	}, nil
}
