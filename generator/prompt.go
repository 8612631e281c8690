package generator

import (
	"fmt"
	"strings"

	"auto_linkedin_post_publisher/content"
)

const defaultMaxChars = 1500

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System string
	User   string
	// Topic is carried for clients that do not parse the prompt text.
	Topic string
}

const postSystemPrompt = "You are an expert in digital marketing and LinkedIn content creation."

// BuildPostPrompt 生成帖子提示词。Snippets keep their search order and each one
// is delimited and attributed so the model can ground claims in a source.
func BuildPostPrompt(topic string, sc content.SearchContext, maxChars int) Prompt {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a professional LinkedIn post about: %s.\n", topic))
	sb.WriteString("The post must:\n")
	sb.WriteString("1. Have 3 medium paragraphs (no more than 3-4 sentences each).\n")
	sb.WriteString("2. Be informative and engaging for professionals.\n")
	sb.WriteString("3. Include a relevant fact or statistic.\n")
	sb.WriteString("4. End with a question or call to action.\n")
	sb.WriteString(fmt.Sprintf("5. Not exceed %d characters in total.\n\n", maxChars))

	if sc.Empty() {
		sb.WriteString("No reference material was found. Rely on the topic alone and do not invent sources.\n\n")
	} else {
		sb.WriteString("Use the following sources as context. Only state facts they support:\n\n")
		for i, s := range sc.Snippets {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, oneLine(s.Title)))
			if s.Excerpt != "" {
				sb.WriteString(fmt.Sprintf("Summary: %s\n", oneLine(s.Excerpt)))
			}
			if s.Link != "" {
				sb.WriteString(fmt.Sprintf("Source: %s\n", s.Link))
			}
			sb.WriteString("---\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Format: only the post text, without titles or additional labels.")

	return Prompt{
		System: postSystemPrompt,
		User:   sb.String(),
		Topic:  topic,
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
