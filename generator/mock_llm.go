package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (Completion, error) {
	topic := prompt.Topic
	if topic == "" {
		topic = "this topic"
	}
	var sb strings.Builder
	sb.WriteString("**")
	sb.WriteString(topic)
	sb.WriteString("** is changing how teams work.\n\n\n")
	sb.WriteString("Professionals who follow ")
	sb.WriteString(topic)
	sb.WriteString("   closely spot opportunities early.\n\n")
	sb.WriteString("How is your team approaching it?\n")
	return Completion{Text: sb.String(), Model: "mock", TotalTokens: int64(len(strings.Fields(sb.String())))}, nil
}
