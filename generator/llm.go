package generator

import (
	"context"
	"time"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

// Completion is one model answer plus the metadata we keep about it.
type Completion struct {
	Text        string
	Model       string
	TotalTokens int64
}

// LLMSettings 提供给具体实现的基础配置。MaxTokens 和 Temperature 对整条流水线生效，不按调用覆盖。
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}
