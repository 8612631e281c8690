package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"auto_linkedin_post_publisher/failure"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions).
type OpenAILLM struct {
	Model       string
	MaxTokens   int
	Temperature float64
	client      openai.Client
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	return &OpenAILLM{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		client:      openai.NewClient(OpenAIOptions(cfg)...),
	}, nil
}

// OpenAIOptions builds the request options shared by the chat and image clients.
// SDK retries are disabled; retrying is decided by the pipeline.
func OpenAIOptions(cfg *LLMSettings) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return opts
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(o.Temperature),
	}
	if o.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, ClassifyOpenAIError("openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, failure.New(failure.KindMalformedResponse, "openai chat", "empty choices")
	}
	return Completion{
		Text:        resp.Choices[0].Message.Content,
		Model:       resp.Model,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// ClassifyOpenAIError maps SDK errors onto failure kinds. Safety-system
// refusals become KindRejected so they can be told apart from transient errors.
func ClassifyOpenAIError(op string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return failure.Classify(op, err)
	}
	if apiErr.Code == "content_policy_violation" || strings.Contains(apiErr.Message, "safety system") {
		return &failure.Error{Kind: failure.KindRejected, Op: op, Msg: apiErr.Message, Err: err}
	}
	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	fe := failure.FromStatus(op, apiErr.StatusCode, header, apiErr.Message)
	fe.Err = err
	return fe
}
