package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"

	openai "github.com/openai/openai-go"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/failure"
	"auto_linkedin_post_publisher/generator"
)

const (
	defaultModel          = "dall-e-3"
	defaultSize           = "1024x1024"
	defaultQuality        = "standard"
	defaultMaxPromptChars = 1000
	defaultMaxBytes       = 20 << 20
)

// LinkedIn accepts these formats for feed images.
var supportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// Config describes the generated picture.
type Config struct {
	Model   string
	Size    string
	Quality string
	// ResponseFormat is "url" (download afterwards) or "b64_json" (inline).
	ResponseFormat string
	MaxPromptChars int
	MaxBytes       int64
}

// Client generates post images with the OpenAI Images API.
type Client struct {
	cfg     Config
	client  openai.Client
	http    *http.Client
	verbose bool
	logger  *log.Logger
}

func New(settings *generator.LLMSettings, cfg Config, httpClient *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, errors.New("openai api key missing for image generation")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Size == "" {
		cfg.Size = defaultSize
	}
	if cfg.Quality == "" {
		cfg.Quality = defaultQuality
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = "url"
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = defaultMaxPromptChars
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:     cfg,
		client:  openai.NewClient(generator.OpenAIOptions(settings)...),
		http:    httpClient,
		verbose: verbose,
		logger:  logger,
	}, nil
}

// MaxPromptChars is the longest prompt Generate accepts.
func (c *Client) MaxPromptChars() int { return c.cfg.MaxPromptChars }

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

// Generate produces one image for prompt. Content-policy refusals surface as
// failure.KindRejected; no placeholder image is ever substituted.
func (c *Client) Generate(ctx context.Context, prompt string) (content.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return content.Image{}, failure.New(failure.KindValidation, "generate image", "prompt must not be empty")
	}
	if n := len([]rune(prompt)); n > c.cfg.MaxPromptChars {
		return content.Image{}, failure.New(failure.KindValidation, "generate image", "prompt has %d characters, limit is %d", n, c.cfg.MaxPromptChars)
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.cfg.Model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(c.cfg.Size),
		Quality:        openai.ImageGenerateParamsQuality(c.cfg.Quality),
		ResponseFormat: openai.ImageGenerateParamsResponseFormat(c.cfg.ResponseFormat),
	})
	if err != nil {
		return content.Image{}, generator.ClassifyOpenAIError("generate image", err)
	}
	if len(resp.Data) == 0 {
		return content.Image{}, failure.New(failure.KindMalformedResponse, "generate image", "no image in response")
	}

	item := resp.Data[0]
	var img content.Image
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return content.Image{}, failure.Wrap(failure.KindMalformedResponse, "generate image", err)
		}
		img.Data = data
	case item.URL != "":
		data, err := c.download(ctx, item.URL)
		if err != nil {
			return content.Image{}, err
		}
		img.Data = data
		img.SourceURL = item.URL
	default:
		return content.Image{}, failure.New(failure.KindMalformedResponse, "generate image", "response has neither url nor b64_json")
	}

	if len(img.Data) == 0 {
		return content.Image{}, failure.New(failure.KindMalformedResponse, "generate image", "image payload is empty")
	}
	img.ContentType = http.DetectContentType(img.Data)
	if !supportedTypes[img.ContentType] {
		return content.Image{}, failure.New(failure.KindMalformedResponse, "generate image", "unsupported image type %s", img.ContentType)
	}
	c.infof("Generated image %s (%d bytes)", img.ContentType, len(img.Data))
	return img, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failure.Wrap(failure.KindMalformedResponse, "download image", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure.Classify("download image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, failure.FromStatus("download image", resp.StatusCode, resp.Header, string(body))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes+1))
	if err != nil {
		return nil, failure.Classify("download image", err)
	}
	if int64(len(data)) > c.cfg.MaxBytes {
		return nil, failure.New(failure.KindMalformedResponse, "download image", "image exceeds %d bytes", c.cfg.MaxBytes)
	}
	return data, nil
}

// BuildPrompt derives the image prompt from the topic and, when present, the
// first sentence of the post. Control characters are dropped, whitespace is
// collapsed and the result never exceeds maxChars runes.
func BuildPrompt(topic, text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultMaxPromptChars
	}
	topic = sanitize(topic)
	prompt := fmt.Sprintf("A professional, engaging image for a LinkedIn post about %s. Corporate style, high quality, suitable for professional networks.", topic)
	if theme := firstSentence(sanitize(text)); theme != "" {
		prompt += " Theme: " + theme
	}
	return truncate(prompt, maxChars)
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func firstSentence(s string) string {
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		return s[:i+1]
	}
	return s
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
