package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"auto_linkedin_post_publisher/failure"
	"auto_linkedin_post_publisher/generator"
)

// Config is the whole application configuration.
type Config struct {
	LLM        LLMConfig       `yaml:"llm"`
	Image      ImageConfig     `yaml:"image"`
	Search     SearchConfig    `yaml:"search"`
	LinkedIn   LinkedInConfig  `yaml:"linkedin"`
	Discovery  DiscoveryConfig `yaml:"discovery"`
	Retry      RetryConfig     `yaml:"retry"`
	ServerAddr string          `yaml:"server_addr"`
	// RequestTimeoutSecs bounds every outbound call.
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`
}

// LLMConfig selects the text model. Provider is openai, deepseek, gemini or mock.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature"`
	MaxChars    int      `yaml:"max_chars"`
}

type ImageConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Size           string `yaml:"size"`
	Quality        string `yaml:"quality"`
	ResponseFormat string `yaml:"response_format"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
}

type SearchConfig struct {
	APIKey        string `yaml:"api_key"`
	EngineID      string `yaml:"engine_id"`
	PageSize      int    `yaml:"page_size"`
	MaxQueryChars int    `yaml:"max_query_chars"`
	CacheSize     int    `yaml:"cache_size"`
	// CacheTTLMinutes bounds how long a cached context is reused.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

type LinkedInConfig struct {
	AccessToken string `yaml:"access_token"`
	// AuthorURN may be left empty; it is then resolved from the token at startup.
	AuthorURN  string `yaml:"author_urn"`
	APIVersion string `yaml:"api_version"`
	BaseURL    string `yaml:"base_url"`
	Visibility string `yaml:"visibility"`
}

type DiscoveryConfig struct {
	APIKey   string `yaml:"api_key"`
	Query    string `yaml:"query"`
	Language string `yaml:"language"`
	SortBy   string `yaml:"sort_by"`
	PageSize int    `yaml:"page_size"`
	DaysAgo  int    `yaml:"days_ago"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// Load reads .env (if present), then the YAML file at path (if present), then
// applies environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// every value may come from the environment
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config yaml: %w", err)
			}
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, failure.Wrap(failure.KindValidation, "load config", err)
	}
	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Image.APIKey = v
		if cfg.LLM.Provider == "" || cfg.LLM.Provider == "openai" {
			cfg.LLM.APIKey = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" && cfg.LLM.Provider == "gemini" {
		cfg.LLM.APIKey = v
	}
	switch cfg.LLM.Provider {
	case "", "openai", "deepseek":
		setString(&cfg.LLM.Model, "OPENAI_MODEL")
	}
	if err := setInt(&cfg.LLM.MaxTokens, "OPENAI_MAX_TOKENS"); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OPENAI_TEMPERATURE: %w", err)
		}
		cfg.LLM.Temperature = &t
	}
	setString(&cfg.Image.Model, "DALLE_MODEL")
	setString(&cfg.Search.APIKey, "SEARCH_API_KEY")
	setString(&cfg.Search.EngineID, "SEARCH_ENGINE_ID")
	setString(&cfg.LinkedIn.AccessToken, "LINKEDIN_ACCESS_TOKEN")
	setString(&cfg.LinkedIn.AuthorURN, "LINKEDIN_USER_URN")
	setString(&cfg.LinkedIn.APIVersion, "LINKEDIN_API_VERSION")
	setString(&cfg.Discovery.APIKey, "NEWSAPI_KEY")
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.ServerAddr = ":" + strings.TrimPrefix(v, ":")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "gemini":
			cfg.LLM.Model = "gemini-2.0-flash"
		case "deepseek":
			cfg.LLM.Model = "deepseek-chat"
		default:
			cfg.LLM.Model = "gpt-4o"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.Temperature == nil {
		t := 0.7
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.MaxChars == 0 {
		cfg.LLM.MaxChars = 1500
	}
	if cfg.Image.APIKey == "" && (cfg.LLM.Provider == "openai" || cfg.LLM.Provider == "mock") {
		cfg.Image.APIKey = cfg.LLM.APIKey
	}
	if cfg.Image.Model == "" {
		cfg.Image.Model = "dall-e-3"
	}
	if cfg.Image.Size == "" {
		cfg.Image.Size = "1024x1024"
	}
	if cfg.Image.Quality == "" {
		cfg.Image.Quality = "standard"
	}
	if cfg.Image.ResponseFormat == "" {
		cfg.Image.ResponseFormat = "url"
	}
	if cfg.Image.MaxPromptChars == 0 {
		cfg.Image.MaxPromptChars = 1000
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = 5
	}
	if cfg.Search.MaxQueryChars == 0 {
		cfg.Search.MaxQueryChars = 2048
	}
	if cfg.Search.CacheTTLMinutes == 0 {
		cfg.Search.CacheTTLMinutes = 60
	}
	if cfg.LinkedIn.APIVersion == "" {
		cfg.LinkedIn.APIVersion = "202504"
	}
	if cfg.LinkedIn.Visibility == "" {
		cfg.LinkedIn.Visibility = "PUBLIC"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = failure.DefaultPolicy.MaxAttempts
	}
	if cfg.Retry.BaseDelayMS == 0 {
		cfg.Retry.BaseDelayMS = int(failure.DefaultPolicy.BaseDelay / time.Millisecond)
	}
	if cfg.Retry.MaxDelayMS == 0 {
		cfg.Retry.MaxDelayMS = int(failure.DefaultPolicy.MaxDelay / time.Millisecond)
	}
	if cfg.RequestTimeoutSecs == 0 {
		cfg.RequestTimeoutSecs = 60
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
}

func validate(cfg *Config) error {
	var problems []string
	switch cfg.LLM.Provider {
	case "openai", "gemini":
	case "deepseek":
		// DeepSeek 走 OpenAI 兼容接口，必须显式给出 base_url。
		if cfg.LLM.BaseURL == "" {
			problems = append(problems, "llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
	case "mock":
	default:
		problems = append(problems, fmt.Sprintf("llm provider %s not supported", cfg.LLM.Provider))
	}
	if cfg.LLM.Provider != "mock" && cfg.LLM.APIKey == "" {
		problems = append(problems, "llm api_key is required (OPENAI_API_KEY or GEMINI_API_KEY)")
	}
	if cfg.LLM.MaxTokens < 0 {
		problems = append(problems, "llm max_tokens must be positive")
	}
	if t := *cfg.LLM.Temperature; t < 0 || t > 2 {
		problems = append(problems, fmt.Sprintf("llm temperature must be within [0, 2], got %v", t))
	}
	if cfg.Image.APIKey == "" {
		problems = append(problems, "image api_key is required (OPENAI_API_KEY)")
	}
	if cfg.Search.APIKey == "" || cfg.Search.EngineID == "" {
		problems = append(problems, "search api_key and engine_id are required (SEARCH_API_KEY, SEARCH_ENGINE_ID)")
	}
	if cfg.LinkedIn.AccessToken == "" {
		problems = append(problems, "linkedin access_token is required (LINKEDIN_ACCESS_TOKEN)")
	}
	if cfg.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry max_attempts must be at least 1")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// RequestTimeout is the bound applied to each outbound call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// SearchCacheTTL is how long a search context stays cached.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLMinutes) * time.Minute
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() failure.Policy {
	return failure.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
	}
}

// LLMSettings builds the text model settings shared by all providers.
func (c *Config) LLMSettings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: *c.LLM.Temperature,
		Timeout:     c.RequestTimeout(),
	}
}

// ImageSettings builds the OpenAI client settings used for image generation.
func (c *Config) ImageSettings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider: "openai",
		Model:    c.Image.Model,
		APIKey:   c.Image.APIKey,
		BaseURL:  c.Image.BaseURL,
		Timeout:  c.RequestTimeout(),
	}
}
