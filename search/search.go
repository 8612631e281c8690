package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/failure"
)

const (
	defaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	// Custom Search refuses more than 10 results per page.
	maxPageSize          = 10
	defaultPageSize      = 5
	defaultMaxQueryChars = 2048
	defaultCacheTTL      = time.Hour
)

// Config holds the Custom Search credentials and limits.
type Config struct {
	APIKey        string
	EngineID      string
	BaseURL       string
	PageSize      int
	MaxQueryChars int
	// CacheSize is the number of topics whose context is kept in memory; 0 disables caching.
	CacheSize int
	CacheTTL  time.Duration
}

type searchResp struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

// Client fetches reference snippets for a topic from Google Custom Search.
type Client struct {
	cfg     Config
	client  *http.Client
	cache   *expirable.LRU[string, content.SearchContext]
	verbose bool
	logger  *log.Logger
}

func New(cfg Config, client *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, errors.New("search config must include api_key and engine_id")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.MaxQueryChars <= 0 {
		cfg.MaxQueryChars = defaultMaxQueryChars
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	c := &Client{cfg: cfg, client: client, verbose: verbose, logger: logger}
	if cfg.CacheSize > 0 {
		// 过期后重新检索，避免长时间运行时复用旧新闻。
		c.cache = expirable.NewLRU[string, content.SearchContext](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return c, nil
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

// Fetch returns at most PageSize snippets in the service's relevance order.
// Zero hits is not an error.
func (c *Client) Fetch(ctx context.Context, topic string) (content.SearchContext, error) {
	topic, err := content.ParseTopic(topic)
	if err != nil {
		return content.SearchContext{}, err
	}
	query := truncateRunes(topic, c.cfg.MaxQueryChars)
	if c.cache != nil {
		if sc, ok := c.cache.Get(query); ok {
			c.infof("search cache hit for %q", query)
			return cloneContext(sc), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return content.SearchContext{}, failure.Wrap(failure.KindValidation, "search", err)
	}
	q := req.URL.Query()
	q.Set("key", c.cfg.APIKey)
	q.Set("cx", c.cfg.EngineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(c.cfg.PageSize))
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return content.SearchContext{}, failure.Classify("search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return content.SearchContext{}, classifyStatus(resp, string(body))
	}

	var data searchResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return content.SearchContext{}, failure.Wrap(failure.KindMalformedResponse, "search", err)
	}

	sc := content.SearchContext{Topic: topic}
	for _, item := range data.Items {
		if len(sc.Snippets) == c.cfg.PageSize {
			break
		}
		sc.Snippets = append(sc.Snippets, content.Snippet{
			Title:   strings.TrimSpace(item.Title),
			Excerpt: strings.TrimSpace(item.Snippet),
			Link:    strings.TrimSpace(item.Link),
		})
	}
	c.infof("search %q returned %d snippets", query, len(sc.Snippets))
	if c.cache != nil {
		c.cache.Add(query, cloneContext(sc))
	}
	return sc, nil
}

// Forget drops the cached context for topic so the next Fetch goes upstream.
func (c *Client) Forget(topic string) {
	if c.cache == nil {
		return
	}
	topic = strings.TrimSpace(topic)
	c.cache.Remove(truncateRunes(topic, c.cfg.MaxQueryChars))
}

// Custom Search reports exhausted quota as 403 with a rateLimitExceeded or
// dailyLimitExceeded reason instead of 429.
func classifyStatus(resp *http.Response, body string) error {
	if resp.StatusCode == http.StatusForbidden &&
		(strings.Contains(body, "rateLimitExceeded") || strings.Contains(body, "dailyLimitExceeded") || strings.Contains(body, "quotaExceeded")) {
		return failure.New(failure.KindRateLimited, "search", "quota exceeded: %s", strings.TrimSpace(body))
	}
	return failure.FromStatus("search", resp.StatusCode, resp.Header, body)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}

func cloneContext(sc content.SearchContext) content.SearchContext {
	out := sc
	out.Snippets = append([]content.Snippet(nil), sc.Snippets...)
	return out
}
