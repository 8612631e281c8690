package discovery

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"auto_linkedin_post_publisher/failure"
)

const (
	defaultBaseURL  = "https://newsapi.org/v2/everything"
	defaultQuery    = "artificial intelligence"
	defaultLanguage = "en"
	defaultSortBy   = "popularity"
	defaultPageSize = 10
	defaultDaysAgo  = 30
	// NewsAPI caps pageSize at 100.
	maxPageSize = 100
)

// Config selects which headlines are suggested as topics.
type Config struct {
	APIKey   string
	BaseURL  string
	Query    string
	Language string
	SortBy   string
	PageSize int
	DaysAgo  int
}

// Headline is one suggested topic.
type Headline struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"`
}

type everythingResp struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Client reads headline suggestions from NewsAPI. It keeps no state between calls.
type Client struct {
	cfg     Config
	client  *http.Client
	verbose bool
	logger  *log.Logger
	now     func() time.Time
}

// New builds a Client. A missing API key is allowed; Headlines then reports
// that discovery is disabled.
func New(cfg Config, client *http.Client, verbose bool, logger *log.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Query == "" {
		cfg.Query = defaultQuery
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.SortBy == "" {
		cfg.SortBy = defaultSortBy
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.DaysAgo <= 0 {
		cfg.DaysAgo = defaultDaysAgo
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{cfg: cfg, client: client, verbose: verbose, logger: logger, now: time.Now}
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.cfg.APIKey != "" }

// Headlines returns the current headlines in the order NewsAPI ranks them.
// Articles without a title are skipped.
func (c *Client) Headlines(ctx context.Context) ([]Headline, error) {
	if !c.Enabled() {
		return nil, failure.New(failure.KindValidation, "discover topics", "NEWSAPI_KEY is not configured")
	}
	from := c.now().AddDate(0, 0, -c.cfg.DaysAgo).Format("2006-01-02")
	q := url.Values{}
	q.Set("q", c.cfg.Query)
	q.Set("from", from)
	q.Set("sortBy", c.cfg.SortBy)
	q.Set("language", c.cfg.Language)
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	c.infof("Fetching headlines q=%q from=%s", c.cfg.Query, from)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, failure.Classify("discover topics", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, failure.Classify("discover topics", err)
	}
	var data everythingResp
	decodeErr := json.Unmarshal(raw, &data)

	if resp.StatusCode != http.StatusOK || data.Status == "error" {
		status := resp.StatusCode
		if status == http.StatusOK && data.Code == "rateLimited" {
			status = http.StatusTooManyRequests
		}
		msg := data.Message
		if msg == "" {
			msg = string(raw)
		}
		if status == http.StatusOK {
			return nil, failure.New(failure.KindRejected, "discover topics", "%s", msg)
		}
		return nil, failure.FromStatus("discover topics", status, resp.Header, msg)
	}
	if decodeErr != nil {
		return nil, failure.Wrap(failure.KindMalformedResponse, "discover topics", decodeErr)
	}

	out := make([]Headline, 0, len(data.Articles))
	for _, a := range data.Articles {
		title := strings.TrimSpace(a.Title)
		// NewsAPI marks deleted articles as "[Removed]".
		if title == "" || title == "[Removed]" {
			continue
		}
		out = append(out, Headline{
			Title:       title,
			Description: strings.TrimSpace(a.Description),
			URL:         a.URL,
			Source:      a.Source.Name,
		})
	}
	if len(out) == 0 {
		c.logger.Printf("[WARN] no headlines for q=%q from=%s", c.cfg.Query, from)
	}
	return out, nil
}
