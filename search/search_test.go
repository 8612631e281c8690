package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_linkedin_post_publisher/failure"
)

type item struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.APIKey = "key"
	cfg.EngineID = "engine"
	cfg.BaseURL = srv.URL
	c, err := New(cfg, srv.Client(), false, nil)
	require.NoError(t, err)
	return c
}

func TestFetchKeepsOrderAndTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		assert.Equal(t, "engine", r.URL.Query().Get("cx"))
		assert.Equal(t, "AI ethics", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("num"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []item{
				{Title: "First", Snippet: "one", Link: "https://a.example"},
				{Title: "Second", Snippet: "two", Link: "https://b.example"},
				{Title: "Third", Snippet: "three", Link: "https://c.example"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{PageSize: 2})
	sc, err := c.Fetch(context.Background(), "  AI ethics ")
	require.NoError(t, err)
	require.Len(t, sc.Snippets, 2)
	assert.Equal(t, "AI ethics", sc.Topic)
	assert.Equal(t, "First", sc.Snippets[0].Title)
	assert.Equal(t, "https://b.example", sc.Snippets[1].Link)
}

func TestFetchZeroResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()

	sc, err := newTestClient(t, srv, Config{}).Fetch(context.Background(), "Xyzzy123")
	require.NoError(t, err)
	assert.True(t, sc.Empty())
}

func TestFetchErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   failure.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, failure.KindRateLimited},
		{"daily quota", http.StatusForbidden, `{"error":{"errors":[{"reason":"dailyLimitExceeded"}]}}`, failure.KindRateLimited},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"bad key"}}`, failure.KindRejected},
		{"server", http.StatusInternalServerError, ``, failure.KindUnavailable},
		{"malformed", http.StatusOK, `{"items": [`, failure.KindMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv, Config{}).Fetch(context.Background(), "topic")
			require.Error(t, err)
			assert.Equal(t, tc.want, failure.KindOf(err))
		})
	}
}

func TestFetchRejectsEmptyTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("search must not be called")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, Config{}).Fetch(context.Background(), "   ")
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
}

func TestFetchTruncatesLongQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, Config{MaxQueryChars: 5}).Fetch(context.Background(), "inteligencia "+strings.Repeat("x", 50))
	require.NoError(t, err)
	assert.Equal(t, "intel", got)
}

func TestFetchUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []item{{Title: "Only"}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{CacheSize: 4})
	first, err := c.Fetch(context.Background(), "cached")
	require.NoError(t, err)
	first.Snippets[0].Title = "mutated"

	second, err := c.Fetch(context.Background(), "cached")
	require.NoError(t, err)
	assert.Equal(t, "Only", second.Snippets[0].Title)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.Forget(" cached ")
	_, err = c.Fetch(context.Background(), "cached")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchCacheExpires(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": []item{{Title: "News"}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{CacheSize: 4, CacheTTL: 30 * time.Millisecond})
	_, err := c.Fetch(context.Background(), "ai news")
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "ai news")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	time.Sleep(60 * time.Millisecond)
	_, err = c.Fetch(context.Background(), "ai news")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "key", EngineID: "engine", BaseURL: srv.URL},
		&http.Client{Timeout: 50 * time.Millisecond}, false, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "slow topic")
	assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{APIKey: "k"}, nil, false, nil)
	assert.Error(t, err)
}
