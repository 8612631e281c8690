package discovery

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_linkedin_post_publisher/failure"
)

func newClient(srv *httptest.Server, key string) *Client {
	c := New(Config{APIKey: key, BaseURL: srv.URL}, srv.Client(), false, log.New(io.Discard, "", 0))
	c.now = func() time.Time { return time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "artificial intelligence", q.Get("q"))
		assert.Equal(t, "2025-05-01", q.Get("from"))
		assert.Equal(t, "popularity", q.Get("sortBy"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, "news-key", r.Header.Get("X-Api-Key"))
		io.WriteString(w, `{"status":"ok","totalResults":3,"articles":[
			{"source":{"name":"Wired"},"title":" AI ethics boards grow ","description":"d1","url":"https://a"},
			{"source":{"name":"X"},"title":"[Removed]"},
			{"source":{"name":"Verge"},"title":"Chips and models","url":"https://b"}
		]}`)
	}))
	defer srv.Close()

	got, err := newClient(srv, "news-key").Headlines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Headline{
		{Title: "AI ethics boards grow", Description: "d1", URL: "https://a", Source: "Wired"},
		{Title: "Chips and models", URL: "https://b", Source: "Verge"},
	}, got)
}

func TestHeadlinesDisabledWithoutKey(t *testing.T) {
	c := New(Config{}, nil, false, nil)
	assert.False(t, c.Enabled())
	_, err := c.Headlines(context.Background())
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
}

func TestHeadlinesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   failure.Kind
	}{
		{"bad key", http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`, failure.KindRejected},
		{"rate limited", http.StatusTooManyRequests, `{"status":"error","code":"rateLimited","message":"slow down"}`, failure.KindRateLimited},
		{"server", http.StatusInternalServerError, `oops`, failure.KindUnavailable},
		{"garbage", http.StatusOK, `not json`, failure.KindMalformedResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := newClient(srv, "k").Headlines(context.Background())
			assert.Equal(t, tc.want, failure.KindOf(err))
		})
	}
}
