package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Yahoo! Finance: %[1]s News</title>
  <item>
    <title>%[1]s rallies on earnings</title>
    <link>https://example.com/%[1]s/1</link>
    <description>&lt;p&gt;Strong quarter for %[1]s&lt;/p&gt;</description>
    <pubDate>Thu, 02 Apr 2026 13:30:00 +0000</pubDate>
  </item>
  <item>
    <title>Markets wrap</title>
    <link>https://example.com/wrap</link>
    <description>Stocks mixed</description>
    <pubDate>Wed, 01 Apr 2026 20:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

func newRSSServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sym := r.URL.Query().Get("s")
		if sym == "FAIL" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, sym)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSNewsFetch(t *testing.T) {
	srv := newRSSServer(t)
	n := NewRSSNews(srv.URL+"/rss?s=%s", srv.Client(), nil)

	articles, err := n.FetchNews(context.Background(), []string{"AAPL", "MSFT"}, 10)
	require.NoError(t, err)
	// Two symbol-specific items plus one shared wrap item.
	require.Len(t, articles, 3)

	var wrapSymbols []string
	for _, a := range articles {
		if a.String("url") == "https://example.com/wrap" {
			wrapSymbols = a.Strings("symbols")
		}
	}
	assert.Equal(t, []string{"AAPL", "MSFT"}, wrapSymbols)

	first := articles[0]
	assert.Contains(t, first.String("title"), "rallies on earnings")
	_, ok := first.Time("published_at")
	assert.True(t, ok)
}

func TestRSSNewsLimitAndPartialFailure(t *testing.T) {
	srv := newRSSServer(t)
	n := NewRSSNews(srv.URL+"/rss?s=%s", srv.Client(), nil)

	// a failed feed contributes no items; the healthy feed is returned whole
	articles, err := n.FetchNews(context.Background(), []string{"FAIL", "AAPL"}, 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, []string{"AAPL"}, articles[0].Strings("symbols"))

	_, err = n.FetchNews(context.Background(), []string{"FAIL"}, 5)
	assert.Error(t, err)
}
