package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketlens/pkg/models"
)

func TestDoGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	_, status, err := doGet(context.Background(), srv.Client(), srv.URL, nil)
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
	var httpErr *ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "slow down", httpErr.Body)
}

func TestDoPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		var in map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, 3, in["n"])
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	body, status, err := doPostJSON(context.Background(), srv.Client(), srv.URL, map[string]int{"n": 3}, map[string]string{"X-Test": "yes"})
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(data))
}

func TestTagSymbols(t *testing.T) {
	articles := []models.RawArticle{
		{"title": "a"},
		{"title": "b", "tickers": []any{"MSFT"}},
		nil,
	}
	tagSymbols(articles, []string{"AAPL", "GOOGL"})

	assert.Equal(t, []string{"AAPL", "GOOGL"}, articles[0].Strings("symbols"))
	_, tagged := articles[1]["symbols"]
	assert.False(t, tagged, "provider-supplied tickers are kept")
}

func TestTruncate(t *testing.T) {
	in := []models.RawArticle{{}, {}, {}}
	assert.Len(t, truncate(in, 2), 2)
	assert.Len(t, truncate(in, 0), 3)
	assert.Len(t, truncate(in, 10), 3)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", coalesce("", "b", "c"))
	assert.Equal(t, "", coalesce("", ""))
}

func TestStripURL(t *testing.T) {
	err := &url.Error{Op: "Get", URL: "https://serpapi.com/search?api_key=SECRET", Err: errors.New("connection refused")}
	got := stripURL(err)
	assert.Equal(t, "Get: connection refused", got.Error())
	assert.NotContains(t, got.Error(), "SECRET")

	plain := errors.New("fail to decode")
	assert.Same(t, plain, stripURL(plain))
}

func TestDoTransportErrorOmitsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, _, err := doGet(context.Background(), nil, addr+"/quote?token=SECRET", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.Contains(t, err.Error(), "/quote")
}
