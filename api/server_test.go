package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketlens/internal/catalog"
	"github.com/seenimoa/marketlens/internal/config"
	"github.com/seenimoa/marketlens/internal/news"
	"github.com/seenimoa/marketlens/internal/resolver"
	"github.com/seenimoa/marketlens/internal/store"
	"github.com/seenimoa/marketlens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, symbol string) (models.Verification, error) {
	switch strings.ToUpper(symbol) {
	case "BTC-USD":
		return models.Verification{Found: true, Name: "Bitcoin USD"}, nil
	case "NVDA":
		return models.Verification{Found: true, Name: "NVIDIA Corporation", QuoteType: "EQUITY"}, nil
	case "FAIL":
		return models.Verification{}, errors.New("upstream timeout")
	}
	return models.Verification{}, nil
}

type stubProvider struct {
	mu       sync.Mutex
	articles []models.RawArticle
	err      error
	calls    int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchNews(_ context.Context, _ []string, _ int) ([]models.RawArticle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.articles, p.err
}

type testEnv struct {
	srv      *Server
	provider *stubProvider
}

func testServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "news.db"), nil)
	require.NoError(t, err)
	require.NoError(t, st.InitializeTables(ctx))

	today := time.Now().UTC().Format(time.RFC3339)
	provider := &stubProvider{articles: []models.RawArticle{
		{"title": "Apple earnings beat estimates", "content": "Strong iPhone sales", "published_at": today, "symbols": []string{"AAPL"}},
		{"title": "Apple faces lawsuit", "content": "Regulators open an investigation", "published_at": today, "symbols": []string{"AAPL"}},
		{"title": "No content here", "published_at": today},
	}}

	cfg := &config.Config{}
	cfg.News.DefaultLimit = 10

	svc := news.NewService(news.NewClient(provider, time.Second, nil), news.NewAnalyzer(nil, nil), st)
	res := resolver.New(catalog.New([]models.CatalogEntry{
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "^HSI", Name: "Hang Seng Index"},
		{Symbol: "QQQ", Name: "Invesco QQQ Trust"},
	}), stubVerifier{})

	srv := NewServer(cfg, res, svc, nil, "test")
	svc.SetNotifier(srv.Hub())
	t.Cleanup(func() {
		srv.Close()
		svc.Close()
	})
	return &testEnv{srv: srv, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

// decodeData re-decodes the envelope's data into v.
func decodeData(t *testing.T, resp APIResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func (e *testEnv) ingest(t *testing.T) FetchResponse {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/api/v1/news/fetch", map[string]interface{}{"symbols": []string{"AAPL"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out FetchResponse
	decodeData(t, resp, &out)
	return out
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	env := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec, resp := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "test", data["version"])
	}
}

func TestSearchTickers(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"%20%20", nil},
		{"hsi", []string{"^HSI"}},
		{"btc", []string{"BTC-USD"}},
		{"nvda", []string{"NVDA"}},
		{"zzzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodGet, "/api/v1/search/tickers?q="+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, resp.Success)

			var matches []models.CandidateMatch
			decodeData(t, resp, &matches)
			var got []string
			for _, m := range matches {
				got = append(got, m.Symbol)
			}
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(matches), resolver.MaxResults)
		})
	}
}

func TestSearchTickersAssetType(t *testing.T) {
	env := testServer(t)
	_, resp := env.do(t, http.MethodGet, "/api/v1/search/tickers?q=BTC", nil)
	var matches []models.CandidateMatch
	decodeData(t, resp, &matches)
	require.NotEmpty(t, matches)
	assert.Equal(t, models.AssetCrypto, matches[0].AssetType)
	assert.Equal(t, models.SourceVerified, matches[0].Source)
}

func TestFetchNews(t *testing.T) {
	env := testServer(t)

	out := env.ingest(t)
	require.Len(t, out.Articles, 2)
	assert.Equal(t, 3, out.Report.Fetched)
	assert.Equal(t, 2, out.Report.Persisted)
	for _, a := range out.Articles {
		assert.NotZero(t, a.ID)
		assert.NotEmpty(t, a.Content)
	}
	assert.Equal(t, models.SentimentPositive, out.Articles[0].SentimentLabel)
	assert.Equal(t, models.SentimentNegative, out.Articles[1].SentimentLabel)

	// same batch again: everything is a duplicate
	_, resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", map[string]interface{}{"symbols": []string{"AAPL"}})
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Reason)
}

func TestFetchNewsInvalidInput(t *testing.T) {
	env := testServer(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)

	for _, body := range []interface{}{
		map[string]interface{}{"symbols": []string{}},
		map[string]interface{}{"symbols": []string{"AAPL"}, "limit": 0},
	} {
		rec, resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, resp.Reason)
		var out FetchResponse
		decodeData(t, resp, &out)
		assert.Empty(t, out.Articles)
	}
	assert.Zero(t, env.provider.calls)
}

func TestNewsByRange(t *testing.T) {
	env := testServer(t)
	env.ingest(t)
	today := time.Now().UTC().Format("2006-01-02")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/news?start="+today+"&end="+today+"&symbol=aapl&per_page=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.Page
	decodeData(t, resp, &page)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Articles, 1)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/news?start=yesterday&end="+today, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/news?start="+today+"&end="+today+"&page=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchNews(t *testing.T) {
	env := testServer(t)
	env.ingest(t)

	_, resp := env.do(t, http.MethodGet, "/api/v1/news/search?q=EARNINGS", nil)
	var page models.Page
	decodeData(t, resp, &page)
	require.Equal(t, 1, page.Total)
	assert.Contains(t, strings.ToLower(page.Articles[0].Title), "earnings")

	_, resp = env.do(t, http.MethodGet, "/api/v1/news/search?sentiment=negative&symbol=AAPL", nil)
	decodeData(t, resp, &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Apple faces lawsuit", page.Articles[0].Title)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/news/search?sentiment=meh", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSentimentSummary(t *testing.T) {
	env := testServer(t)

	_, resp := env.do(t, http.MethodGet, "/api/v1/news/sentiment", nil)
	var summary models.SentimentSummary
	decodeData(t, resp, &summary)
	assert.Equal(t, models.SentimentSummary{}, summary)

	env.ingest(t)
	today := time.Now().UTC().Format("2006-01-02")
	_, resp = env.do(t, http.MethodGet, "/api/v1/news/sentiment?date="+today+"&symbol=AAPL", nil)
	decodeData(t, resp, &summary)
	assert.Equal(t, 2, summary.TotalArticles)
	assert.Equal(t, 1, summary.Distribution.Positive)
	assert.Equal(t, 1, summary.Distribution.Negative)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/news/sentiment?days=week", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrending(t *testing.T) {
	env := testServer(t)
	env.ingest(t)

	_, resp := env.do(t, http.MethodGet, "/api/v1/news/trending?days=1", nil)
	var topics []models.TopicStat
	decodeData(t, resp, &topics)
	require.NotEmpty(t, topics)
	assert.Equal(t, "apple", topics[0].Topic)
	assert.Equal(t, 2, topics[0].Mentions)
}

func TestConfigEndpoints(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	env := testServer(t)
	env.srv.cfg.Sentiment.AnthropicKey = "sk-ant-secret-value-123"

	_, resp := env.do(t, http.MethodGet, "/api/v1/config", nil)
	raw, _ := json.Marshal(resp.Data)
	assert.NotContains(t, string(raw), "sk-ant-secret-value-123")
	assert.Contains(t, string(raw), "sk-...123")

	_, resp = env.do(t, http.MethodGet, "/api/v1/config/keys", nil)
	var keys []config.KeyStatus
	decodeData(t, resp, &keys)
	require.Len(t, keys, 3)
	assert.True(t, keys[0].IsSet)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad input")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "bad input", resp.Error)
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func TestWebSocketReceivesBatches(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "ping"}))
	var msg WSMessage
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgPong, msg.Type)

	env.ingest(t)

	var event struct {
		Type string     `json:"type"`
		Data BatchEvent `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, MsgNewsBatch, event.Type)
	assert.Equal(t, 2, event.Data.Report.Persisted)
	assert.Len(t, event.Data.Articles, 2)
}

func TestWSHubClose(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 1)}
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BatchCompleted(models.BatchReport{RunID: "r"}, nil)
	msg := <-client.send
	assert.Equal(t, MsgNewsBatch, msg.Type)

	hub.Close()
	hub.Close()
	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, hub.Register(&WSClient{hub: hub, send: make(chan WSMessage)}))
}
