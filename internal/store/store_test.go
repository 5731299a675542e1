package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketlens/internal/news"
	"github.com/seenimoa/marketlens/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "news.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.InitializeTables(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d, h int) time.Time {
	return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC)
}

func article(title, content string, published time.Time, label models.SentimentLabel, score float64, symbols ...string) *models.AnalyzedArticle {
	return &models.AnalyzedArticle{
		Title:          title,
		Content:        content,
		URL:            "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Source:         "Example Wire",
		PublishedAt:    published,
		Symbols:        symbols,
		SentimentLabel: label,
		SentimentScore: score,
	}
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, a := range []*models.AnalyzedArticle{
		article("Apple earnings beat estimates", "Revenue grew strongly", day(1, 10), models.SentimentPositive, 0.8, "AAPL"),
		article("Microsoft cloud growth slows", "Azure decelerates", day(1, 14), models.SentimentNegative, -0.4, "MSFT"),
		article("Apple and Microsoft partner on AI", "Joint announcement", day(2, 9), models.SentimentNeutral, 0.0, "AAPL", "MSFT"),
		article("Tesla deliveries surge", "Quarterly EARNINGS preview", day(3, 16), models.SentimentPositive, 0.6, "TSLA"),
		article("Bank fined 100% of profits", "Regulator action", day(5, 12), models.SentimentNegative, -0.9),
	} {
		_, err := s.Save(ctx, a)
		require.NoError(t, err)
	}
}

func TestInitializeTablesIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InitializeTables(context.Background()))
	require.NoError(t, s.InitializeTables(context.Background()))
	assert.Equal(t, "sqlite", s.Driver())
}

func TestSaveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := article("Nvidia hits record", "Chips rally", day(4, 8), models.SentimentPositive, 0.75, "NVDA", "AMD")
	id, err := s.Save(ctx, in)
	require.NoError(t, err)
	require.Positive(t, id)

	for i := 0; i < 2; i++ {
		got, total, err := s.QueryByRange(ctx, models.RangeQuery{From: day(4, 0), To: day(5, 0), Page: 1, PerPage: 20})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, got, 1)

		a := got[0]
		assert.Equal(t, id, a.ID)
		assert.Equal(t, in.Title, a.Title)
		assert.Equal(t, in.Content, a.Content)
		assert.Equal(t, in.URL, a.URL)
		assert.Equal(t, in.Source, a.Source)
		assert.True(t, in.PublishedAt.Equal(a.PublishedAt))
		assert.Equal(t, []string{"NVDA", "AMD"}, a.Symbols)
		assert.Equal(t, in.SentimentLabel, a.SentimentLabel)
		assert.Equal(t, in.SentimentScore, a.SentimentScore)
	}
}

func TestSaveDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := article("Same story", "body", day(1, 1), models.SentimentNeutral, 0)
	_, err := s.Save(ctx, a)
	require.NoError(t, err)

	_, err = s.Save(ctx, a)
	assert.ErrorIs(t, err, news.ErrDuplicate)

	_, total, err := s.QueryByRange(ctx, models.RangeQuery{From: day(1, 0), To: day(2, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestQueryByRange(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	got, total, err := s.QueryByRange(ctx, models.RangeQuery{From: day(1, 0), To: day(3, 0)})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, got, 3)
	assert.Equal(t, "Apple and Microsoft partner on AI", got[0].Title, "newest first")

	got, total, err = s.QueryByRange(ctx, models.RangeQuery{From: day(1, 0), To: day(6, 0), Symbol: "msft"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, a := range got {
		assert.Contains(t, a.Symbols, "MSFT")
	}

	got, total, err = s.QueryByRange(ctx, models.RangeQuery{From: day(1, 0), To: day(6, 0), Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total, "total is independent of page size")
	assert.Len(t, got, 2)

	got, total, err = s.QueryByRange(ctx, models.RangeQuery{From: day(20, 0), To: day(21, 0)})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, got)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	got, total, err := s.Search(ctx, models.SearchQuery{Keyword: "earnings"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, a := range got {
		text := strings.ToLower(a.Title + " " + a.Content)
		assert.Contains(t, text, "earnings")
	}

	got, total, err = s.Search(ctx, models.SearchQuery{Keyword: "earnings", Sentiment: models.SentimentPositive, Symbol: "TSLA"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Tesla deliveries surge", got[0].Title)

	_, total, err = s.Search(ctx, models.SearchQuery{Keyword: "100%"})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "wildcards in keywords are literal")

	_, total, err = s.Search(ctx, models.SearchQuery{Keyword: "%"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = s.Search(ctx, models.SearchQuery{From: day(2, 0), To: day(4, 0)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = s.Search(ctx, models.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestSentimentSummary(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	sum, err := s.SentimentSummary(ctx, day(1, 0), day(6, 0), "")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TotalArticles)
	assert.Equal(t, models.SentimentDistribution{Positive: 2, Negative: 2, Neutral: 1}, sum.Distribution)
	assert.InDelta(t, 0.02, sum.AverageSentiment, 1e-9)

	daily, err := s.DailySentimentSummary(ctx, day(1, 23), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, daily.TotalArticles)
	assert.InDelta(t, 0.8, daily.AverageSentiment, 1e-9)

	empty, err := s.SentimentSummary(ctx, day(20, 0), day(21, 0), "")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentSummary{}, empty)
}

func TestTrendingTopics(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	topics, err := s.TrendingTopics(context.Background(), day(1, 0), day(6, 0), 3)
	require.NoError(t, err)
	require.Len(t, topics, 3)

	assert.Equal(t, "apple", topics[0].Topic)
	assert.Equal(t, 2, topics[0].Mentions)
	assert.InDelta(t, 0.4, topics[0].AverageSentiment, 1e-9)
	assert.Equal(t, "microsoft", topics[1].Topic)
	assert.Equal(t, 2, topics[1].Mentions)
	assert.Equal(t, 1, topics[2].Mentions)
}

func TestTopicTerms(t *testing.T) {
	assert.Equal(t, []string{"apple", "earnings", "beat"}, topicTerms("Apple earnings: the beat, Apple 2026"))
	assert.Empty(t, topicTerms("The and of it"))
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "x.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, _, err = s.QueryByRange(context.Background(), models.RangeQuery{})
	assert.Error(t, err)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", nil)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", postgresDialect.rebind("a = ? AND b IN (?, ?)"))
	assert.Equal(t, "a = ?", sqliteDialect.rebind("a = ?"))
}

func TestFingerprint(t *testing.T) {
	a := &models.AnalyzedArticle{Title: "T", URL: "https://Example.com/x"}
	b := &models.AnalyzedArticle{Title: "Other", URL: "https://example.com/x"}
	assert.Equal(t, fingerprint(a), fingerprint(b))

	c := &models.AnalyzedArticle{Title: "T", PublishedAt: day(1, 0)}
	d := &models.AnalyzedArticle{Title: "T", PublishedAt: day(1, 1)}
	assert.NotEqual(t, fingerprint(c), fingerprint(d))
}

type staticProvider struct {
	mu       sync.Mutex
	articles []models.RawArticle
	symbols  []string
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) FetchNews(_ context.Context, symbols []string, _ int) ([]models.RawArticle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols = symbols
	return p.articles, nil
}

func TestExchangePrefixedSymbolRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	provider := &staticProvider{articles: []models.RawArticle{{
		"title":        "Alphabet earnings beat estimates",
		"content":      "Search revenue grew strongly",
		"url":          "https://example.com/alphabet-earnings",
		"published_at": now.Format(time.RFC3339),
		"symbols":      []any{"NASDAQ:GOOGL"},
	}}}
	svc := news.NewService(news.NewClient(provider, time.Second, nil), news.NewAnalyzer(nil, nil), s)

	res := svc.FetchAndAnalyze(ctx, []string{"NASDAQ:GOOGL"}, 5)
	require.False(t, res.Failed(), res.Reason)
	require.Len(t, res.Value, 1)
	assert.Equal(t, []string{"GOOGL"}, res.Value[0].Symbols)
	assert.Equal(t, []string{"NASDAQ:GOOGL"}, provider.symbols)

	for _, sym := range []string{"NASDAQ:GOOGL", "googl", " nasdaq:googl "} {
		page := svc.GetNewsByDateRange(ctx, now, now, sym, 1, 10)
		require.False(t, page.Failed(), page.Reason)
		assert.Equal(t, 1, page.Value.Total, "range query for %q", sym)

		found := svc.SearchNews(ctx, models.SearchQuery{Keyword: "earnings", Symbol: sym})
		require.False(t, found.Failed(), found.Reason)
		assert.Equal(t, 1, found.Value.Total, "search for %q", sym)

		summary := svc.GetSentimentSummary(ctx, time.Time{}, sym, 7)
		require.False(t, summary.Failed(), summary.Reason)
		assert.Equal(t, 1, summary.Value.TotalArticles, "summary for %q", sym)
	}

	rows, total, err := s.QueryByRange(ctx, models.RangeQuery{Symbol: "NASDAQ:GOOGL", Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"GOOGL"}, rows[0].Symbols)
}
