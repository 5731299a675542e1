package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketlens/internal/config"
	"github.com/seenimoa/marketlens/internal/datasource"
	"github.com/seenimoa/marketlens/internal/infra"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		news    config.NewsConfig
		want    string
		wantErr error
	}{
		{"default", config.NewsConfig{}, "Yahoo RSS", nil},
		{"rss", config.NewsConfig{Provider: "rss"}, "Yahoo RSS", nil},
		{"apify", config.NewsConfig{Provider: "apify", Apify: config.ApifyConfig{Token: "t", Actor: "me/news"}}, "Apify", nil},
		{"apify without token", config.NewsConfig{Provider: "apify"}, "", datasource.ErrNoAPIKey},
		{"serpapi", config.NewsConfig{Provider: "serpapi", SerpAPI: config.SerpAPIConfig{Key: "k"}}, "SerpApi Google News", nil},
		{"serpapi without key", config.NewsConfig{Provider: "serpapi"}, "", datasource.ErrNoAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newProvider(&config.Config{News: tt.news})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	_, err := newProvider(&config.Config{News: config.NewsConfig{Provider: "telex"}})
	assert.Error(t, err)
}

func TestAppWiring(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage = config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "db", "news.db")}
	cfg.Resolver = config.ResolverConfig{VerifyTimeoutSec: 1, CacheTTLSec: 60}
	cfg.News = config.NewsConfig{Provider: "rss", TimeoutSec: 1, Workers: 2}
	cfg.Sentiment.Classifier = "keyword"

	a := newApp(cfg, infra.NopLogger())
	defer a.Close()
	ctx := context.Background()

	svc, err := a.newsService(ctx)
	require.NoError(t, err)
	again, err := a.newsService(ctx)
	require.NoError(t, err)
	assert.Same(t, svc, again)

	r, err := a.resolver(ctx)
	require.NoError(t, err)
	assert.NotNil(t, r)
	_, isMemory := a.kv.(*infra.MemoryKV)
	assert.True(t, isMemory)

	summary := svc.GetSentimentSummary(ctx, time.Time{}, "", 7)
	assert.False(t, summary.Failed())
	assert.Zero(t, summary.Value.TotalArticles)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, splitSymbols([]string{"AAPL,MSFT", " TSLA "}))
	assert.Nil(t, splitSymbols([]string{" , "}))
}
