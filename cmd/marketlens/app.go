package main

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/seenimoa/marketlens/internal/analysis/sentiment"
	"github.com/seenimoa/marketlens/internal/catalog"
	"github.com/seenimoa/marketlens/internal/config"
	"github.com/seenimoa/marketlens/internal/datasource"
	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/internal/news"
	"github.com/seenimoa/marketlens/internal/resolver"
	"github.com/seenimoa/marketlens/internal/store"
)

// app holds the components built from the configuration. Fields are
// created on first use so that each command opens only what it needs.
type app struct {
	cfg    *config.Config
	logger *log.Logger

	kv      infra.KV
	store   *store.Store
	service *news.Service
}

func newApp(cfg *config.Config, logger *log.Logger) *app {
	return &app{cfg: cfg, logger: logger}
}

// Close releases every component that was opened.
func (a *app) Close() {
	if a.service != nil {
		a.service.Close()
	} else if a.store != nil {
		_ = a.store.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}

// cache returns Redis when configured, otherwise an in-process cache.
func (a *app) cache(ctx context.Context) infra.KV {
	if a.kv != nil {
		return a.kv
	}
	if a.cfg.Redis.URL != "" {
		kv, err := infra.NewRedisKV(ctx, a.cfg.Redis.URL, a.cfg.Redis.Prefix)
		if err == nil {
			a.kv = kv
			return kv
		}
		a.logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	}
	a.kv = infra.NewMemoryKV()
	return a.kv
}

// resolver builds the ticker resolver: local catalog plus cached Yahoo
// verification.
func (a *app) resolver(ctx context.Context) (*resolver.Resolver, error) {
	cat := catalog.New(nil)
	if path := a.cfg.Resolver.CatalogPath; path != "" {
		loaded, err := catalog.Load(path)
		if err != nil {
			return nil, err
		}
		cat = loaded
		a.logger.Info().Str("path", path).Int("entries", cat.Len()).Msg("ticker catalog loaded")
	}

	var verifier datasource.Verifier = datasource.NewYahooVerifier(
		a.cfg.Resolver.YahooURL, nil, infra.NewLimiter(a.cfg.Resolver.RatePerSec, 1))
	if ttl := a.cfg.Resolver.CacheTTL(); ttl > 0 {
		verifier = resolver.NewCachedVerifier(verifier, a.cache(ctx), ttl)
	}

	return resolver.New(cat, verifier,
		resolver.WithVerifyTimeout(a.cfg.Resolver.VerifyTimeout()),
		resolver.WithLogger(a.logger),
	), nil
}

// openStore opens the article database and creates its tables.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.Open(ctx, a.cfg.Storage.Driver, a.cfg.Storage.DSN, a.logger)
	if err != nil {
		return nil, err
	}
	if err := st.InitializeTables(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	a.store = st
	return st, nil
}

// newsService wires provider, analyzer and store into the pipeline.
func (a *app) newsService(ctx context.Context, opts ...news.ServiceOption) (*news.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	provider, err := newProvider(a.cfg)
	if err != nil {
		return nil, err
	}
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	classifier := sentiment.NewClassifier(a.cfg.Sentiment.Classifier, a.cfg.Sentiment.AnthropicKey, a.cfg.Sentiment.Model, a.logger)
	opts = append([]news.ServiceOption{
		news.WithWorkers(a.cfg.News.Workers),
		news.WithServiceLogger(a.logger),
	}, opts...)

	a.service = news.NewService(
		news.NewClient(provider, a.cfg.News.Timeout(), a.logger),
		news.NewAnalyzer(classifier, a.logger),
		st,
		opts...,
	)
	return a.service, nil
}

// newProvider selects the news provider named in the configuration.
func newProvider(cfg *config.Config) (datasource.NewsProvider, error) {
	limiter := infra.NewLimiter(cfg.News.RatePerSec, 1)
	switch cfg.News.Provider {
	case "", "rss":
		return datasource.NewRSSNews(cfg.News.RSS.FeedURL, nil, limiter), nil
	case "apify":
		if cfg.News.Apify.Token == "" {
			return nil, fmt.Errorf("apify provider: %w", datasource.ErrNoAPIKey)
		}
		return datasource.NewApifyNews(cfg.News.Apify.BaseURL, cfg.News.Apify.Token, cfg.News.Apify.Actor, nil, limiter), nil
	case "serpapi":
		if cfg.News.SerpAPI.Key == "" {
			return nil, fmt.Errorf("serpapi provider: %w", datasource.ErrNoAPIKey)
		}
		return datasource.NewSerpNews(cfg.News.SerpAPI.Key, limiter), nil
	default:
		return nil, fmt.Errorf("unknown news provider %q", cfg.News.Provider)
	}
}
