package news

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/marketlens/internal/datasource"
	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
)

// Client isolates a news provider from the pipeline: invalid input and
// provider failures become empty results, never errors or panics.
type Client struct {
	provider datasource.NewsProvider
	timeout  time.Duration
	logger   *log.Logger
}

// NewClient wraps provider. A positive timeout bounds each fetch.
func NewClient(provider datasource.NewsProvider, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{provider: provider, timeout: timeout, logger: infra.OrNop(logger)}
}

// cleanSymbols trims and upper-cases symbols, dropping blanks and duplicates.
// Exchange prefixes are kept; providers receive the symbol as requested.
func cleanSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Fetch returns raw articles for symbols. Exactly one provider call is made
// per invocation.
func (c *Client) Fetch(ctx context.Context, symbols []string, limit int) (res models.Result[[]models.RawArticle]) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error().Strs("symbols", symbols).Str("panic", fmt.Sprint(p)).Str("stack", string(debug.Stack())).Msg("news fetch panicked")
			res = models.Empty[[]models.RawArticle]("internal error")
		}
	}()

	clean := cleanSymbols(symbols)
	if len(clean) == 0 {
		c.logger.Error().Msg("no symbols provided")
		return models.Empty[[]models.RawArticle]("no symbols provided")
	}
	if limit <= 0 {
		c.logger.Error().Int("limit", limit).Msg("invalid limit")
		return models.Empty[[]models.RawArticle](fmt.Sprintf("invalid limit %d", limit))
	}
	if c.provider == nil {
		return models.Empty[[]models.RawArticle]("no news provider configured")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info().Str("provider", c.provider.Name()).Strs("symbols", clean).Int("limit", limit).Msg("fetching news")
	articles, err := c.provider.FetchNews(ctx, clean, limit)
	if err != nil {
		c.logger.Error().Err(err).Str("provider", c.provider.Name()).Strs("symbols", clean).Msg("news fetch failed")
		return models.Empty[[]models.RawArticle]("provider error: " + c.provider.Name())
	}
	if len(articles) > limit {
		articles = articles[:limit]
	}
	if len(articles) == 0 {
		c.logger.Warn().Strs("symbols", clean).Msg("no articles found")
		return models.Empty[[]models.RawArticle]("no articles found")
	}
	return models.OK(articles)
}
