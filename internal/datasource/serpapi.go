package datasource

import (
	"context"
	"fmt"
	"strings"

	g "github.com/serpapi/google-search-results-golang"
	"golang.org/x/time/rate"

	"github.com/seenimoa/marketlens/pkg/models"
)

// searchFunc runs one SerpApi query and returns the decoded JSON response.
type searchFunc func(params map[string]string, apiKey string) (map[string]any, error)

func serpSearch(params map[string]string, apiKey string) (map[string]any, error) {
	search := g.NewGoogleSearch(params, apiKey)
	results, err := search.GetJSON()
	if err != nil {
		return nil, stripURL(err)
	}
	return map[string]any(results), nil
}

// SerpNews fetches Google News results through SerpApi, one query per symbol.
type SerpNews struct {
	apiKey  string
	limiter *rate.Limiter
	search  searchFunc
}

// NewSerpNews creates a SerpApi-backed news provider.
func NewSerpNews(apiKey string, limiter *rate.Limiter) *SerpNews {
	return &SerpNews{apiKey: apiKey, limiter: limiter, search: serpSearch}
}

// Name returns the data source name.
func (s *SerpNews) Name() string { return "SerpApi Google News" }

// FetchNews queries google_news for each symbol. Failing queries are skipped
// unless every query fails.
func (s *SerpNews) FetchNews(ctx context.Context, symbols []string, limit int) ([]models.RawArticle, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serpapi: %w", ErrNoAPIKey)
	}

	var (
		all     []models.RawArticle
		lastErr error
	)
	for _, sym := range symbols {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := map[string]string{
			"engine": "google_news",
			"q":      sym + " stock",
			"gl":     "us",
			"hl":     "en",
		}
		results, err := s.search(params, s.apiKey)
		if err != nil {
			lastErr = fmt.Errorf("serpapi search %s: %w", sym, err)
			continue
		}
		all = append(all, serpArticles(results, sym)...)
	}

	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return truncate(all, limit), nil
}

// serpArticles maps the news_results node to raw articles.
func serpArticles(results map[string]any, symbol string) []models.RawArticle {
	items, ok := results["news_results"].([]interface{})
	if !ok {
		return nil
	}

	var out []models.RawArticle
	for _, item := range items {
		res, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		a := models.RawArticle(res)
		if a.String("title") == "" {
			continue
		}
		if link := a.String("link"); link != "" {
			a["url"] = link
		}
		if src := a.String("source.name", "source"); src != "" {
			a["source"] = src
		}
		if a.String("content") == "" {
			a["content"] = strings.TrimSpace(a.String("snippet"))
		}
		if date := a.String("iso_date", "date"); date != "" {
			a["published_at"] = date
		}
		a["symbols"] = []string{symbol}
		out = append(out, a)
	}
	return out
}
