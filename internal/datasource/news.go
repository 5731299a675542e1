package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/seenimoa/marketlens/pkg/models"
)

// DefaultRSSFeedURL is the Yahoo Finance per-symbol headline feed. %s is the
// query-escaped symbol.
const DefaultRSSFeedURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"

// RSSNews fetches per-symbol headlines from an RSS feed.
type RSSNews struct {
	feedURL string
	limiter *rate.Limiter
	parser  *gofeed.Parser
}

// NewRSSNews creates an RSS news provider. feedURL must contain one %s verb
// for the symbol; empty uses DefaultRSSFeedURL.
func NewRSSNews(feedURL string, client *http.Client, limiter *rate.Limiter) *RSSNews {
	if feedURL == "" {
		feedURL = DefaultRSSFeedURL
	}
	if client == nil {
		client = HTTPClient
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = DefaultUserAgent
	return &RSSNews{
		feedURL: feedURL,
		limiter: limiter,
		parser:  parser,
	}
}

// Name returns the data source name.
func (n *RSSNews) Name() string { return "Yahoo RSS" }

// FetchNews reads the feed of every symbol, merges items that share a link
// and returns the newest limit articles. Failing feeds are skipped; an error
// is returned only when every feed failed.
func (n *RSSNews) FetchNews(ctx context.Context, symbols []string, limit int) ([]models.RawArticle, error) {
	var (
		all    []models.RawArticle
		byLink = make(map[string]models.RawArticle)
		errs   []error
	)

	for _, sym := range symbols {
		items, err := n.fetchFeed(ctx, sym)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, a := range items {
			link := a.String("url")
			if prev, ok := byLink[link]; ok && link != "" {
				prev["symbols"] = appendUnique(prev.Strings("symbols"), sym)
				continue
			}
			if link != "" {
				byLink[link] = a
			}
			all = append(all, a)
		}
	}

	if len(all) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sortArticlesByDate(all)
	return truncate(all, limit), nil
}

// fetchFeed parses one symbol's feed.
func (n *RSSNews) fetchFeed(ctx context.Context, symbol string) ([]models.RawArticle, error) {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	feedURL := fmt.Sprintf(n.feedURL, url.QueryEscape(symbol))
	feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", symbol, err)
	}

	source := strings.TrimSpace(feed.Title)
	articles := make([]models.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.RawArticle{
			"title":       item.Title,
			"description": item.Description,
			"content":     item.Content,
			"url":         item.Link,
			"source":      source,
			"symbols":     []string{symbol},
		}
		if item.PublishedParsed != nil {
			a["published_at"] = *item.PublishedParsed
		} else if item.Published != "" {
			a["published_at"] = item.Published
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// sortArticlesByDate sorts articles by published date (newest first).
// Articles without a parseable date sort last.
func sortArticlesByDate(articles []models.RawArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti, _ := articles[i].Time("published_at")
		tj, _ := articles[j].Time("published_at")
		return ti.After(tj)
	})
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return list
		}
	}
	return append(list, v)
}
