package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/seenimoa/marketlens/pkg/models"
)

// DefaultApifyBaseURL is the Apify platform API root.
const DefaultApifyBaseURL = "https://api.apify.com/v2"

// ApifyNews runs an Apify news-scraping actor synchronously and returns its
// dataset items as raw articles.
type ApifyNews struct {
	baseURL string
	token   string
	actor   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewApifyNews creates an Apify-backed news provider. actor is the actor id or
// "user~name" slug.
func NewApifyNews(baseURL, token, actor string, client *http.Client, limiter *rate.Limiter) *ApifyNews {
	if baseURL == "" {
		baseURL = DefaultApifyBaseURL
	}
	if client == nil {
		client = HTTPClient
	}
	return &ApifyNews{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		actor:   strings.ReplaceAll(actor, "/", "~"),
		client:  client,
		limiter: limiter,
	}
}

// Name returns the data source name.
func (a *ApifyNews) Name() string { return "Apify" }

type apifyInput struct {
	Symbols  []string `json:"symbols"`
	MaxItems int      `json:"maxItems"`
}

// FetchNews makes one synchronous actor run for all symbols.
func (a *ApifyNews) FetchNews(ctx context.Context, symbols []string, limit int) ([]models.RawArticle, error) {
	if a.token == "" {
		return nil, fmt.Errorf("apify: %w", ErrNoAPIKey)
	}
	if a.actor == "" {
		return nil, fmt.Errorf("apify: actor not configured")
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items", a.baseURL, url.PathEscape(a.actor))
	headers := map[string]string{"Authorization": "Bearer " + a.token}

	body, _, err := doPostJSON(ctx, a.client, endpoint, apifyInput{Symbols: symbols, MaxItems: limit}, headers)
	if err != nil {
		return nil, fmt.Errorf("apify run %s: %w", a.actor, err)
	}
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("parse apify dataset: %w", err)
	}

	articles := make([]models.RawArticle, 0, len(items))
	for _, it := range items {
		articles = append(articles, models.RawArticle(it))
	}
	tagSymbols(articles, symbols)
	return truncate(articles, limit), nil
}
