// Package datasource talks to the external market-data and news providers.
// It defines the Verifier and NewsProvider interfaces and implements them for
// Yahoo Finance, Yahoo RSS headlines, the Apify scraping API and SerpApi.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/seenimoa/marketlens/pkg/models"
)

// Verifier confirms that a symbol exists at a live market-data provider.
type Verifier interface {
	Verify(ctx context.Context, symbol string) (models.Verification, error)
}

// NewsProvider fetches raw, loosely structured articles for a set of symbols.
// Every returned article carries a "symbols" field naming the symbols it was
// fetched for.
type NewsProvider interface {
	// Name returns the human-readable provider name.
	Name() string

	// FetchNews returns up to limit articles per call.
	FetchNews(ctx context.Context, symbols []string, limit int) ([]models.RawArticle, error)
}

// --- Sentinel errors ---

// ErrNotSupported is returned when a provider does not support a request.
var ErrNotSupported = fmt.Errorf("operation not supported by this data source")

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = fmt.Errorf("ticker not found")

// ErrNoAPIKey is returned when a provider requires a credential that is not configured.
var ErrNoAPIKey = fmt.Errorf("API key not configured")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is a pre-configured HTTP client with reasonable timeouts.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html, */*")
	return do(client, req, headers)
}

// doPostJSON sends payload as a JSON body and returns the response body.
// The caller is responsible for closing the returned ReadCloser.
func doPostJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) (io.ReadCloser, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return do(client, req, headers)
}

func do(client *http.Client, req *http.Request, headers map[string]string) (io.ReadCloser, int, error) {
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = HTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP %s %s%s: %w", req.Method, req.URL.Host, req.URL.Path, stripURL(err))
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}

// stripURL drops the request URL from a transport error. Some providers
// authenticate with query parameters, and *url.Error prints the full URL.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// tagSymbols records on each article which symbols it was fetched for,
// unless the provider already supplied them.
func tagSymbols(articles []models.RawArticle, symbols []string) {
	for _, a := range articles {
		if a == nil {
			continue
		}
		if len(a.Strings("symbols", "tickers")) == 0 {
			a["symbols"] = append([]string(nil), symbols...)
		}
	}
}

// truncate caps articles at limit (limit <= 0 means no cap).
func truncate(articles []models.RawArticle, limit int) []models.RawArticle {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}

// coalesce returns the first non-empty string.
func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
