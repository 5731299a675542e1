package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/seenimoa/marketlens/pkg/models"
)

// DefaultYahooBaseURL is the Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooVerifier confirms symbols against the Yahoo Finance quote API.
type YahooVerifier struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewYahooVerifier creates a verifier. An empty baseURL uses DefaultYahooBaseURL;
// a nil client uses HTTPClient; a nil limiter disables rate limiting.
func NewYahooVerifier(baseURL string, client *http.Client, limiter *rate.Limiter) *YahooVerifier {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if client == nil {
		client = HTTPClient
	}
	return &YahooVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: limiter,
	}
}

// Name returns the data source name.
func (y *YahooVerifier) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v7 API types ---

type yfQuoteResponse struct {
	QuoteResponse struct {
		Result []yfQuoteResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"quoteResponse"`
}

type yfQuoteResult struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
	QuoteType string `json:"quoteType"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Verify looks symbol up at Yahoo Finance. An unknown symbol is reported as
// Found=false with a nil error; transport and API failures return an error.
func (y *YahooVerifier) Verify(ctx context.Context, symbol string) (models.Verification, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return models.Verification{}, nil
	}

	if y.limiter != nil {
		if err := y.limiter.Wait(ctx); err != nil {
			return models.Verification{}, err
		}
	}

	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", y.baseURL, url.QueryEscape(symbol))
	body, _, err := doGet(ctx, y.client, u, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return models.Verification{}, fmt.Errorf("yfinance quote %s: %w", symbol, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return models.Verification{}, fmt.Errorf("read response: %w", err)
	}

	var resp yfQuoteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.Verification{}, fmt.Errorf("parse yfinance quote: %w", err)
	}
	if resp.QuoteResponse.Error != nil {
		return models.Verification{}, fmt.Errorf("yfinance API error: %s", resp.QuoteResponse.Error.Description)
	}

	for _, r := range resp.QuoteResponse.Result {
		if !strings.EqualFold(r.Symbol, symbol) {
			continue
		}
		return models.Verification{
			Found:     true,
			Name:      coalesce(r.LongName, r.ShortName, symbol),
			QuoteType: r.QuoteType,
		}, nil
	}
	return models.Verification{}, nil
}
