package news

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/go-shiori/go-readability"
	"github.com/phuslu/log"

	"github.com/seenimoa/marketlens/internal/analysis/sentiment"
	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

// Field names tried, in order, when extracting from a raw article.
var (
	titleKeys     = []string{"title", "headline"}
	contentKeys   = []string{"content", "text", "body", "description", "summary", "snippet"}
	htmlKeys      = []string{"html", "raw_html", "content_html"}
	publishedKeys = []string{"published_at", "publishedAt", "published", "pubDate", "date", "datetime", "iso_date", "time"}
	urlKeys       = []string{"url", "link"}
	sourceKeys    = []string{"source.name", "source", "publisher", "site"}
	symbolKeys    = []string{"symbols", "tickers", "symbol"}
)

// Analyzer normalizes raw articles and annotates them with sentiment.
type Analyzer struct {
	classifier sentiment.Classifier
	validate   *validator.Validate
	logger     *log.Logger
}

// NewAnalyzer creates an analyzer. A nil classifier uses keyword scoring.
func NewAnalyzer(classifier sentiment.Classifier, logger *log.Logger) *Analyzer {
	if classifier == nil {
		classifier = sentiment.KeywordClassifier{}
	}
	return &Analyzer{
		classifier: classifier,
		validate:   validator.New(),
		logger:     infra.OrNop(logger),
	}
}

// Analyze returns the normalized article, or nil when raw cannot produce
// one. It never panics.
func (a *Analyzer) Analyze(ctx context.Context, raw models.RawArticle) (out *models.AnalyzedArticle) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.Error().Str("panic", fmt.Sprint(p)).Str("stack", string(debug.Stack())).Msg("article analysis panicked")
			out = nil
		}
	}()

	if raw.IsEmpty() {
		a.logger.Warn().Msg("skipping empty article")
		return nil
	}

	article := &models.AnalyzedArticle{
		Title:   cleanHTML(raw.String(titleKeys...)),
		Content: cleanHTML(raw.String(contentKeys...)),
		URL:     raw.String(urlKeys...),
		Source:  raw.String(sourceKeys...),
		Symbols: normalizeSymbols(raw.Strings(symbolKeys...)),
	}
	if article.Content == "" {
		article.Content = extractReadable(raw.String(htmlKeys...), article.URL)
	}
	if t, ok := raw.Time(publishedKeys...); ok {
		article.PublishedAt = utils.CanonicalTime(t)
	}
	if _, err := url.ParseRequestURI(article.URL); err != nil {
		article.URL = ""
	}

	if missing := article.MissingFields(); len(missing) > 0 {
		a.logger.Warn().Strs("missing", missing).Str("title", article.Title).Msg("article missing required fields")
		return nil
	}

	label, score, err := a.classifier.Classify(ctx, article.Title+". "+article.Content)
	if err != nil {
		a.logger.Warn().Err(err).Str("title", article.Title).Msg("sentiment classification failed")
		return nil
	}
	article.SentimentLabel = label
	article.SentimentScore = score

	if err := a.validate.Struct(article); err != nil {
		a.logger.Warn().Err(err).Str("title", article.Title).Msg("article failed validation")
		return nil
	}
	return article
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// extractReadable pulls the main text out of a full HTML page.
func extractReadable(html, pageURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	u, _ := url.Parse(pageURL)
	doc, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.TextContent), " ")
}

// normalizeSymbols converts symbols to their canonical stored form and
// de-duplicates them.
func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = utils.CanonicalSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
