package models

import (
	"strings"
	"time"
)

// SentimentLabel is the categorical output of sentiment classification.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNegative SentimentLabel = "NEGATIVE"
	SentimentNeutral  SentimentLabel = "NEUTRAL"
)

// ParseSentimentLabel maps user input ("positive", "Negative", ...) to a label.
func ParseSentimentLabel(s string) (SentimentLabel, bool) {
	switch SentimentLabel(strings.ToUpper(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNegative:
		return SentimentNegative, true
	case SentimentNeutral:
		return SentimentNeutral, true
	}
	return "", false
}

// AnalyzedArticle is a normalized, sentiment-annotated news article.
// Title, Content and PublishedAt are always set once an article passes analysis.
// ID is assigned by the store on persist.
type AnalyzedArticle struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"           validate:"required"`
	Content        string         `json:"content"         validate:"required"`
	URL            string         `json:"url,omitempty"   validate:"omitempty,url"`
	Source         string         `json:"source,omitempty"`
	PublishedAt    time.Time      `json:"published_at"    validate:"required"`
	Symbols        []string       `json:"symbols"`
	SentimentLabel SentimentLabel `json:"sentiment_label" validate:"oneof=POSITIVE NEGATIVE NEUTRAL"`
	SentimentScore float64        `json:"sentiment_score" validate:"gte=-1,lte=1"`
}

// MissingFields returns the names of required fields that are empty.
func (a *AnalyzedArticle) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(a.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(a.Content) == "" {
		missing = append(missing, "content")
	}
	if a.PublishedAt.IsZero() {
		missing = append(missing, "published_at")
	}
	return missing
}

// SentimentDistribution counts articles per sentiment label.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// SentimentSummary aggregates sentiment over a set of articles.
type SentimentSummary struct {
	TotalArticles    int                   `json:"total_articles"`
	Distribution     SentimentDistribution `json:"sentiment_distribution"`
	AverageSentiment float64               `json:"average_sentiment"`
}

// Summarize aggregates a slice of articles. An empty slice yields the zero summary.
func Summarize(articles []AnalyzedArticle) SentimentSummary {
	var s SentimentSummary
	if len(articles) == 0 {
		return s
	}
	sum := 0.0
	for _, a := range articles {
		switch a.SentimentLabel {
		case SentimentPositive:
			s.Distribution.Positive++
		case SentimentNegative:
			s.Distribution.Negative++
		case SentimentNeutral:
			s.Distribution.Neutral++
		}
		sum += a.SentimentScore
	}
	s.TotalArticles = len(articles)
	s.AverageSentiment = sum / float64(len(articles))
	return s
}

// TopicStat describes one trending term over a trailing window.
type TopicStat struct {
	Topic            string                `json:"topic"`
	Mentions         int                   `json:"mentions"` // number of articles mentioning the topic
	AverageSentiment float64               `json:"average_sentiment"`
	Distribution     SentimentDistribution `json:"sentiment_distribution"`
}

// RangeQuery selects articles published within [From, To).
type RangeQuery struct {
	From    time.Time
	To      time.Time
	Symbol  string
	Page    int
	PerPage int
}

// SearchQuery holds optional search filters; zero values mean "no filter".
type SearchQuery struct {
	Keyword   string
	Symbol    string
	From      time.Time
	To        time.Time
	Sentiment SentimentLabel
	Page      int
	PerPage   int
}

// Page is a single page of articles plus the unpaginated total.
type Page struct {
	Articles   []AnalyzedArticle `json:"articles"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// NewPage builds a Page and derives TotalPages.
func NewPage(articles []AnalyzedArticle, total, page, perPage int) Page {
	if articles == nil {
		articles = []AnalyzedArticle{}
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Page{Articles: articles, Total: total, Page: page, PerPage: perPage, TotalPages: pages}
}

// BatchReport is the accounting of a single fetch-and-analyze pass.
type BatchReport struct {
	RunID     string    `json:"run_id"`
	Symbols   []string  `json:"symbols"`
	Fetched   int       `json:"fetched"`
	Persisted int       `json:"persisted"`
	Dropped   int       `json:"dropped"`
	Rate      float64   `json:"success_rate"` // percentage of fetched articles persisted
	Started   time.Time `json:"started_at"`
	Finished  time.Time `json:"finished_at"`
}

// NewSentimentSummary builds a summary from label counts and the mean score.
func NewSentimentSummary(dist SentimentDistribution, average float64) SentimentSummary {
	total := dist.Positive + dist.Negative + dist.Neutral
	if total == 0 {
		average = 0
	}
	return SentimentSummary{TotalArticles: total, Distribution: dist, AverageSentiment: average}
}

// Paging defaults.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// NormalizePaging clamps a 1-indexed page request to valid values.
func NormalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}
