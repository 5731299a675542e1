package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/seenimoa/marketlens/pkg/models"
	"github.com/seenimoa/marketlens/pkg/utils"
)

// SentimentSummary aggregates articles published in [from, to), optionally
// restricted to one symbol. No matching articles yields the zero summary.
func (s *Store) SentimentSummary(ctx context.Context, from, to time.Time, symbol string) (models.SentimentSummary, error) {
	var f filter
	f.window(from, to)
	f.symbol(symbol)

	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT a.sentiment_label, COUNT(*), COALESCE(SUM(a.sentiment_score), 0) FROM news_articles a"+
			f.where()+" GROUP BY a.sentiment_label"), f.args...)
	if err != nil {
		return models.SentimentSummary{}, fmt.Errorf("sentiment summary: %w", err)
	}
	defer rows.Close()

	var (
		dist  models.SentimentDistribution
		total int
		sum   float64
	)
	for rows.Next() {
		var (
			label string
			count int
			score float64
		)
		if err := rows.Scan(&label, &count, &score); err != nil {
			return models.SentimentSummary{}, fmt.Errorf("scan sentiment summary: %w", err)
		}
		switch models.SentimentLabel(label) {
		case models.SentimentPositive:
			dist.Positive += count
		case models.SentimentNegative:
			dist.Negative += count
		case models.SentimentNeutral:
			dist.Neutral += count
		default:
			continue
		}
		total += count
		sum += score
	}
	if err := rows.Err(); err != nil {
		return models.SentimentSummary{}, fmt.Errorf("iterate sentiment summary: %w", err)
	}

	avg := 0.0
	if total > 0 {
		avg = sum / float64(total)
	}
	return models.NewSentimentSummary(dist, avg), nil
}

// DailySentimentSummary aggregates the calendar day (UTC) containing day.
func (s *Store) DailySentimentSummary(ctx context.Context, day time.Time, symbol string) (models.SentimentSummary, error) {
	from := utils.DayStart(day)
	return s.SentimentSummary(ctx, from, from.AddDate(0, 0, 1), symbol)
}

// stopwords are ignored when extracting topics from titles.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"this": true, "are": true, "was": true, "were": true, "will": true, "has": true,
	"have": true, "had": true, "its": true, "into": true, "over": true, "after": true,
	"before": true, "about": true, "amid": true, "than": true, "more": true, "less": true,
	"new": true, "says": true, "said": true, "say": true, "why": true, "how": true,
	"what": true, "who": true, "when": true, "where": true, "you": true, "your": true,
	"not": true, "but": true, "can": true, "could": true, "would": true, "should": true,
	"may": true, "might": true, "all": true, "out": true, "off": true, "per": true,
	"week": true, "today": true, "year": true, "stock": true, "stocks": true, "shares": true,
	"market": true, "markets": true, "here": true, "now": true, "his": true, "her": true,
	"they": true, "their": true, "them": true, "our": true, "via": true, "just": true,
}

// topicTerms returns the distinct candidate topics of a title.
func topicTerms(title string) []string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if len([]rune(w)) < 3 || stopwords[w] || seen[w] || isNumeric(w) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TrendingTopics ranks title terms of articles published in [from, to) by
// the number of articles mentioning them, breaking ties alphabetically.
func (s *Store) TrendingTopics(ctx context.Context, from, to time.Time, limit int) ([]models.TopicStat, error) {
	var f filter
	f.window(from, to)

	rows, err := s.db.QueryContext(ctx, s.q(
		"SELECT a.title, a.sentiment_label, a.sentiment_score FROM news_articles a"+f.where()), f.args...)
	if err != nil {
		return nil, fmt.Errorf("trending topics: %w", err)
	}
	defer rows.Close()

	type acc struct {
		stat models.TopicStat
		sum  float64
	}
	topics := make(map[string]*acc)
	for rows.Next() {
		var (
			title, label string
			score        float64
		)
		if err := rows.Scan(&title, &label, &score); err != nil {
			return nil, fmt.Errorf("scan trending topics: %w", err)
		}
		for _, term := range topicTerms(title) {
			t, ok := topics[term]
			if !ok {
				t = &acc{stat: models.TopicStat{Topic: term}}
				topics[term] = t
			}
			t.stat.Mentions++
			t.sum += score
			switch models.SentimentLabel(label) {
			case models.SentimentPositive:
				t.stat.Distribution.Positive++
			case models.SentimentNegative:
				t.stat.Distribution.Negative++
			default:
				t.stat.Distribution.Neutral++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trending topics: %w", err)
	}

	out := make([]models.TopicStat, 0, len(topics))
	for _, t := range topics {
		t.stat.AverageSentiment = t.sum / float64(t.stat.Mentions)
		out = append(out, t.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Topic < out[j].Topic
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
