// Package sentiment classifies article text into a sentiment label and score.
package sentiment

import (
	"context"
	"math"
	"strings"

	"github.com/seenimoa/marketlens/pkg/models"
)

// ------------------------------------------------------------------
// Keyword-based sentiment scorer (offline, no LLM needed).
// The Anthropic classifier falls back to it when the API is unavailable.
// ------------------------------------------------------------------

// Classifier maps article text to a label and a score in [-1, 1].
type Classifier interface {
	Classify(ctx context.Context, text string) (models.SentimentLabel, float64, error)
}

// Score thresholds separating the three labels.
const (
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
)

// bullish / bearish keyword dictionaries (lowercase).
var bullishWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "surge": 0.7, "soar": 0.7, "upbeat": 0.5,
	"positive": 0.4, "growth": 0.4, "upgrade": 0.6, "outperform": 0.6,
	"buy": 0.5, "strong": 0.4, "recovery": 0.5, "breakout": 0.6,
	"record high": 0.7, "all-time high": 0.7, "beat": 0.5, "gain": 0.4,
	"exceeds": 0.5, "beats estimate": 0.6, "expansion": 0.4,
	"profit": 0.3, "dividend": 0.4, "buyback": 0.5, "jump": 0.5,
}

var bearishWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "slump": 0.6, "tumble": 0.6,
	"negative": 0.4, "downgrade": 0.6, "underperform": 0.6,
	"sell-off": 0.7, "weak": 0.4, "decline": 0.5, "loss": 0.4,
	"selloff": 0.7, "fall": 0.4, "correction": 0.5, "lawsuit": 0.5,
	"default": 0.7, "fraud": 0.8, "scam": 0.8, "investigation": 0.5,
	"layoff": 0.5, "miss": 0.5, "warning": 0.5, "concern": 0.3, "recall": 0.4,
}

// ScoreHeadline returns a sentiment score for a piece of text.
// Score ranges from -1.0 (very bearish) to +1.0 (very bullish).
func ScoreHeadline(headline string) (score float64, confidence float64) {
	lower := strings.ToLower(headline)

	bullScore := 0.0
	bearScore := 0.0
	matches := 0

	for word, weight := range bullishWords {
		if strings.Contains(lower, word) {
			bullScore += weight
			matches++
		}
	}

	for word, weight := range bearishWords {
		if strings.Contains(lower, word) {
			bearScore += weight
			matches++
		}
	}

	if matches == 0 {
		return 0, 0.1 // no signal
	}

	total := bullScore + bearScore
	if total == 0 {
		return 0, 0.1
	}

	// Net score normalized to -1..+1.
	score = (bullScore - bearScore) / total

	// Confidence based on number of keyword matches.
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)

	return score, confidence
}

// LabelFor maps a score onto a label.
func LabelFor(score float64) models.SentimentLabel {
	switch {
	case score > PositiveThreshold:
		return models.SentimentPositive
	case score < NegativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// clampScore forces s into [-1, 1]; NaN becomes 0.
func clampScore(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}

// KeywordClassifier scores text with the keyword dictionaries.
type KeywordClassifier struct{}

// Classify implements Classifier. It never fails.
func (KeywordClassifier) Classify(_ context.Context, text string) (models.SentimentLabel, float64, error) {
	score, _ := ScoreHeadline(text)
	score = clampScore(score)
	return LabelFor(score), score, nil
}
