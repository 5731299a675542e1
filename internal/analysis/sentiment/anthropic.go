package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phuslu/log"

	"github.com/seenimoa/marketlens/internal/infra"
	"github.com/seenimoa/marketlens/pkg/models"
)

const systemPrompt = `You are a financial news sentiment classifier.
Read the article and answer with a single JSON object and nothing else:
{"label": "POSITIVE" | "NEGATIVE" | "NEUTRAL", "score": <number between -1 and 1>}
Score is the market sentiment for the companies mentioned: -1 very bearish, 0 neutral, 1 very bullish.`

// maxPromptChars truncates long articles before they are sent to the model.
const maxPromptChars = 6000

// AnthropicClassifier asks a Claude model for the sentiment of an article and
// falls back to another classifier when the call or its answer fails.
type AnthropicClassifier struct {
	client   anthropic.Client
	model    anthropic.Model
	fallback Classifier
	logger   *log.Logger
}

// NewAnthropicClassifier creates a classifier. An empty model selects Claude
// Haiku 4.5; a nil fallback uses KeywordClassifier.
func NewAnthropicClassifier(apiKey, model string, fallback Classifier, logger *log.Logger, opts ...option.RequestOption) *AnthropicClassifier {
	if fallback == nil {
		fallback = KeywordClassifier{}
	}
	m := anthropic.ModelClaudeHaiku4_5
	if model != "" {
		m = anthropic.Model(model)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClassifier{
		client:   anthropic.NewClient(opts...),
		model:    m,
		fallback: fallback,
		logger:   infra.OrNop(logger),
	}
}

// Classify implements Classifier.
func (c *AnthropicClassifier) Classify(ctx context.Context, text string) (models.SentimentLabel, float64, error) {
	label, score, err := c.classify(ctx, text)
	if err == nil {
		return label, score, nil
	}
	c.logger.Warn().Err(err).Msg("llm sentiment failed, using fallback")
	return c.fallback.Classify(ctx, text)
}

func (c *AnthropicClassifier) classify(ctx context.Context, text string) (models.SentimentLabel, float64, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
		for !utf8.ValidString(text) {
			text = text[:len(text)-1]
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 64,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("anthropic API error: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", 0, fmt.Errorf("no response from anthropic")
	}
	return parseVerdict(out.String())
}

// parseVerdict decodes the model's JSON answer, tolerating code fences and
// surrounding prose.
func parseVerdict(content string) (models.SentimentLabel, float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var parsed struct {
		Label string   `json:"label"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", 0, fmt.Errorf("parse sentiment response: %w", err)
	}

	label, ok := models.ParseSentimentLabel(parsed.Label)
	switch {
	case parsed.Score == nil && !ok:
		return "", 0, fmt.Errorf("sentiment response has neither label nor score: %q", content)
	case parsed.Score == nil:
		return label, 0, nil
	}
	score := clampScore(*parsed.Score)
	if !ok {
		label = LabelFor(score)
	}
	return label, score, nil
}

// NewClassifier builds the classifier named by kind ("keyword" or "anthropic").
// Anthropic without a key degrades to keywords.
func NewClassifier(kind, apiKey, model string, logger *log.Logger) Classifier {
	if strings.EqualFold(kind, "anthropic") && apiKey != "" {
		return NewAnthropicClassifier(apiKey, model, KeywordClassifier{}, logger)
	}
	return KeywordClassifier{}
}
