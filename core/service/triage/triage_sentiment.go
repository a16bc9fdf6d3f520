package triage

import (
	"context"
	"fmt"
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
)

type SentimentStrategy interface {
	Classify(ctx context.Context, body string) (domain.Sentiment, error)
}

type LLMSentiment struct {
	gen out.Generator
}

func NewLLMSentiment(gen out.Generator) *LLMSentiment {
	return &LLMSentiment{gen: gen}
}

const sentimentPrompt = `Analyze the sentiment of this email. Respond with only one word: Positive, Neutral, or Negative.

Email: %s`

// Classify accepts only an exact, case-sensitive label.
func (s *LLMSentiment) Classify(ctx context.Context, body string) (domain.Sentiment, error) {
	resp, err := s.gen.Generate(ctx, fmt.Sprintf(sentimentPrompt, body), 0, 10)
	if err != nil {
		return "", err
	}
	label := domain.Sentiment(strings.TrimSpace(resp))
	if !label.IsValid() {
		return "", fmt.Errorf("%w: unexpected sentiment label %q", out.ErrGeneration, resp)
	}
	return label, nil
}

var (
	negativeCues = []string{"angry", "frustrated", "terrible", "awful", "hate", "disappointed", "complaint"}
	positiveCues = []string{"great", "excellent", "love", "amazing", "wonderful", "perfect", "thank"}
)

// KeywordSentiment: negative cues win over positive cues, otherwise Neutral.
type KeywordSentiment struct{}

func (KeywordSentiment) Classify(_ context.Context, body string) (domain.Sentiment, error) {
	return keywordSentiment(body), nil
}

func keywordSentiment(body string) domain.Sentiment {
	text := strings.ToLower(body)
	if containsAny(text, negativeCues) {
		return domain.SentimentNegative
	}
	if containsAny(text, positiveCues) {
		return domain.SentimentPositive
	}
	return domain.SentimentNeutral
}

type SentimentClassifier struct {
	primary SentimentStrategy
}

// NewSentimentClassifier composes primary with the keyword fallback. primary may be nil.
func NewSentimentClassifier(primary SentimentStrategy) *SentimentClassifier {
	return &SentimentClassifier{primary: primary}
}

func (c *SentimentClassifier) Classify(ctx context.Context, body string) domain.Sentiment {
	if c.primary != nil {
		label, err := c.primary.Classify(ctx, body)
		if err == nil {
			return label
		}
		logger.WithError(err).WithField("component", "sentiment").Warn("generative sentiment failed, using keywords")
	}
	return keywordSentiment(body)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
