package triage

import (
	"context"
	"testing"

	"triage_server/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestKeywordSentiment(t *testing.T) {
	tests := []struct {
		body string
		want domain.Sentiment
	}{
		{"love it, thank you", domain.SentimentPositive},
		{"This is TERRIBLE", domain.SentimentNegative},
		{"I love the product but I am frustrated with support", domain.SentimentNegative},
		{"Where is my package?", domain.SentimentNeutral},
		{"", domain.SentimentNeutral},
	}

	c := NewSentimentClassifier(NewLLMSentiment(failingGenerator{}))
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.body))
		})
	}
}

func TestLLMSentimentRequiresExactLabel(t *testing.T) {
	tests := []struct {
		reply string
		body  string
		want  domain.Sentiment
	}{
		{"Negative", "all good", domain.SentimentNegative},
		{"  Positive\n", "awful", domain.SentimentPositive},
		// anything else falls through to keywords
		{"negative", "thank you", domain.SentimentPositive},
		{"Mixed", "hello", domain.SentimentNeutral},
		{"Negative.", "terrible", domain.SentimentNegative},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			c := NewSentimentClassifier(NewLLMSentiment(&scriptedGenerator{reply: tt.reply}))
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.body))
		})
	}
}
