package triage

import (
	"context"
	"strings"
	"testing"

	"triage_server/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmail(sentiment domain.Sentiment) *domain.Email {
	e := domain.NewEmail(domain.RawEmail{
		Sender:  "john@example.com",
		Subject: "Refund request",
		Body:    "I want my money back for order #42",
	})
	e.Sentiment = sentiment
	e.PriorityScore = 0.725
	return e
}

var testHits = []domain.RetrievalHit{
	{DocID: "faq_01", Title: "Refund Policy", Snippet: "We offer full refunds within 30 days", Score: 0.8123},
	{DocID: "billing_01", Title: "Billing Support", Snippet: "For billing questions", Score: -0.051},
}

func TestDraftFallbackEmpathy(t *testing.T) {
	d := NewReplyDrafter(failingGenerator{})

	for _, s := range []domain.Sentiment{domain.SentimentNegative, domain.SentimentNeutral, domain.SentimentPositive} {
		t.Run(string(s), func(t *testing.T) {
			draft := d.Draft(context.Background(), testEmail(s), testHits)

			assert.Equal(t, s == domain.SentimentNegative, strings.HasPrefix(draft.Text, EmpathyLine))
			assert.Contains(t, draft.Text, "regarding 'Refund request'")
			assert.LessOrEqual(t, draft.Confidence, FallbackConfidence)
			assert.Empty(t, draft.SourcesUsed)
			assert.NotNil(t, draft.SourcesUsed)
			assert.False(t, draft.GeneratedAt.IsZero())
		})
	}
}

func TestDraftFallbackOnMalformedJSON(t *testing.T) {
	d := NewReplyDrafter(&scriptedGenerator{reply: "I'm sorry, I can't do JSON today"})

	draft := d.Draft(context.Background(), testEmail(domain.SentimentNeutral), testHits)
	assert.Equal(t, FallbackConfidence, draft.Confidence)
	assert.False(t, strings.HasPrefix(draft.Text, EmpathyLine))
}

func TestDraftMapsGeneratedReply(t *testing.T) {
	gen := &scriptedGenerator{reply: "```json\n" + `{"reply_text":"Your refund is on its way.","sources_used":["faq_01"],"confidence":0.92,"suggested_action":"send"}` + "\n```"}
	d := NewReplyDrafter(gen)

	draft := d.Draft(context.Background(), testEmail(domain.SentimentNegative), testHits)

	assert.Equal(t, "Your refund is on its way.", draft.Text)
	assert.Equal(t, []string{"faq_01"}, draft.SourcesUsed)
	assert.Equal(t, 0.92, draft.Confidence)
	assert.Equal(t, domain.SuggestSend, draft.SuggestedAction)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, `1) id:faq_01 score:0.81 snippet:"We offer full refunds within 30 days"`)
	assert.Contains(t, prompt, `2) id:billing_01 score:-0.05 snippet:"For billing questions"`)
	assert.Contains(t, prompt, `EMAIL_SUBJECT: "Refund request"`)
	assert.Contains(t, prompt, "- sentiment: Negative")
	assert.Contains(t, prompt, "- priority_score: 0.725")
}

func TestDraftDefaultsMissingFields(t *testing.T) {
	d := NewReplyDrafter(&scriptedGenerator{reply: `{"suggested_action":"archive"}`})

	draft := d.Draft(context.Background(), testEmail(domain.SentimentNeutral), nil)

	assert.Equal(t, DefaultReplyText, draft.Text)
	assert.Equal(t, DefaultReplyConfidence, draft.Confidence)
	assert.Equal(t, []string{}, draft.SourcesUsed)
	assert.Empty(t, draft.SuggestedAction)
}

func TestDraftWithoutGenerator(t *testing.T) {
	draft := NewReplyDrafter(nil).Draft(context.Background(), testEmail(domain.SentimentNegative), nil)
	assert.True(t, strings.HasPrefix(draft.Text, EmpathyLine))
}
