package triage

import (
	"context"
	"strings"
	"testing"

	"triage_server/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFallbackExtractor() *FieldExtractor {
	return NewFieldExtractor(NewLLMExtractor(failingGenerator{}), NewHeuristicExtractor(config.DefaultExtractionUrgencyKeywords))
}

func TestHeuristicExtraction(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantPhone string
		wantEmail string
		wantOrder string
		wantUrg   []string
	}{
		{
			name:      "local phone",
			body:      "Call me at 555-0123 right now",
			wantPhone: "555-0123",
			wantUrg:   []string{"now"},
		},
		{
			name:      "long phone with country code",
			body:      "My alternate email is john.backup@gmail.com and phone is +1 555 123 4567. Order #12345 is URGENT, blocked!",
			wantPhone: "+1 555 123 4567",
			wantEmail: "john.backup@gmail.com",
			wantOrder: "12345",
			wantUrg:   []string{"urgent", "blocked"},
		},
		{
			name:      "order without hash",
			body:      "about ORDER abc99 please",
			wantOrder: "abc99",
			wantUrg:   []string{},
		},
		{
			name:    "nothing",
			body:    "hello there",
			wantUrg: []string{},
		},
	}

	ex := newFallbackExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Extract(context.Background(), tt.body)

			require.NotNil(t, got.RequestedAction)
			assert.Equal(t, ManualReviewAction, *got.RequestedAction)
			assert.Equal(t, tt.wantUrg, got.UrgencyKeywords)

			assertOptional(t, tt.wantPhone, got.Phone)
			assertOptional(t, tt.wantEmail, got.AltEmail)
			assertOptional(t, tt.wantOrder, got.OrderID)
		})
	}
}

func assertOptional(t *testing.T, want string, got *string) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestHeuristicExtractionIsTotal(t *testing.T) {
	ex := newFallbackExtractor()
	bodies := []string{
		"",
		"   ",
		strings.Repeat("order # ", 1000),
		"\x00\xff invalid utf8",
		"((((((((((555",
		"@@@@.com",
	}
	for _, b := range bodies {
		assert.NotPanics(t, func() {
			got := ex.Extract(context.Background(), b)
			assert.NotNil(t, got.UrgencyKeywords)
			assert.NotNil(t, got.RequestedAction)
		})
	}
}

func TestLLMExtractionParsesFencedJSON(t *testing.T) {
	gen := &scriptedGenerator{reply: "```json\n" + `{"phone":"555-111-2222","alt_email":null,"requested_action":"refund","order_id":"A1","urgency_keywords":null}` + "\n```"}
	ex := NewFieldExtractor(NewLLMExtractor(gen), NewHeuristicExtractor(nil))

	got := ex.Extract(context.Background(), "body")

	assertOptional(t, "555-111-2222", got.Phone)
	assertOptional(t, "refund", got.RequestedAction)
	assertOptional(t, "A1", got.OrderID)
	assert.Nil(t, got.AltEmail)
	assert.Equal(t, []string{}, got.UrgencyKeywords)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `EMAIL_TEXT: """body"""`)
}

func TestLLMExtractionMalformedFallsBack(t *testing.T) {
	gen := &scriptedGenerator{reply: "Sure! Here is the data: phone 555-0123"}
	ex := NewFieldExtractor(NewLLMExtractor(gen), NewHeuristicExtractor(config.DefaultExtractionUrgencyKeywords))

	got := ex.Extract(context.Background(), "reach me at 555-0123 asap")

	assertOptional(t, "555-0123", got.Phone)
	assertOptional(t, ManualReviewAction, got.RequestedAction)
	assert.Equal(t, []string{"asap"}, got.UrgencyKeywords)
}

func TestExtractorWithoutPrimary(t *testing.T) {
	ex := NewFieldExtractor(nil, NewHeuristicExtractor(config.DefaultExtractionUrgencyKeywords))

	got := ex.Extract(context.Background(), "system is down")
	assert.Equal(t, []string{"down"}, got.UrgencyKeywords)
}
