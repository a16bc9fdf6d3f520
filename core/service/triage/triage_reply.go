package triage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"triage_server/core/agent/llm"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"

	"github.com/goccy/go-json"
)

const (
	DefaultReplyText       = "Thank you for contacting us. We'll review your inquiry and respond soon."
	DefaultReplyConfidence = 0.7
	FallbackConfidence     = 0.5

	EmpathyLine = "I understand your frustration, and I sincerely apologize for any inconvenience. "
)

const replyPrompt = `SYSTEM: You are the professional ACME Support Assistant. Use only the CONTEXT DOCUMENTS for factual claims. Return JSON only:
{
  "reply_text":"", "sources_used":[], "confidence":0.0, "suggested_action":"send|edit|escalate"
}

USER: CONTEXT DOCUMENTS:
%s
EMAIL_SUBJECT: "%s"
EMAIL_BODY: """%s"""

METADATA:
- sender: %s
- sentiment: %s
- extracted: %s
- priority_score: %s

TASK: Generate a concise, professional reply (<= 180 words). If info missing, ask one clarifying question. If sentiment is Negative, include an empathetic line. Populate sources_used with doc ids used for facts.`

// ReplyDrafter composes a draft grounded in retrieved documents.
type ReplyDrafter struct {
	gen out.Generator
	now func() time.Time
}

// NewReplyDrafter returns a drafter; a nil generator always produces the templated reply.
func NewReplyDrafter(gen out.Generator) *ReplyDrafter {
	return &ReplyDrafter{gen: gen, now: time.Now}
}

type replyPayload struct {
	ReplyText       *string  `json:"reply_text"`
	SourcesUsed     []string `json:"sources_used"`
	Confidence      *float64 `json:"confidence"`
	SuggestedAction string   `json:"suggested_action"`
}

// Draft never fails; generation problems produce the templated fallback.
func (d *ReplyDrafter) Draft(ctx context.Context, email *domain.Email, hits []domain.RetrievalHit) domain.DraftReply {
	if d.gen != nil {
		draft, err := d.generate(ctx, email, hits)
		if err == nil {
			return draft
		}
		logger.WithError(err).WithField("component", "reply").WithField("email_id", email.ID).
			Warn("generative reply failed, using template")
	}
	return d.fallback(email)
}

func (d *ReplyDrafter) generate(ctx context.Context, email *domain.Email, hits []domain.RetrievalHit) (domain.DraftReply, error) {
	resp, err := d.gen.Generate(ctx, buildReplyPrompt(email, hits), 0, 512)
	if err != nil {
		return domain.DraftReply{}, err
	}

	var p replyPayload
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &p); err != nil {
		return domain.DraftReply{}, fmt.Errorf("%w: parse reply: %v", out.ErrGeneration, err)
	}

	draft := domain.DraftReply{
		Text:        DefaultReplyText,
		SourcesUsed: p.SourcesUsed,
		Confidence:  DefaultReplyConfidence,
		GeneratedAt: d.now().UTC(),
	}
	if p.ReplyText != nil && strings.TrimSpace(*p.ReplyText) != "" {
		draft.Text = *p.ReplyText
	}
	if p.Confidence != nil {
		draft.Confidence = clampUnit(*p.Confidence)
	}
	if draft.SourcesUsed == nil {
		draft.SourcesUsed = []string{}
	}
	switch a := domain.SuggestedAction(p.SuggestedAction); a {
	case domain.SuggestSend, domain.SuggestEdit, domain.SuggestEscalate:
		draft.SuggestedAction = a
	}
	return draft, nil
}

func (d *ReplyDrafter) fallback(email *domain.Email) domain.DraftReply {
	prefix := ""
	if email.Sentiment == domain.SentimentNegative {
		prefix = EmpathyLine
	}
	return domain.DraftReply{
		Text: fmt.Sprintf("%sThank you for reaching out to us. I've received your inquiry regarding '%s' and will ensure it gets the proper attention it deserves. Our team will review the details and provide a comprehensive response shortly.",
			prefix, email.Subject),
		SourcesUsed: []string{},
		Confidence:  FallbackConfidence,
		GeneratedAt: d.now().UTC(),
	}
}

func buildReplyPrompt(email *domain.Email, hits []domain.RetrievalHit) string {
	var ctxDocs strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&ctxDocs, "%d) id:%s score:%.2f snippet:\"%s\"\n", i+1, h.DocID, h.Score, h.Snippet)
	}

	extracted, err := json.Marshal(email.Extracted)
	if err != nil {
		extracted = []byte("{}")
	}

	return fmt.Sprintf(replyPrompt,
		ctxDocs.String(),
		email.Subject,
		email.Body,
		email.Sender,
		email.Sentiment,
		extracted,
		strconv.FormatFloat(email.PriorityScore, 'f', -1, 64),
	)
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
