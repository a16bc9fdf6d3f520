// Package triage implements the email triage and grounded reply pipeline.
package triage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"triage_server/core/agent/llm"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"

	"github.com/goccy/go-json"
)

// ManualReviewAction is recorded when the requested action cannot be determined.
const ManualReviewAction = "Customer inquiry - needs manual review"

// ExtractStrategy is one way of pulling structured fields out of an email body.
type ExtractStrategy interface {
	Extract(ctx context.Context, body string) (domain.ExtractedData, error)
}

// =============================================================================
// Generative extraction
// =============================================================================

type LLMExtractor struct {
	gen out.Generator
}

func NewLLMExtractor(gen out.Generator) *LLMExtractor {
	return &LLMExtractor{gen: gen}
}

const extractionPrompt = `SYSTEM: You are an extraction assistant. ONLY output valid JSON.

USER: Extract from the EMAIL_TEXT the following fields: phone, alt_email, requested_action, order_id, urgency_keywords. Output JSON:
{
  "phone": null,
  "alt_email": null,
  "requested_action": "",
  "order_id": null,
  "urgency_keywords": []
}
EMAIL_TEXT: """%s"""`

func (e *LLMExtractor) Extract(ctx context.Context, body string) (domain.ExtractedData, error) {
	resp, err := e.gen.Generate(ctx, fmt.Sprintf(extractionPrompt, body), 0, 512)
	if err != nil {
		return domain.ExtractedData{}, err
	}

	var data domain.ExtractedData
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &data); err != nil {
		return domain.ExtractedData{}, fmt.Errorf("%w: parse extraction: %v", out.ErrGeneration, err)
	}

	data.Phone = nonEmpty(data.Phone)
	data.AltEmail = nonEmpty(data.AltEmail)
	data.OrderID = nonEmpty(data.OrderID)
	data.RequestedAction = nonEmpty(data.RequestedAction)
	if data.UrgencyKeywords == nil {
		data.UrgencyKeywords = []string{}
	}
	return data, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// =============================================================================
// Heuristic extraction
// =============================================================================

var (
	phonePattern      = regexp.MustCompile(`(\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4})`)
	localPhonePattern = regexp.MustCompile(`\b[0-9]{3}[-.\s][0-9]{4}\b`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	orderPattern      = regexp.MustCompile(`(?i)order\s*#?\s*([A-Za-z0-9]+)`)
)

// HeuristicExtractor is the deterministic regex and keyword extractor. It never fails.
type HeuristicExtractor struct {
	keywords []string
}

func NewHeuristicExtractor(urgencyKeywords []string) *HeuristicExtractor {
	return &HeuristicExtractor{keywords: lowerAll(urgencyKeywords)}
}

func (e *HeuristicExtractor) Extract(_ context.Context, body string) (domain.ExtractedData, error) {
	return e.extract(body), nil
}

func (e *HeuristicExtractor) extract(body string) domain.ExtractedData {
	action := ManualReviewAction
	data := domain.ExtractedData{
		RequestedAction: &action,
		UrgencyKeywords: matchKeywords(strings.ToLower(body), e.keywords),
	}

	if m := phonePattern.FindStringSubmatch(body); m != nil {
		phone := strings.TrimSpace(m[1])
		data.Phone = &phone
	} else if m := localPhonePattern.FindString(body); m != "" {
		data.Phone = &m
	}
	if m := emailPattern.FindString(body); m != "" {
		data.AltEmail = &m
	}
	if m := orderPattern.FindStringSubmatch(body); m != nil {
		data.OrderID = &m[1]
	}
	return data
}

// =============================================================================
// Composition
// =============================================================================

// FieldExtractor tries the primary strategy and falls back to heuristics on any error.
type FieldExtractor struct {
	primary  ExtractStrategy
	fallback *HeuristicExtractor
}

// NewFieldExtractor composes the strategies. A nil primary always uses the fallback.
func NewFieldExtractor(primary ExtractStrategy, fallback *HeuristicExtractor) *FieldExtractor {
	return &FieldExtractor{primary: primary, fallback: fallback}
}

func (f *FieldExtractor) Extract(ctx context.Context, body string) domain.ExtractedData {
	if f.primary != nil {
		data, err := f.primary.Extract(ctx, body)
		if err == nil {
			return data
		}
		logger.WithError(err).WithField("component", "extractor").Warn("generative extraction failed, using heuristics")
	}
	return f.fallback.extract(body)
}

func matchKeywords(text string, keywords []string) []string {
	found := []string{}
	for _, k := range keywords {
		if strings.Contains(text, k) {
			found = append(found, k)
		}
	}
	return found
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
