package in

import (
	"context"

	"triage_server/core/domain"
)

// TriageService is the caller-facing surface of the triage pipeline.
type TriageService interface {
	Ingest(ctx context.Context, raw domain.RawEmail) (*domain.Email, error)
	IngestSamples(ctx context.Context) (int, error)
	List(ctx context.Context, filter *domain.ListFilter) ([]domain.EmailSummary, error)
	Get(ctx context.Context, id string) (*domain.Email, error)
	GenerateReply(ctx context.Context, id string) (*GenerateReplyResult, error)
	Send(ctx context.Context, id string, req *SendRequest) (*SendResult, error)
	Analytics(ctx context.Context) (*domain.Analytics, error)
}

type GenerateReplyResult struct {
	DraftReply    *domain.DraftReply    `json:"draft_reply"`
	RetrievalHits []domain.RetrievalHit `json:"retrieval_hits"`
}

type SendRequest struct {
	FinalText *string         `json:"final_text"` // required; an empty string is a valid reply
	SendMode  domain.SendMode `json:"send_mode"`
}

type SendResult struct {
	Status  string          `json:"status"`
	Mode    domain.SendMode `json:"mode"`
	Message string          `json:"message"`
}
