package out

import (
	"context"

	"triage_server/core/domain"
)

// IngestJob carries a raw email through the async ingestion stream.
type IngestJob struct {
	JobID string          `json:"job_id"`
	Email domain.RawEmail `json:"email"`
}

// SamplesJob asks a worker to seed the sample support emails.
type SamplesJob struct {
	JobID string `json:"job_id"`
}

// MessageProducer publishes work for the background workers.
type MessageProducer interface {
	PublishIngest(ctx context.Context, job *IngestJob) (string, error)
	PublishSamples(ctx context.Context, job *SamplesJob) (string, error)
}
