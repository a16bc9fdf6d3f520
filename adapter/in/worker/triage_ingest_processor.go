package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// IngestProcessor runs queued emails through the triage pipeline.
type IngestProcessor struct {
	svc in.TriageService
}

func NewIngestProcessor(svc in.TriageService) *IngestProcessor {
	return &IngestProcessor{svc: svc}
}

func (p *IngestProcessor) ProcessIngest(ctx context.Context, msg *Message) error {
	job, err := ParsePayload[out.IngestJob](msg)
	if err != nil {
		// malformed payloads never succeed on retry
		logger.WithError(err).Error("[IngestProcessor] dropping job %s", msg.ID)
		return nil
	}

	start := time.Now()
	email, err := p.svc.Ingest(ctx, job.Email)
	if err != nil {
		if apperr.GetHTTPStatus(err) < http.StatusInternalServerError {
			logger.WithError(err).Warn("[IngestProcessor] rejected job %s", job.JobID)
			return nil
		}
		return fmt.Errorf("ingest job %s: %w", job.JobID, err)
	}

	logger.WithFields(map[string]any{
		"job_id":   job.JobID,
		"email_id": email.ID,
		"priority": email.PriorityScore,
	}).WithDuration(time.Since(start)).Info("[IngestProcessor] email triaged")
	return nil
}

func (p *IngestProcessor) ProcessSamples(ctx context.Context, msg *Message) error {
	n, err := p.svc.IngestSamples(ctx)
	if err != nil {
		return fmt.Errorf("ingest samples: %w", err)
	}
	logger.Info("[IngestProcessor] seeded %d sample emails (job %s)", n, msg.ID)
	return nil
}
