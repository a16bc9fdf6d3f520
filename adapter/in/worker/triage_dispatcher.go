package worker

import (
	"context"

	"triage_server/pkg/logger"
)

// Handler routes messages to the processor for their job type.
type Handler struct {
	ingestProcessor *IngestProcessor
}

func NewHandler(ingestProcessor *IngestProcessor) *Handler {
	return &Handler{ingestProcessor: ingestProcessor}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobEmailIngest:
		return h.ingestProcessor.ProcessIngest(ctx, msg)
	case JobEmailSamples:
		return h.ingestProcessor.ProcessSamples(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}
