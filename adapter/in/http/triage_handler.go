package http

import (
	"bytes"
	"errors"
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/mailparse"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TriageHandler serves the support inbox API.
type TriageHandler struct {
	svc      in.TriageService
	producer out.MessageProducer
}

// NewTriageHandler creates the handler. producer may be nil, which disables ?async=true.
func NewTriageHandler(svc in.TriageService, producer out.MessageProducer) *TriageHandler {
	return &TriageHandler{
		svc:      svc,
		producer: producer,
	}
}

func (h *TriageHandler) Register(router fiber.Router) {
	router.Get("/", h.Root)
	router.Get("/analytics", h.Analytics)

	emails := router.Group("/emails")
	emails.Post("/ingest", h.Ingest)
	emails.Post("/ingest/mock", h.IngestMock)
	emails.Post("/ingest/mime", h.IngestMIME)
	emails.Get("/", h.List)
	emails.Get("/:id", h.Get)
	emails.Post("/:id/generate", h.Generate)
	emails.Post("/:id/send", h.Send)
}

// =============================================================================
// Handlers
// =============================================================================

func (h *TriageHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Smart Communication Assistant API",
		"status":  "running",
	})
}

// IngestRequest is a single inbound email. date_received is ISO-8601; naive values are UTC.
type IngestRequest struct {
	Sender       string  `json:"sender"`
	SenderName   string  `json:"sender_name"`
	Subject      string  `json:"subject"`
	Body         string  `json:"body"`
	DateReceived string  `json:"date_received"`
	RawHTML      *string `json:"raw_html,omitempty"`
}

func (r *IngestRequest) toRaw() (domain.RawEmail, error) {
	raw := domain.RawEmail{
		Sender:     strings.TrimSpace(r.Sender),
		SenderName: r.SenderName,
		Subject:    r.Subject,
		Body:       r.Body,
		RawHTML:    r.RawHTML,
	}
	if raw.Sender == "" {
		return raw, apperr.MissingField("sender")
	}
	if r.DateReceived != "" {
		t, err := triage.ParseTimestamp(r.DateReceived)
		if err != nil {
			return raw, apperr.InvalidInput("date_received", err.Error()).WithError(err)
		}
		raw.DateReceived = t
	}
	return raw, nil
}

// Ingest triages one email. With ?async=true it is queued for the workers instead.
func (h *TriageHandler) Ingest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("Invalid request body")
	}

	raw, err := req.toRaw()
	if err != nil {
		return err
	}

	return h.ingestRaw(c, raw)
}

// IngestMIME accepts a full RFC 5322 message as the request body.
func (h *TriageHandler) IngestMIME(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return apperr.MissingField("body")
	}

	raw, err := mailparse.Parse(bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, mailparse.ErrNoSender) {
			return apperr.MissingField("sender")
		}
		return apperr.BadRequest("Invalid MIME message").WithError(err)
	}

	return h.ingestRaw(c, raw)
}

func (h *TriageHandler) ingestRaw(c *fiber.Ctx, raw domain.RawEmail) error {
	if isAsync(c) {
		return h.enqueue(c, raw)
	}

	email, err := h.svc.Ingest(c.Context(), raw)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(email)
}

func (h *TriageHandler) enqueue(c *fiber.Ctx, raw domain.RawEmail) error {
	if h.producer == nil {
		return apperr.QueueError("publish ingest", errors.New("async ingestion is not configured"))
	}

	job := &out.IngestJob{JobID: uuid.New().String(), Email: raw}
	streamID, err := h.producer.PublishIngest(c.Context(), job)
	if err != nil {
		return apperr.QueueError("publish ingest", err)
	}

	logger.WithField("job_id", job.JobID).Info("ingest job queued: %s", streamID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":    job.JobID,
		"stream_id": streamID,
		"status":    "queued",
	})
}

// IngestMock seeds the sample support emails. With ?async=true the seeding runs on a worker.
func (h *TriageHandler) IngestMock(c *fiber.Ctx) error {
	if isAsync(c) {
		return h.enqueueSamples(c)
	}

	n, err := h.svc.IngestSamples(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ingested": n})
}

func (h *TriageHandler) enqueueSamples(c *fiber.Ctx) error {
	if h.producer == nil {
		return apperr.QueueError("publish samples", errors.New("async ingestion is not configured"))
	}

	job := &out.SamplesJob{JobID: uuid.New().String()}
	streamID, err := h.producer.PublishSamples(c.Context(), job)
	if err != nil {
		return apperr.QueueError("publish samples", err)
	}

	logger.WithField("job_id", job.JobID).Info("samples job queued: %s", streamID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":    job.JobID,
		"stream_id": streamID,
		"status":    "queued",
	})
}

// List returns email summaries. Query: status (pending|escalated|resolved|all), limit, sort (priority_desc|date_desc).
func (h *TriageHandler) List(c *fiber.Ctx) error {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		return err
	}

	summaries, err := h.svc.List(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(summaries)
}

func (h *TriageHandler) Get(c *fiber.Ctx) error {
	email, err := h.svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(email)
}

// Generate retrieves context and drafts a reply for the email.
func (h *TriageHandler) Generate(c *fiber.Ctx) error {
	result, err := h.svc.GenerateReply(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Send records the reviewed reply and resolves the email.
func (h *TriageHandler) Send(c *fiber.Ctx) error {
	var req in.SendRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("Invalid request body")
	}

	result, err := h.svc.Send(c.Context(), c.Params("id"), &req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *TriageHandler) Analytics(c *fiber.Ctx) error {
	analytics, err := h.svc.Analytics(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(analytics)
}
