package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Retriever finds knowledge-base passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error)
}

// Service orchestrates ingestion, reply generation and sending.
type Service struct {
	repo       out.EmailRepository
	extractor  *FieldExtractor
	classifier *SentimentClassifier
	scorer     *PriorityScorer
	retriever  Retriever
	drafter    *ReplyDrafter
	topK       int
	now        func() time.Time
}

type Deps struct {
	Repo       out.EmailRepository
	Extractor  *FieldExtractor
	Classifier *SentimentClassifier
	Scorer     *PriorityScorer
	Retriever  Retriever
	Drafter    *ReplyDrafter
	TopK       int
}

func NewService(d Deps) *Service {
	return &Service{
		repo:       d.Repo,
		extractor:  d.Extractor,
		classifier: d.Classifier,
		scorer:     d.Scorer,
		retriever:  d.Retriever,
		drafter:    d.Drafter,
		topK:       d.TopK,
		now:        time.Now,
	}
}

var _ in.TriageService = (*Service)(nil)

// Ingest annotates a raw email and stores it as pending.
// Extraction and sentiment run concurrently; scoring waits for both.
func (s *Service) Ingest(ctx context.Context, raw domain.RawEmail) (*domain.Email, error) {
	if strings.TrimSpace(raw.Sender) == "" {
		return nil, apperr.MissingField("sender")
	}

	email := domain.NewEmail(raw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		email.Extracted = s.extractor.Extract(gctx, email.Body)
		return nil
	})
	g.Go(func() error {
		email.Sentiment = s.classifier.Classify(gctx, email.Body)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	score, rationale, err := s.scorer.Score(SnapshotOf(email))
	if err != nil {
		return nil, apperr.InvalidInput("date_received", err.Error()).WithError(err)
	}
	email.PriorityScore = score
	email.PriorityRationale = rationale
	email.Status = domain.StatusPending

	if err := s.repo.Insert(ctx, email); err != nil {
		return nil, apperr.DatabaseError("insert email", err)
	}

	logger.WithFields(map[string]any{
		"email_id":  email.ID,
		"sentiment": email.Sentiment,
		"priority":  email.PriorityScore,
	}).Info("email ingested")
	return email, nil
}

// IngestSamples runs the bundled sample emails through Ingest in order. It stops at
// the first failure and reports how many were inserted before it.
func (s *Service) IngestSamples(ctx context.Context) (int, error) {
	inserted := 0
	for _, raw := range SampleEmails(s.now().UTC()) {
		if _, err := s.Ingest(ctx, raw); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (s *Service) List(ctx context.Context, filter *domain.ListFilter) ([]domain.EmailSummary, error) {
	f := normalizeFilter(filter)

	emails, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.DatabaseError("list emails", err)
	}

	summaries := make([]domain.EmailSummary, len(emails))
	for i, e := range emails {
		summaries[i] = e.Summary()
	}
	return summaries, nil
}

func normalizeFilter(filter *domain.ListFilter) *domain.ListFilter {
	f := domain.ListFilter{}
	if filter != nil {
		f = *filter
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Sort != domain.SortDateDesc {
		f.Sort = domain.SortPriorityDesc
	}
	return &f
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Email, error) {
	email, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get email")
	}
	return email, nil
}

// GenerateReply retrieves context and drafts a reply. An unreachable embedder
// degrades to drafting without context rather than failing the request.
func (s *Service) GenerateReply(ctx context.Context, id string) (*in.GenerateReplyResult, error) {
	email, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get email")
	}

	hits, err := s.retriever.Retrieve(ctx, email.Subject+" "+email.Body, s.topK)
	if err != nil {
		logger.WithError(err).WithField("email_id", id).Warn("retrieval failed, drafting without context")
		hits = []domain.RetrievalHit{}
	}

	draft := s.drafter.Draft(ctx, email, hits)

	entry, err := domain.NewAuditEntry(domain.AuditGenerated, domain.ActorSystem, draft.Text)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}
	if err := s.repo.SetReply(ctx, id, hits, &draft, entry); err != nil {
		return nil, mapRepoError(err, "store reply")
	}

	return &in.GenerateReplyResult{
		DraftReply:    &draft,
		RetrievalHits: hits,
	}, nil
}

// Send resolves the email regardless of its prior status. No message leaves the system.
func (s *Service) Send(ctx context.Context, id string, req *in.SendRequest) (*in.SendResult, error) {
	if req == nil || req.FinalText == nil {
		return nil, apperr.MissingField("final_text")
	}
	mode := req.SendMode
	if mode == "" {
		mode = domain.SendModeMock
	}
	if mode != domain.SendModeMock && mode != domain.SendModeReal {
		return nil, apperr.InvalidInput("send_mode", "must be mock or real")
	}

	entry, err := domain.NewAuditEntry(domain.AuditSent, domain.ActorUser, *req.FinalText)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}
	if err := s.repo.Resolve(ctx, id, entry); err != nil {
		return nil, mapRepoError(err, "resolve email")
	}

	verb := "mock sent"
	if mode == domain.SendModeReal {
		verb = "sent"
	}
	logger.WithField("email_id", id).WithField("mode", mode).Info("email reply recorded")
	return &in.SendResult{
		Status:  "sent",
		Mode:    mode,
		Message: "Email reply " + verb + " successfully",
	}, nil
}

func (s *Service) Analytics(ctx context.Context) (*domain.Analytics, error) {
	a, err := s.repo.Analytics(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("analytics", err)
	}
	a.AvgPriority = round3(a.AvgPriority)
	if a.SentimentBreakdown == nil {
		a.SentimentBreakdown = map[string]int64{}
	}
	return a, nil
}

func mapRepoError(err error, op string) error {
	if errors.Is(err, domain.ErrEmailNotFound) {
		return apperr.NotFound("Email")
	}
	return apperr.DatabaseError(op, err)
}
