package triage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// failingGenerator simulates an unavailable model.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, float32, int) (string, error) {
	return "", out.ErrGeneration
}

// scriptedGenerator returns a fixed reply and records prompts.
type scriptedGenerator struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, _ float32, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

type staticRetriever struct {
	hits []domain.RetrievalHit
	err  error
}

func (r staticRetriever) Retrieve(context.Context, string, int) ([]domain.RetrievalHit, error) {
	return r.hits, r.err
}

// memoryRepo is an in-memory EmailRepository with field-level updates.
type memoryRepo struct {
	mu          sync.Mutex
	emails      map[string]*domain.Email
	insertLimit int // 0 means unlimited
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{emails: map[string]*domain.Email{}}
}

func clone(e *domain.Email) *domain.Email {
	c := *e
	c.AuditLog = append([]domain.AuditEntry(nil), e.AuditLog...)
	c.RetrievalHits = append([]domain.RetrievalHit(nil), e.RetrievalHits...)
	c.PriorityRationale = append([]string(nil), e.PriorityRationale...)
	if e.DraftReply != nil {
		d := *e.DraftReply
		c.DraftReply = &d
	}
	return &c
}

func (r *memoryRepo) Insert(_ context.Context, e *domain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emails[e.ID]; ok {
		return errors.New("duplicate id")
	}
	if r.insertLimit > 0 && len(r.emails) >= r.insertLimit {
		return errors.New("insert failed")
	}
	r.emails[e.ID] = clone(e)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emails[id]
	if !ok {
		return nil, domain.ErrEmailNotFound
	}
	return clone(e), nil
}

func (r *memoryRepo) List(_ context.Context, f *domain.ListFilter) ([]*domain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Email
	for _, e := range r.emails {
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		res = append(res, clone(e))
	}
	sort.Slice(res, func(i, j int) bool {
		if f.Sort == domain.SortDateDesc {
			return res[i].DateReceived.After(res[j].DateReceived)
		}
		return res[i].PriorityScore > res[j].PriorityScore
	})
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (r *memoryRepo) SetReply(_ context.Context, id string, hits []domain.RetrievalHit, draft *domain.DraftReply, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emails[id]
	if !ok {
		return domain.ErrEmailNotFound
	}
	d := *draft
	e.RetrievalHits = append([]domain.RetrievalHit(nil), hits...)
	e.DraftReply = &d
	e.UpdatedAt = time.Now().UTC()
	e.AuditLog = append(e.AuditLog, entry)
	return nil
}

func (r *memoryRepo) Resolve(_ context.Context, id string, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emails[id]
	if !ok {
		return domain.ErrEmailNotFound
	}
	e.Status = domain.StatusResolved
	e.UpdatedAt = time.Now().UTC()
	e.AuditLog = append(e.AuditLog, entry)
	return nil
}

func (r *memoryRepo) Analytics(context.Context) (*domain.Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &domain.Analytics{SentimentBreakdown: map[string]int64{}}
	var sum float64
	for _, e := range r.emails {
		a.TotalEmails++
		switch e.Status {
		case domain.StatusPending:
			a.PendingCount++
		case domain.StatusResolved:
			a.ResolvedCount++
		}
		a.SentimentBreakdown[string(e.Sentiment)]++
		sum += e.PriorityScore
	}
	if a.TotalEmails > 0 {
		a.AvgPriority = sum / float64(a.TotalEmails)
	}
	return a, nil
}

func strPtr(s string) *string { return &s }
