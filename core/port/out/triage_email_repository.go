package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// EmailRepository is the persistence collaborator for triaged emails.
// Every mutation is a field-level update (set fields, append to array) so that
// concurrent generate and send calls on one email never lose each other's writes.
type EmailRepository interface {
	Insert(ctx context.Context, email *domain.Email) error
	GetByID(ctx context.Context, id string) (*domain.Email, error)
	List(ctx context.Context, filter *domain.ListFilter) ([]*domain.Email, error)

	// SetReply overwrites retrieval hits and draft reply and appends entry to the audit log.
	SetReply(ctx context.Context, id string, hits []domain.RetrievalHit, draft *domain.DraftReply, entry domain.AuditEntry) error
	// Resolve sets status to resolved and appends entry to the audit log.
	Resolve(ctx context.Context, id string, entry domain.AuditEntry) error

	Analytics(ctx context.Context) (*domain.Analytics, error)
}

// Cache is the small key/value surface used for derived, recomputable data.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}
