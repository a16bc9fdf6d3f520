package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Email Adapter
// =============================================================================

const collectionEmails = "emails"

// EmailAdapter implements out.EmailRepository using MongoDB.
// Mutations are single-document $set/$push updates, never whole-document replaces.
type EmailAdapter struct {
	collection *mongo.Collection
}

func NewEmailAdapter(db *mongo.Database) *EmailAdapter {
	return &EmailAdapter{collection: db.Collection(collectionEmails)}
}

var _ out.EmailRepository = (*EmailAdapter)(nil)

// EnsureIndexes creates necessary indexes for the collection.
func (a *EmailAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority_score", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "date_received", Value: -1}},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type emailDocument struct {
	ID           string    `bson:"id"`
	Sender       string    `bson:"sender"`
	SenderName   string    `bson:"sender_name"`
	Subject      string    `bson:"subject"`
	Body         string    `bson:"body"`
	DateReceived time.Time `bson:"date_received"`
	RawHTML      *string   `bson:"raw_html,omitempty"`

	Extracted         domain.ExtractedData  `bson:"extracted"`
	Sentiment         string                `bson:"sentiment"`
	PriorityScore     float64               `bson:"priority_score"`
	PriorityRationale []string              `bson:"priority_rationale"`
	RetrievalHits     []domain.RetrievalHit `bson:"retrieval_hits"`
	DraftReply        *domain.DraftReply    `bson:"draft_reply"`
	AuditLog          []domain.AuditEntry   `bson:"audit_log"`
	Status            string                `bson:"status"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDocument(e *domain.Email) *emailDocument {
	return &emailDocument{
		ID:                e.ID,
		Sender:            e.Sender,
		SenderName:        e.SenderName,
		Subject:           e.Subject,
		Body:              e.Body,
		DateReceived:      e.DateReceived,
		RawHTML:           e.RawHTML,
		Extracted:         e.Extracted,
		Sentiment:         string(e.Sentiment),
		PriorityScore:     e.PriorityScore,
		PriorityRationale: nonNil(e.PriorityRationale),
		RetrievalHits:     nonNil(e.RetrievalHits),
		DraftReply:        e.DraftReply,
		AuditLog:          nonNil(e.AuditLog),
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func (d *emailDocument) toDomain() *domain.Email {
	return &domain.Email{
		ID:                d.ID,
		Sender:            d.Sender,
		SenderName:        d.SenderName,
		Subject:           d.Subject,
		Body:              d.Body,
		DateReceived:      d.DateReceived,
		RawHTML:           d.RawHTML,
		Extracted:         d.Extracted,
		Sentiment:         domain.Sentiment(d.Sentiment),
		PriorityScore:     d.PriorityScore,
		PriorityRationale: nonNil(d.PriorityRationale),
		RetrievalHits:     nonNil(d.RetrievalHits),
		DraftReply:        d.DraftReply,
		AuditLog:          nonNil(d.AuditLog),
		Status:            domain.Status(d.Status),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// =============================================================================
// Operations
// =============================================================================

func (a *EmailAdapter) Insert(ctx context.Context, email *domain.Email) error {
	if _, err := a.collection.InsertOne(ctx, toDocument(email)); err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

func (a *EmailAdapter) GetByID(ctx context.Context, id string) (*domain.Email, error) {
	var doc emailDocument
	err := a.collection.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find email: %w", err)
	}
	return doc.toDomain(), nil
}

func (a *EmailAdapter) List(ctx context.Context, filter *domain.ListFilter) ([]*domain.Email, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	sortField := "priority_score"
	if filter.Sort == domain.SortDateDesc {
		sortField = "date_received"
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: -1}}).
		SetLimit(int64(filter.Limit))

	cursor, err := a.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []emailDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode emails: %w", err)
	}

	emails := make([]*domain.Email, len(docs))
	for i := range docs {
		emails[i] = docs[i].toDomain()
	}
	return emails, nil
}

func (a *EmailAdapter) SetReply(ctx context.Context, id string, hits []domain.RetrievalHit, draft *domain.DraftReply, entry domain.AuditEntry) error {
	update := bson.M{
		"$set": bson.M{
			"retrieval_hits": nonNil(hits),
			"draft_reply":    draft,
			"updated_at":     time.Now().UTC(),
		},
		"$push": bson.M{"audit_log": entry},
	}
	return a.updateOne(ctx, id, update)
}

func (a *EmailAdapter) Resolve(ctx context.Context, id string, entry domain.AuditEntry) error {
	update := bson.M{
		"$set": bson.M{
			"status":     string(domain.StatusResolved),
			"updated_at": time.Now().UTC(),
		},
		"$push": bson.M{"audit_log": entry},
	}
	return a.updateOne(ctx, id, update)
}

func (a *EmailAdapter) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := a.collection.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrEmailNotFound
	}
	return nil
}

// =============================================================================
// Analytics
// =============================================================================

func (a *EmailAdapter) Analytics(ctx context.Context) (*domain.Analytics, error) {
	total, err := a.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count emails: %w", err)
	}
	pending, err := a.collection.CountDocuments(ctx, bson.M{"status": string(domain.StatusPending)})
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	resolved, err := a.collection.CountDocuments(ctx, bson.M{"status": string(domain.StatusResolved)})
	if err != nil {
		return nil, fmt.Errorf("count resolved: %w", err)
	}

	breakdown, err := a.sentimentBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := a.averagePriority(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Analytics{
		TotalEmails:        total,
		PendingCount:       pending,
		ResolvedCount:      resolved,
		SentimentBreakdown: breakdown,
		AvgPriority:        avg,
	}, nil
}

func (a *EmailAdapter) sentimentBreakdown(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sentiment"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := a.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate sentiment: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Sentiment string `bson:"_id"`
		Count     int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode sentiment: %w", err)
	}

	breakdown := make(map[string]int64, len(rows))
	for _, r := range rows {
		breakdown[r.Sentiment] = r.Count
	}
	return breakdown, nil
}

func (a *EmailAdapter) averagePriority(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg_priority", Value: bson.D{{Key: "$avg", Value: "$priority_score"}}},
		}}},
	}

	cursor, err := a.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate priority: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg float64 `bson:"avg_priority"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode priority: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Avg, nil
}
