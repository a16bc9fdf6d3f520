package domain

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var ErrEmailNotFound = errors.New("email not found")

// Status is the lifecycle state of a support email.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusEscalated, StatusResolved:
		return true
	}
	return false
}

// ParseStatus returns an error for anything outside the closed set.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

// Sentiment labels are case-sensitive; the classifier only accepts exact matches.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// AuditEvent is the kind of lifecycle event recorded in an email's audit log.
type AuditEvent string

const (
	AuditGenerated AuditEvent = "generated"
	AuditEdited    AuditEvent = "edited"
	AuditSent      AuditEvent = "sent"
)

func (e AuditEvent) IsValid() bool {
	switch e {
	case AuditGenerated, AuditEdited, AuditSent:
		return true
	}
	return false
}

// Actor identifies who caused an audit event.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorUser   Actor = "user"
)

func (a Actor) IsValid() bool {
	return a == ActorSystem || a == ActorUser
}

// SuggestedAction is the generator's hint for the reviewer. Informational only.
type SuggestedAction string

const (
	SuggestSend     SuggestedAction = "send"
	SuggestEdit     SuggestedAction = "edit"
	SuggestEscalate SuggestedAction = "escalate"
)

// SendMode selects between a recorded-only send and a real delivery.
type SendMode string

const (
	SendModeMock SendMode = "mock"
	SendModeReal SendMode = "real"
)

type ExtractedData struct {
	Phone           *string  `json:"phone" bson:"phone"`
	AltEmail        *string  `json:"alt_email" bson:"alt_email"`
	OrderID         *string  `json:"order_id" bson:"order_id"`
	RequestedAction *string  `json:"requested_action" bson:"requested_action"`
	UrgencyKeywords []string `json:"urgency_keywords" bson:"urgency_keywords"`
}

// RetrievalHit is a single knowledge-base match, most relevant first in a slice.
type RetrievalHit struct {
	DocID   string  `json:"doc_id" bson:"doc_id"`
	Title   string  `json:"title" bson:"title"`
	Snippet string  `json:"snippet" bson:"snippet"`
	Score   float64 `json:"score" bson:"score"`
}

type DraftReply struct {
	Text            string          `json:"text" bson:"text"`
	SourcesUsed     []string        `json:"sources_used" bson:"sources_used"`
	Confidence      float64         `json:"confidence" bson:"confidence"`
	SuggestedAction SuggestedAction `json:"suggested_action,omitempty" bson:"suggested_action,omitempty"`
	GeneratedAt     time.Time       `json:"generated_at" bson:"generated_at"`
}

// AuditEntry is immutable once appended.
type AuditEntry struct {
	Event     AuditEvent `json:"event" bson:"event"`
	By        Actor      `json:"by" bson:"by"`
	Text      string     `json:"text" bson:"text"`
	Timestamp time.Time  `json:"timestamp" bson:"timestamp"`
}

// NewAuditEntry validates the closed enums before an entry can reach the log.
func NewAuditEntry(event AuditEvent, by Actor, text string) (AuditEntry, error) {
	if !event.IsValid() {
		return AuditEntry{}, fmt.Errorf("invalid audit event %q", event)
	}
	if !by.IsValid() {
		return AuditEntry{}, fmt.Errorf("invalid audit actor %q", by)
	}
	return AuditEntry{
		Event:     event,
		By:        by,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Email is a support request plus the annotation envelope built by the triage pipeline.
type Email struct {
	ID            string    `json:"id" bson:"id"`
	Sender        string    `json:"sender" bson:"sender"`
	SenderName    string    `json:"sender_name" bson:"sender_name"`
	Subject       string    `json:"subject" bson:"subject"`
	Body          string    `json:"body" bson:"body"`
	DateReceived  time.Time `json:"date_received" bson:"date_received"`
	RawHTML       *string   `json:"raw_html,omitempty" bson:"raw_html,omitempty"`

	Extracted         ExtractedData  `json:"extracted" bson:"extracted"`
	Sentiment         Sentiment      `json:"sentiment" bson:"sentiment"`
	PriorityScore     float64        `json:"priority_score" bson:"priority_score"`
	PriorityRationale []string       `json:"priority_rationale" bson:"priority_rationale"`
	RetrievalHits     []RetrievalHit `json:"retrieval_hits" bson:"retrieval_hits"`
	DraftReply        *DraftReply    `json:"draft_reply" bson:"draft_reply"`
	AuditLog          []AuditEntry   `json:"audit_log" bson:"audit_log"`
	Status            Status         `json:"status" bson:"status"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// RawEmail holds the immutable intake fields supplied by the ingestion caller.
type RawEmail struct {
	Sender       string    `json:"sender"`
	SenderName   string    `json:"sender_name"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	DateReceived time.Time `json:"date_received"`
	RawHTML      *string   `json:"raw_html,omitempty"`
}

// NewEmail creates an email with default annotations: Neutral, pending, empty logs.
func NewEmail(raw RawEmail) *Email {
	now := time.Now().UTC()
	received := raw.DateReceived
	if received.IsZero() {
		received = now
	}
	return &Email{
		ID:                uuid.New().String(),
		Sender:            raw.Sender,
		SenderName:        raw.SenderName,
		Subject:           raw.Subject,
		Body:              raw.Body,
		DateReceived:      received,
		RawHTML:           raw.RawHTML,
		Extracted:         ExtractedData{UrgencyKeywords: []string{}},
		Sentiment:         SentimentNeutral,
		PriorityRationale: []string{},
		RetrievalHits:     []RetrievalHit{},
		AuditLog:          []AuditEntry{},
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// EmailSummary is the list-view projection of an Email.
type EmailSummary struct {
	ID            string    `json:"id"`
	Sender        string    `json:"sender"`
	Subject       string    `json:"subject"`
	Sentiment     Sentiment `json:"sentiment"`
	PriorityScore float64   `json:"priority_score"`
	Status        Status    `json:"status"`
	Preview       string    `json:"preview"`
	DateReceived  time.Time `json:"date_received"`
}

const previewLength = 100

// Truncate cuts s to at most n characters and marks the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func (e *Email) Summary() EmailSummary {
	preview := Truncate(e.Body, previewLength)
	return EmailSummary{
		ID:            e.ID,
		Sender:        e.Sender,
		Subject:       e.Subject,
		Sentiment:     e.Sentiment,
		PriorityScore: e.PriorityScore,
		Status:        e.Status,
		Preview:       preview,
		DateReceived:  e.DateReceived,
	}
}

// ListSort selects the listing order. Both orders are descending.
type ListSort string

const (
	SortPriorityDesc ListSort = "priority_desc"
	SortDateDesc     ListSort = "date_desc"
)

// ListFilter is the listing query. A nil Status lists every status.
type ListFilter struct {
	Status *Status
	Limit  int
	Sort   ListSort
}

type Analytics struct {
	TotalEmails        int64            `json:"total_emails"`
	PendingCount       int64            `json:"pending_count"`
	ResolvedCount      int64            `json:"resolved_count"`
	SentimentBreakdown map[string]int64 `json:"sentiment_breakdown"`
	AvgPriority        float64          `json:"avg_priority"`
}
