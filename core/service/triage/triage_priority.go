package triage

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"triage_server/core/domain"
)

// ErrMalformedTimestamp is returned when a received time is neither a time.Time nor ISO-8601 text.
var ErrMalformedTimestamp = errors.New("malformed received timestamp")

// -----------------------------------------------------------------------------
// Factor weights
// -----------------------------------------------------------------------------
const (
	WeightUrgency   = 0.6
	WeightSentiment = 0.25
	WeightRecency   = 0.1
	WeightVIP       = 0.05
)

// Rationale tags, in the order they are emitted.
const (
	TagUrgency           = "urgency_keywords"
	TagNegativeSentiment = "negative_sentiment"
	TagRecent            = "recent_email"
	TagVIP               = "vip_sender"
)

// Snapshot is the subset of an email the scorer reads.
// Received is either a time.Time or an ISO-8601 string.
type Snapshot struct {
	Sender    string
	Subject   string
	Body      string
	Sentiment domain.Sentiment
	Received  any
}

func SnapshotOf(e *domain.Email) Snapshot {
	return Snapshot{
		Sender:    e.Sender,
		Subject:   e.Subject,
		Body:      e.Body,
		Sentiment: e.Sentiment,
		Received:  e.DateReceived,
	}
}

type PriorityScorer struct {
	keywords []string
	vip      map[string]struct{}
	now      func() time.Time
}

type ScorerOption func(*PriorityScorer)

// WithClock replaces time.Now for recency computation.
func WithClock(now func() time.Time) ScorerOption {
	return func(s *PriorityScorer) { s.now = now }
}

func WithVIPSenders(senders []string) ScorerOption {
	return func(s *PriorityScorer) {
		for _, v := range senders {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				s.vip[v] = struct{}{}
			}
		}
	}
}

func NewPriorityScorer(urgencyKeywords []string, opts ...ScorerOption) *PriorityScorer {
	s := &PriorityScorer{
		keywords: lowerAll(urgencyKeywords),
		vip:      make(map[string]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the weighted priority in [0,1], rounded to 3 decimals, with its rationale tags.
func (s *PriorityScorer) Score(snap Snapshot) (float64, []string, error) {
	received, err := parseReceived(snap.Received)
	if err != nil {
		return 0, nil, err
	}

	urgency := 0.0
	if containsAny(strings.ToLower(snap.Subject), s.keywords) || containsAny(strings.ToLower(snap.Body), s.keywords) {
		urgency = 1.0
	}

	sentiment := sentimentFactor(snap.Sentiment)

	recency := 0.0
	switch hours := s.now().Sub(received).Hours(); {
	case hours <= 1:
		recency = 1.0
	case hours <= 24:
		recency = 0.5
	}

	vip := 0.0
	if _, ok := s.vip[strings.ToLower(strings.TrimSpace(snap.Sender))]; ok {
		vip = 1.0
	}

	score := WeightUrgency*urgency + WeightSentiment*sentiment + WeightRecency*recency + WeightVIP*vip

	rationale := []string{}
	if urgency > 0 {
		rationale = append(rationale, TagUrgency)
	}
	if sentiment > 0.5 {
		rationale = append(rationale, TagNegativeSentiment)
	}
	if recency > 0 {
		rationale = append(rationale, TagRecent)
	}
	if vip > 0 {
		rationale = append(rationale, TagVIP)
	}

	return round3(score), rationale, nil
}

func sentimentFactor(s domain.Sentiment) float64 {
	switch s {
	case domain.SentimentNegative:
		return 1.0
	case domain.SentimentPositive:
		return 0.0
	default:
		return 0.5
	}
}

func parseReceived(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrMalformedTimestamp)
		}
		return t, nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, fmt.Errorf("%w: nil time", ErrMalformedTimestamp)
		}
		return *t, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, t)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrMalformedTimestamp, v)
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// ParseTimestamp parses ISO-8601 text the way the scorer does. Naive values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := parseReceived(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
