package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeTriage struct {
	ingested   []domain.RawEmail
	lastFilter *domain.ListFilter
	lastSend   *in.SendRequest
	emails     map[string]*domain.Email
}

func newFakeTriage() *fakeTriage {
	return &fakeTriage{emails: map[string]*domain.Email{}}
}

func (f *fakeTriage) Ingest(_ context.Context, raw domain.RawEmail) (*domain.Email, error) {
	f.ingested = append(f.ingested, raw)
	email := domain.NewEmail(raw)
	f.emails[email.ID] = email
	return email, nil
}

func (f *fakeTriage) IngestSamples(context.Context) (int, error) { return 5, nil }

func (f *fakeTriage) List(_ context.Context, filter *domain.ListFilter) ([]domain.EmailSummary, error) {
	f.lastFilter = filter
	summaries := []domain.EmailSummary{}
	for _, e := range f.emails {
		summaries = append(summaries, e.Summary())
	}
	return summaries, nil
}

func (f *fakeTriage) Get(_ context.Context, id string) (*domain.Email, error) {
	email, ok := f.emails[id]
	if !ok {
		return nil, apperr.NotFound("Email")
	}
	return email, nil
}

func (f *fakeTriage) GenerateReply(ctx context.Context, id string) (*in.GenerateReplyResult, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return &in.GenerateReplyResult{
		DraftReply:    &domain.DraftReply{Text: "Hello", SourcesUsed: []string{"kb-1"}, Confidence: 0.7},
		RetrievalHits: []domain.RetrievalHit{{DocID: "kb-1", Score: 0.9}},
	}, nil
}

func (f *fakeTriage) Send(ctx context.Context, id string, req *in.SendRequest) (*in.SendResult, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	f.lastSend = req
	if req.FinalText == nil {
		return nil, apperr.MissingField("final_text")
	}
	return &in.SendResult{Status: "sent", Mode: domain.SendModeMock, Message: "Email reply mock sent successfully"}, nil
}

func (f *fakeTriage) Analytics(context.Context) (*domain.Analytics, error) {
	return &domain.Analytics{TotalEmails: 2, PendingCount: 1, ResolvedCount: 1, SentimentBreakdown: map[string]int64{"Neutral": 2}, AvgPriority: 0.412}, nil
}

type fakeProducer struct {
	jobs    []*out.IngestJob
	samples []*out.SamplesJob
	err     error
}

func (p *fakeProducer) PublishSamples(_ context.Context, job *out.SamplesJob) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.samples = append(p.samples, job)
	return "1700000000001-0", nil
}

func (p *fakeProducer) PublishIngest(_ context.Context, job *out.IngestJob) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, job)
	return "1700000000000-0", nil
}

func newTestApp(svc in.TriageService, producer out.MessageProducer) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())
	NewTriageHandler(svc, producer).Register(app.Group("/api"))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, contentType string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp.Error.Code
}

// =============================================================================
// Tests
// =============================================================================

func TestRoot(t *testing.T) {
	app := newTestApp(newFakeTriage(), nil)

	status, data := do(t, app, "GET", "/api/", "", "")
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"message":"Smart Communication Assistant API","status":"running"}`, string(data))
}

func TestIngestSync(t *testing.T) {
	svc := newFakeTriage()
	app := newTestApp(svc, nil)

	status, data := do(t, app, "POST", "/api/emails/ingest",
		`{"sender":"a@example.com","subject":"Help","body":"down","date_received":"2024-01-15T10:00:00"}`,
		fiber.MIMEApplicationJSON)
	require.Equal(t, 201, status, string(data))

	require.Len(t, svc.ingested, 1)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), svc.ingested[0].DateReceived)

	var email domain.Email
	require.NoError(t, json.Unmarshal(data, &email))
	assert.Equal(t, domain.StatusPending, email.Status)
}

func TestIngestValidation(t *testing.T) {
	app := newTestApp(newFakeTriage(), nil)

	status, data := do(t, app, "POST", "/api/emails/ingest", `{"subject":"x"}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeMissingField, errorCode(t, data))

	status, data = do(t, app, "POST", "/api/emails/ingest",
		`{"sender":"a@example.com","date_received":"last tuesday"}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, data))

	status, _ = do(t, app, "POST", "/api/emails/ingest", `{not json`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 400, status)
}

func TestIngestAsync(t *testing.T) {
	svc := newFakeTriage()
	producer := &fakeProducer{}
	app := newTestApp(svc, producer)

	status, data := do(t, app, "POST", "/api/emails/ingest?async=true",
		`{"sender":"a@example.com","subject":"Help","body":"down"}`, fiber.MIMEApplicationJSON)
	require.Equal(t, 202, status, string(data))

	assert.Empty(t, svc.ingested)
	require.Len(t, producer.jobs, 1)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, producer.jobs[0].JobID, resp["job_id"])
	assert.Equal(t, "1700000000000-0", resp["stream_id"])
	assert.Equal(t, "a@example.com", producer.jobs[0].Email.Sender)
}

func TestIngestAsyncWithoutProducer(t *testing.T) {
	app := newTestApp(newFakeTriage(), nil)

	status, data := do(t, app, "POST", "/api/emails/ingest?async=true",
		`{"sender":"a@example.com"}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 503, status)
	assert.Equal(t, apperr.CodeQueueError, errorCode(t, data))

	app = newTestApp(newFakeTriage(), &fakeProducer{err: errors.New("redis down")})
	status, _ = do(t, app, "POST", "/api/emails/ingest?async=1", `{"sender":"a@example.com"}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 503, status)
}

func TestIngestMIME(t *testing.T) {
	svc := newFakeTriage()
	app := newTestApp(svc, nil)

	msg := "From: Jane <jane@example.com>\r\nSubject: Refund\r\nDate: Mon, 15 Jan 2024 10:00:00 +0000\r\n" +
		"Content-Type: text/plain\r\n\r\nPlease refund order #A1\r\n"
	status, data := do(t, app, "POST", "/api/emails/ingest/mime", msg, "message/rfc822")
	require.Equal(t, 201, status, string(data))

	require.Len(t, svc.ingested, 1)
	assert.Equal(t, "jane@example.com", svc.ingested[0].Sender)
	assert.Equal(t, "Refund", svc.ingested[0].Subject)

	status, _ = do(t, app, "POST", "/api/emails/ingest/mime", "", "message/rfc822")
	assert.Equal(t, 400, status)
}

func TestIngestMock(t *testing.T) {
	app := newTestApp(newFakeTriage(), nil)

	status, data := do(t, app, "POST", "/api/emails/ingest/mock", "", "")
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"ingested":5}`, string(data))
}

func TestIngestMockAsync(t *testing.T) {
	producer := &fakeProducer{}
	app := newTestApp(newFakeTriage(), producer)

	status, data := do(t, app, "POST", "/api/emails/ingest/mock?async=true", "", "")
	require.Equal(t, 202, status, string(data))
	require.Len(t, producer.samples, 1)
	assert.Empty(t, producer.jobs)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, producer.samples[0].JobID, resp["job_id"])
	assert.Equal(t, "1700000000001-0", resp["stream_id"])
	assert.Equal(t, "queued", resp["status"])

	app = newTestApp(newFakeTriage(), nil)
	status, data = do(t, app, "POST", "/api/emails/ingest/mock?async=true", "", "")
	assert.Equal(t, 503, status)
	assert.Equal(t, apperr.CodeQueueError, errorCode(t, data))
}

func TestListQueryParsing(t *testing.T) {
	svc := newFakeTriage()
	app := newTestApp(svc, nil)

	status, _ := do(t, app, "GET", "/api/emails", "", "")
	require.Equal(t, 200, status)
	require.NotNil(t, svc.lastFilter.Status)
	assert.Equal(t, domain.StatusPending, *svc.lastFilter.Status)
	assert.Equal(t, domain.SortPriorityDesc, svc.lastFilter.Sort)
	assert.Equal(t, 50, svc.lastFilter.Limit)

	status, _ = do(t, app, "GET", "/api/emails?status=all&sort=date_desc&limit=10", "", "")
	require.Equal(t, 200, status)
	assert.Nil(t, svc.lastFilter.Status)
	assert.Equal(t, domain.SortDateDesc, svc.lastFilter.Sort)
	assert.Equal(t, 10, svc.lastFilter.Limit)

	status, data := do(t, app, "GET", "/api/emails?status=closed", "", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, data))

	status, data = do(t, app, "GET", "/api/emails?sort=oldest", "", "")
	assert.Equal(t, 400, status)
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "sort", resp.Error.Details["field"])
	assert.Equal(t, []any{"priority_desc", "date_desc"}, resp.Error.Details["allowed"])
}

func TestGetGenerateSend(t *testing.T) {
	svc := newFakeTriage()
	email, _ := svc.Ingest(context.Background(), domain.RawEmail{Sender: "a@example.com", Subject: "Hi"})
	app := newTestApp(svc, nil)

	status, _ := do(t, app, "GET", "/api/emails/"+email.ID, "", "")
	assert.Equal(t, 200, status)

	status, data := do(t, app, "POST", "/api/emails/"+email.ID+"/generate", "", "")
	require.Equal(t, 200, status)
	var gen in.GenerateReplyResult
	require.NoError(t, json.Unmarshal(data, &gen))
	assert.Equal(t, "Hello", gen.DraftReply.Text)
	assert.Len(t, gen.RetrievalHits, 1)

	status, data = do(t, app, "POST", "/api/emails/"+email.ID+"/send",
		`{"final_text":"Thanks!","send_mode":"mock"}`, fiber.MIMEApplicationJSON)
	require.Equal(t, 200, status, string(data))
	require.NotNil(t, svc.lastSend.FinalText)
	assert.Equal(t, "Thanks!", *svc.lastSend.FinalText)
	assert.Equal(t, domain.SendModeMock, svc.lastSend.SendMode)
	assert.Contains(t, string(data), "mock sent")

	status, _ = do(t, app, "POST", "/api/emails/"+email.ID+"/send", `{"final_text":""}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 200, status)
	require.NotNil(t, svc.lastSend.FinalText)
	assert.Empty(t, *svc.lastSend.FinalText)

	status, data = do(t, app, "POST", "/api/emails/"+email.ID+"/send", `{"send_mode":"mock"}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeMissingField, errorCode(t, data))
}

func TestUnknownEmailIs404(t *testing.T) {
	app := newTestApp(newFakeTriage(), nil)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/emails/nope"},
		{"POST", "/api/emails/nope/generate"},
	} {
		status, data := do(t, app, tc.method, tc.path, "", "")
		assert.Equal(t, 404, status, tc.path)
		assert.Equal(t, apperr.CodeNotFound, errorCode(t, data))
	}

	status, _ := do(t, app, "POST", "/api/emails/nope/send", `{"final_text":"x"}`, fiber.MIMEApplicationJSON)
	assert.Equal(t, 404, status)
}

func TestAnalytics(t *testing.T) {
	app := newTestApp(newFakeTriage(), nil)

	status, data := do(t, app, "GET", "/api/analytics", "", "")
	require.Equal(t, 200, status)
	assert.JSONEq(t,
		`{"total_emails":2,"pending_count":1,"resolved_count":1,"sentiment_breakdown":{"Neutral":2},"avg_priority":0.412}`,
		string(data))
}

type stubChecker struct{ err error }

func (s stubChecker) Ping(context.Context) error { return s.err }

func TestReady(t *testing.T) {
	app := fiber.New()
	NewHealthHandler().
		WithCheck("mongodb", stubChecker{}).
		WithCheck("redis", nil).
		Register(app)

	status, data := do(t, app, "GET", "/ready", "", "")
	assert.Equal(t, 200, status)
	assert.Contains(t, string(data), `"redis":"not configured"`)

	app = fiber.New()
	NewHealthHandler().WithCheck("mongodb", stubChecker{err: errors.New("timeout")}).Register(app)
	status, _ = do(t, app, "GET", "/ready", "", "")
	assert.Equal(t, 503, status)

	status, _ = do(t, app, "GET", "/health", "", "")
	assert.Equal(t, 200, status)
}
