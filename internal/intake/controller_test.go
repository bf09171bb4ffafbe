package intake

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/classify"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/repository"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, s.err
}

func matchResponse(clientID string, confidence float64) string {
	return fmt.Sprintf(`{"spam":false,"matched_client":{"id":%q,"confidence":%g},"candidates":[]}`, clientID, confidence)
}

type fakeClientRepo struct {
	clients []domain.Client
}

func (f *fakeClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	for i := range f.clients {
		if f.clients[i].ID == id {
			return &f.clients[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeClientRepo) ListAll(ctx context.Context) ([]domain.Client, error) {
	return f.clients, nil
}

type fakeThreadRepo struct {
	created []*domain.Thread
}

func (f *fakeThreadRepo) Create(ctx context.Context, thread *domain.Thread) error {
	thread.ID = fmt.Sprintf("t-%d", len(f.created)+1)
	f.created = append(f.created, thread)
	return nil
}

func (f *fakeThreadRepo) Update(ctx context.Context, thread *domain.Thread) error { return nil }
func (f *fakeThreadRepo) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	for _, t := range f.created {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}
func (f *fakeThreadRepo) ListUnresolved(ctx context.Context) ([]domain.Thread, error) {
	return nil, nil
}
func (f *fakeThreadRepo) ListUnresolvedByProject(ctx context.Context, projectID string) ([]domain.Thread, error) {
	return nil, nil
}
func (f *fakeThreadRepo) ListWithFilter(ctx context.Context, filter repository.ThreadFilter) ([]domain.Thread, error) {
	return nil, nil
}
func (f *fakeThreadRepo) OpenCountsByAssignee(ctx context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

type fakeMessageRepo struct {
	created []*domain.Message
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *domain.Message) error {
	message.ID = fmt.Sprintf("m-%d", len(f.created)+1)
	f.created = append(f.created, message)
	return nil
}

func (f *fakeMessageRepo) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeMessageRepo) LatestByThread(ctx context.Context, threadID string) (*domain.Message, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeMessageRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Message, error) {
	for _, m := range f.created {
		if m.Fingerprint == fingerprint {
			return m, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeUnmatchedRepo struct {
	created []*domain.UnmatchedEmail
}

func (f *fakeUnmatchedRepo) Create(ctx context.Context, email *domain.UnmatchedEmail) error {
	email.ID = fmt.Sprintf("u-%d", len(f.created)+1)
	f.created = append(f.created, email)
	return nil
}

func (f *fakeUnmatchedRepo) GetByID(ctx context.Context, id string) (*domain.UnmatchedEmail, error) {
	for _, e := range f.created {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUnmatchedRepo) UpdateStatus(ctx context.Context, id string, status domain.UnmatchedEmailStatus) error {
	return nil
}

func (f *fakeUnmatchedRepo) ListPending(ctx context.Context, limit, offset int) ([]domain.UnmatchedEmail, error) {
	return nil, nil
}

type controllerFixture struct {
	controller *Controller
	threads    *fakeThreadRepo
	messages   *fakeMessageRepo
	unmatched  *fakeUnmatchedRepo
}

func newFixture(oracleResponse string) *controllerFixture {
	gateway := classify.NewGateway(&stubCompleter{response: oracleResponse}, zap.NewNop())
	clients := &fakeClientRepo{clients: []domain.Client{
		{ID: "c1", Name: "Acme", Email: "ops@acme.test", ContactEmails: []string{"jane@acme.test"}},
	}}
	f := &controllerFixture{
		threads:   &fakeThreadRepo{},
		messages:  &fakeMessageRepo{},
		unmatched: &fakeUnmatchedRepo{},
	}
	f.controller = NewController(gateway, clients, f.threads, f.messages, f.unmatched, 0.85, 0.5, zap.NewNop())
	return f
}

func inbound() *InboundMessage {
	return &InboundMessage{
		SenderEmail: "jane@acme.test",
		SenderName:  "Jane",
		Subject:     "Checkout is broken",
		BodyText:    "Customers cannot pay since this morning.",
		ReceivedAt:  time.Now(),
	}
}

func TestProcessAutoMatchAtThreshold(t *testing.T) {
	f := newFixture(matchResponse("c1", 0.85))

	res, err := f.controller.Process(context.Background(), inbound())
	require.NoError(t, err)

	assert.Equal(t, OutcomeThread, res.Outcome)
	require.NotNil(t, res.Thread)
	assert.False(t, res.Thread.NeedsTriage, "0.85 is inclusive for auto match")
	require.NotNil(t, res.Thread.ClientID)
	assert.Equal(t, "c1", *res.Thread.ClientID)
	assert.Equal(t, 0.85, res.Thread.MatchConfidence)
	assert.Equal(t, domain.ThreadStatusOpen, res.Thread.Status)

	require.Len(t, f.messages.created, 1)
	assert.Equal(t, res.Thread.ID, f.messages.created[0].ThreadID)
	assert.Equal(t, domain.MessageDirectionInbound, f.messages.created[0].Direction)
	assert.Empty(t, f.unmatched.created)
}

func TestProcessSameFingerprintReusesThread(t *testing.T) {
	f := newFixture(matchResponse("c1", 0.92))

	msg := inbound()
	msg.Fingerprint = contentFingerprint(msg)

	first, err := f.controller.Process(context.Background(), msg)
	require.NoError(t, err)
	second, err := f.controller.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, first.Thread.ID, second.Thread.ID)
	assert.Len(t, f.threads.created, 1, "a redelivered message must not open a second thread")
	assert.Len(t, f.messages.created, 1)
}

func TestProcessSuggestMatchFlagsTriage(t *testing.T) {
	f := newFixture(matchResponse("c1", 0.5))

	res, err := f.controller.Process(context.Background(), inbound())
	require.NoError(t, err)

	assert.Equal(t, OutcomeThread, res.Outcome)
	assert.True(t, res.Thread.NeedsTriage, "0.5 is inclusive for suggest match")
	assert.Empty(t, f.unmatched.created)
}

func TestProcessLowConfidenceParksUnmatched(t *testing.T) {
	f := newFixture(`{"spam":false,"matched_client":{"id":"c1","confidence":0.3},"candidates":[{"client_id":"c1","client_name":"Acme","confidence":0.3}]}`)

	res, err := f.controller.Process(context.Background(), inbound())
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnmatched, res.Outcome)
	require.NotNil(t, res.Unmatched)
	assert.Equal(t, domain.UnmatchedEmailStatusPending, res.Unmatched.Status)
	require.Len(t, res.Unmatched.Candidates, 1)
	assert.Equal(t, "c1", res.Unmatched.Candidates[0].ClientID)
	assert.Empty(t, f.threads.created)
	assert.Empty(t, f.messages.created)
}

func TestProcessSpamIsDiscarded(t *testing.T) {
	f := newFixture(`{"spam":true,"candidates":[]}`)

	res, err := f.controller.Process(context.Background(), inbound())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSpam, res.Outcome)
	assert.Nil(t, res.Thread)
	assert.Nil(t, res.Unmatched)
	assert.Empty(t, f.threads.created)
	assert.Empty(t, f.unmatched.created)
}

func TestProcessOracleFailureParksUnmatched(t *testing.T) {
	gateway := classify.NewGateway(&stubCompleter{err: fmt.Errorf("oracle down")}, zap.NewNop())
	f := newFixture("")
	f.controller.gateway = gateway

	res, err := f.controller.Process(context.Background(), inbound())
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnmatched, res.Outcome, "fallback is never spam and never a thread")
}

func TestAdoptCreatesThreadForClient(t *testing.T) {
	f := newFixture("")
	email := &domain.UnmatchedEmail{
		ID:          "u-1",
		SenderEmail: "jane@acme.test",
		SenderName:  "Jane",
		Subject:     "Old unmatched question",
		BodyText:    "Still waiting on an answer.",
		Status:      domain.UnmatchedEmailStatusPending,
		ReceivedAt:  time.Now().Add(-48 * time.Hour),
	}

	thread, err := f.controller.Adopt(context.Background(), email, "c1")
	require.NoError(t, err)

	assert.False(t, thread.NeedsTriage)
	require.NotNil(t, thread.ClientID)
	assert.Equal(t, "c1", *thread.ClientID)
	assert.Equal(t, email.ReceivedAt, thread.LastActivityAt)
	require.Len(t, f.messages.created, 1)
}

func TestAdoptUnknownClientFails(t *testing.T) {
	f := newFixture("")
	_, err := f.controller.Adopt(context.Background(), &domain.UnmatchedEmail{ID: "u-1"}, "nope")
	assert.Error(t, err)
}
