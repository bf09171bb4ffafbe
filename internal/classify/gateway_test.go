package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/domain"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	return s.response, s.err
}

func TestMatchParsesFencedResponse(t *testing.T) {
	stub := &stubCompleter{response: "```json\n{\"spam\": false, \"matched_client\": {\"id\": \"c1\", \"confidence\": 0.92}, \"candidates\": []}\n```"}
	gw := NewGateway(stub, zap.NewNop())

	result := gw.Match(context.Background(), MatchInput{SenderEmail: "ana@acme.io"})

	require.NotNil(t, result.Client)
	assert.Equal(t, "c1", result.Client.ID)
	assert.InDelta(t, 0.92, result.Client.Confidence, 1e-9)
	assert.False(t, result.Spam)
}

func TestMatchClampsConfidence(t *testing.T) {
	stub := &stubCompleter{response: `{"spam": false, "matched_client": {"id": "c1", "confidence": 1.7}}`}
	gw := NewGateway(stub, zap.NewNop())

	result := gw.Match(context.Background(), MatchInput{})

	require.NotNil(t, result.Client)
	assert.Equal(t, 1.0, result.Client.Confidence)
}

func TestMatchFallbackOnTransportError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	gw := NewGateway(stub, zap.NewNop())

	result := gw.Match(context.Background(), MatchInput{})

	assert.False(t, result.Spam)
	assert.Nil(t, result.Client)
	assert.Empty(t, result.Candidates)
}

func TestAnalyzeFallbackOnGarbage(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "prose", response: "I could not classify this message."},
		{name: "truncated", response: `{"intent": "bug_report", "urg`},
		{name: "empty", response: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewGateway(&stubCompleter{response: tt.response}, zap.NewNop())

			result := gw.Analyze(context.Background(), AnalyzeInput{})

			assert.Equal(t, "general", result.Intent)
			assert.Equal(t, domain.ThreadPriorityNormal, result.Urgency)
			assert.Equal(t, "neutral", result.Sentiment)
			assert.Empty(t, result.ActionItems)
		})
	}
}

func TestAnalyzePatchesMissingFields(t *testing.T) {
	stub := &stubCompleter{response: `{"intent": "bug_report", "summary": "login broken", "urgency": "HIGH"}`}
	gw := NewGateway(stub, zap.NewNop())

	result := gw.Analyze(context.Background(), AnalyzeInput{})

	assert.Equal(t, "bug_report", result.Intent)
	assert.Equal(t, domain.ThreadPriorityHigh, result.Urgency)
	assert.Equal(t, "neutral", result.Sentiment)
	assert.NotNil(t, result.ActionItems)
}

func TestAnalyzeRejectsUnknownUrgency(t *testing.T) {
	stub := &stubCompleter{response: `{"intent": "question", "urgency": "SEVERE", "sentiment": "neutral"}`}
	gw := NewGateway(stub, zap.NewNop())

	result := gw.Analyze(context.Background(), AnalyzeInput{})

	assert.Equal(t, domain.ThreadPriorityNormal, result.Urgency)
}

func TestReplanParsesPlanBuckets(t *testing.T) {
	stub := &stubCompleter{response: `{
		"summary": "on track overall",
		"risks": ["client response latency"],
		"plan": {
			"immediate": [{"title": "Fix login redirect", "detail": "prod"}],
			"this_week": [{"title": "Ship invoice export"}]
		}
	}`}
	gw := NewGateway(stub, zap.NewNop())

	result := gw.Replan(context.Background(), ReplanInput{ProjectName: "Portal"})

	assert.Equal(t, "on track overall", result.Summary)
	require.Len(t, result.Plan.Immediate, 1)
	assert.Equal(t, "Fix login redirect", result.Plan.Immediate[0].Title)
	assert.Empty(t, result.Plan.Upcoming)
}

func TestDraftFallbackIsEmpty(t *testing.T) {
	gw := NewGateway(&stubCompleter{err: errors.New("timeout")}, zap.NewNop())

	result := gw.Draft(context.Background(), DraftInput{})

	assert.Empty(t, result.Draft)
}
