// Package classify wraps the external classification oracle behind typed
// per-kind request/response schemas. Transport or parse failures never
// surface to callers; each kind degrades to a schema-valid fallback instead.
package classify

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/domain"
)

// Kind selects the response schema for a gateway call.
type Kind string

const (
	KindMatch   Kind = "match"
	KindAnalyze Kind = "analyze"
	KindReplan  Kind = "replan"
	KindDraft   Kind = "draft"
)

// RosterClient is the slice of the client roster sent to the matcher.
type RosterClient struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Emails []string `json:"emails"`
}

// MatchInput carries an inbound message plus the account roster.
type MatchInput struct {
	SenderEmail string         `json:"sender_email"`
	SenderName  string         `json:"sender_name"`
	Subject     string         `json:"subject"`
	BodyText    string         `json:"body_text"`
	Roster      []RosterClient `json:"roster"`
}

// MatchedClient is the matcher's best guess.
type MatchedClient struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
}

// MatchResult is the match-kind response schema.
type MatchResult struct {
	Spam       bool                    `json:"spam"`
	Client     *MatchedClient          `json:"matched_client"`
	ProjectID  string                  `json:"project_id"`
	Candidates []domain.MatchCandidate `json:"candidates"`
}

// AnalyzeInput carries a thread's latest message plus context.
type AnalyzeInput struct {
	Subject     string `json:"subject"`
	BodyText    string `json:"body_text"`
	ClientName  string `json:"client_name"`
	ProjectName string `json:"project_name"`
}

// AnalyzeResult is the analyze-kind response schema.
type AnalyzeResult struct {
	Intent            string                `json:"intent"`
	Summary           string                `json:"summary"`
	Urgency           domain.ThreadPriority `json:"urgency"`
	UrgencyReason     string                `json:"urgency_reason"`
	Sentiment         string                `json:"sentiment"`
	ActionItems       []string              `json:"action_items"`
	QuestionsToAnswer []string              `json:"questions_to_answer"`
	ResponseApproach  string                `json:"response_approach"`
}

// ReplanThread summarizes one open thread for the replanner prompt.
type ReplanThread struct {
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Summary  string `json:"summary"`
}

// ReplanInput carries project context for a full replan.
type ReplanInput struct {
	ProjectName string         `json:"project_name"`
	ClientName  string         `json:"client_name"`
	Threads     []ReplanThread `json:"threads"`
}

// ReplanResult is the replan-kind response schema.
type ReplanResult struct {
	Summary string             `json:"summary"`
	Risks   []string           `json:"risks"`
	Plan    domain.ProjectPlan `json:"plan"`
}

// DraftInput carries context for reply drafting.
type DraftInput struct {
	Subject          string `json:"subject"`
	BodyText         string `json:"body_text"`
	ClientName       string `json:"client_name"`
	Intent           string `json:"intent"`
	ResponseApproach string `json:"response_approach"`
}

// DraftResult is the draft-kind response schema.
type DraftResult struct {
	Draft string `json:"draft"`
}

// Gateway is the typed wrapper around the oracle.
type Gateway struct {
	completer Completer
	logger    *zap.Logger
}

// NewGateway constructs the gateway.
func NewGateway(completer Completer, logger *zap.Logger) *Gateway {
	return &Gateway{completer: completer, logger: logger}
}

// Match classifies an inbound message against the roster. Falls back to an
// unmatched, non-spam result.
func (g *Gateway) Match(ctx context.Context, in MatchInput) MatchResult {
	result := FallbackMatch()
	user, err := json.Marshal(in)
	if err != nil {
		g.logger.Warn("marshal match input", zap.Error(err))
		return result
	}
	defaults := map[string]any{
		"spam":       false,
		"candidates": []any{},
	}
	if !g.call(ctx, KindMatch, matchSystemPrompt, string(user), defaults, &result) {
		return FallbackMatch()
	}
	if result.Client != nil {
		if result.Client.Confidence < 0 {
			result.Client.Confidence = 0
		}
		if result.Client.Confidence > 1 {
			result.Client.Confidence = 1
		}
	}
	return result
}

// Analyze classifies intent, sentiment and urgency for a message.
func (g *Gateway) Analyze(ctx context.Context, in AnalyzeInput) AnalyzeResult {
	result := FallbackAnalyze()
	user, err := json.Marshal(in)
	if err != nil {
		g.logger.Warn("marshal analyze input", zap.Error(err))
		return result
	}
	defaults := map[string]any{
		"intent":              "general",
		"urgency":             string(domain.ThreadPriorityNormal),
		"sentiment":           "neutral",
		"action_items":        []any{},
		"questions_to_answer": []any{},
	}
	if !g.call(ctx, KindAnalyze, analyzeSystemPrompt, string(user), defaults, &result) {
		return FallbackAnalyze()
	}
	if !domain.ValidPriority(result.Urgency) {
		result.Urgency = domain.ThreadPriorityNormal
	}
	if result.Intent == "" {
		result.Intent = "general"
	}
	if result.Sentiment == "" {
		result.Sentiment = "neutral"
	}
	return result
}

// Replan produces a structured project plan.
func (g *Gateway) Replan(ctx context.Context, in ReplanInput) ReplanResult {
	result := FallbackReplan()
	user, err := json.Marshal(in)
	if err != nil {
		g.logger.Warn("marshal replan input", zap.Error(err))
		return result
	}
	defaults := map[string]any{
		"summary":                "",
		"risks":                  []any{},
		"plan.immediate":         []any{},
		"plan.this_week":         []any{},
		"plan.upcoming":          []any{},
		"plan.waiting_on_client": []any{},
		"plan.waiting_on_us":     []any{},
	}
	if !g.call(ctx, KindReplan, replanSystemPrompt, string(user), defaults, &result) {
		return FallbackReplan()
	}
	return result
}

// Draft produces a suggested reply. Fallback is an empty draft.
func (g *Gateway) Draft(ctx context.Context, in DraftInput) DraftResult {
	result := FallbackDraft()
	user, err := json.Marshal(in)
	if err != nil {
		g.logger.Warn("marshal draft input", zap.Error(err))
		return result
	}
	if !g.call(ctx, KindDraft, draftSystemPrompt, string(user), map[string]any{"draft": ""}, &result) {
		return FallbackDraft()
	}
	return result
}

// call runs one oracle round trip: complete, strip fences, patch missing
// fields with schema defaults, unmarshal. Returns false when the caller
// should use the fallback.
func (g *Gateway) call(ctx context.Context, kind Kind, system, user string, defaults map[string]any, out any) bool {
	raw, err := g.completer.Complete(ctx, system, user)
	if err != nil {
		g.logger.Warn("oracle call failed", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}

	payload := ExtractJSON(raw)
	if payload == "" || !gjson.Valid(payload) {
		g.logger.Warn("oracle response not valid JSON",
			zap.String("kind", string(kind)),
			zap.Int("response_len", len(raw)))
		return false
	}

	for path, value := range defaults {
		if gjson.Get(payload, path).Exists() {
			continue
		}
		patched, err := sjson.Set(payload, path, value)
		if err != nil {
			g.logger.Warn("patch oracle response", zap.String("path", path), zap.Error(err))
			continue
		}
		payload = patched
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		g.logger.Warn("oracle response schema mismatch",
			zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	return true
}

// FallbackMatch is the schema-valid match fallback: no spam flag, no client,
// no candidates, which routes the message to the unmatched bucket.
func FallbackMatch() MatchResult {
	return MatchResult{Candidates: []domain.MatchCandidate{}}
}

// FallbackAnalyze is the schema-valid analyze fallback.
func FallbackAnalyze() AnalyzeResult {
	return AnalyzeResult{
		Intent:            "general",
		Urgency:           domain.ThreadPriorityNormal,
		Sentiment:         "neutral",
		ActionItems:       []string{},
		QuestionsToAnswer: []string{},
	}
}

// FallbackReplan is the schema-valid replan fallback: an empty plan.
func FallbackReplan() ReplanResult {
	return ReplanResult{Risks: []string{}}
}

// FallbackDraft is the schema-valid draft fallback.
func FallbackDraft() DraftResult {
	return DraftResult{}
}

const matchSystemPrompt = `You match inbound email to a known client roster.
Reply with JSON only, no prose: {"spam": bool, "matched_client": {"id": string, "confidence": number 0..1} or null, "project_id": string or "", "candidates": [{"client_id": string, "client_name": string, "confidence": number, "reason": string}]}.
Mark spam true only for clearly irrelevant or unsolicited mail.`

const analyzeSystemPrompt = `You classify a client email for a services team.
Reply with JSON only: {"intent": one of [bug_report, urgent_issue, feature_request, question, billing, feedback, scope_change, general], "summary": string, "urgency": one of [CRITICAL, HIGH, NORMAL, LOW], "urgency_reason": string, "sentiment": one of [positive, neutral, negative], "action_items": [string], "questions_to_answer": [string], "response_approach": string}.`

const replanSystemPrompt = `You replan a client project from its open conversation threads.
Reply with JSON only: {"summary": string, "risks": [string], "plan": {"immediate": [{"title": string, "detail": string}], "this_week": [...], "upcoming": [...], "waiting_on_client": [...], "waiting_on_us": [...]}}.`

const draftSystemPrompt = `You draft a short professional reply to a client email.
Reply with JSON only: {"draft": string}.`
