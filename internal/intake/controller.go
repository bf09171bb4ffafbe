package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/intake-service/internal/classify"
	"github.com/spec-kit/intake-service/internal/domain"
	"github.com/spec-kit/intake-service/internal/repository"
)

// Outcome names the single terminal state of one inbound message.
type Outcome string

const (
	OutcomeSpam      Outcome = "SPAM"
	OutcomeThread    Outcome = "THREAD"
	OutcomeUnmatched Outcome = "UNMATCHED"
)

// Result reports where an inbound message ended up. Exactly one of Thread
// and Unmatched is set, matching the outcome.
type Result struct {
	Outcome   Outcome
	Thread    *domain.Thread
	Unmatched *domain.UnmatchedEmail
}

// Controller runs the matching stage: every inbound message becomes exactly
// one of a thread, an unmatched-mail row, or a discarded spam.
type Controller struct {
	gateway   *classify.Gateway
	clients   repository.ClientRepository
	threads   repository.ThreadRepository
	messages  repository.MessageRepository
	unmatched repository.UnmatchedEmailRepository
	logger    *zap.Logger

	autoThreshold    float64
	suggestThreshold float64
	now              func() time.Time
}

// NewController constructs a Controller with the given match thresholds.
func NewController(gateway *classify.Gateway, clients repository.ClientRepository, threads repository.ThreadRepository, messages repository.MessageRepository, unmatched repository.UnmatchedEmailRepository, autoThreshold, suggestThreshold float64, logger *zap.Logger) *Controller {
	return &Controller{
		gateway:          gateway,
		clients:          clients,
		threads:          threads,
		messages:         messages,
		unmatched:        unmatched,
		logger:           logger,
		autoThreshold:    autoThreshold,
		suggestThreshold: suggestThreshold,
		now:              time.Now,
	}
}

// Process matches the message against the client roster and routes it.
// Confidence at or above the auto threshold creates a ready thread; at or
// above the suggest threshold a thread flagged for triage; below that the
// message is parked as unmatched mail with the oracle's candidates attached.
func (c *Controller) Process(ctx context.Context, msg *InboundMessage) (*Result, error) {
	roster, err := c.roster(ctx)
	if err != nil {
		return nil, err
	}

	match := c.gateway.Match(ctx, classify.MatchInput{
		SenderEmail: msg.SenderEmail,
		SenderName:  msg.SenderName,
		Subject:     msg.Subject,
		BodyText:    msg.BodyText,
		Roster:      roster,
	})

	if match.Spam {
		c.logger.Info("inbound discarded as spam",
			zap.String("sender", msg.SenderEmail),
			zap.String("subject", msg.Subject))
		return &Result{Outcome: OutcomeSpam}, nil
	}

	if match.Client != nil && match.Client.Confidence >= c.suggestThreshold {
		needsTriage := match.Client.Confidence < c.autoThreshold
		thread, err := c.createThread(ctx, msg, match, needsTriage)
		if err != nil {
			return nil, err
		}
		return &Result{Outcome: OutcomeThread, Thread: thread}, nil
	}

	parked, err := c.park(ctx, msg, match.Candidates)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeUnmatched, Unmatched: parked}, nil
}

// Adopt turns a parked unmatched email into a thread owned by the given
// client, for manual triage resolution. The caller re-enters the pipeline
// with the returned thread.
func (c *Controller) Adopt(ctx context.Context, email *domain.UnmatchedEmail, clientID string) (*domain.Thread, error) {
	if _, err := c.clients.GetByID(ctx, clientID); err != nil {
		return nil, fmt.Errorf("load client %s: %w", clientID, err)
	}

	msg := &InboundMessage{
		SenderEmail: email.SenderEmail,
		SenderName:  email.SenderName,
		Subject:     email.Subject,
		BodyText:    email.BodyText,
		ReceivedAt:  email.ReceivedAt,
	}
	msg.Fingerprint = contentFingerprint(msg)
	match := classify.MatchResult{Client: &classify.MatchedClient{ID: clientID, Confidence: 1}}
	return c.createThread(ctx, msg, match, false)
}

func (c *Controller) roster(ctx context.Context) ([]classify.RosterClient, error) {
	clients, err := c.clients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load client roster: %w", err)
	}

	roster := make([]classify.RosterClient, 0, len(clients))
	for i := range clients {
		cl := &clients[i]
		emails := make([]string, 0, len(cl.ContactEmails)+1)
		emails = append(emails, cl.Email)
		emails = append(emails, cl.ContactEmails...)
		roster = append(roster, classify.RosterClient{ID: cl.ID, Name: cl.Name, Emails: emails})
	}
	return roster, nil
}

func (c *Controller) createThread(ctx context.Context, msg *InboundMessage, match classify.MatchResult, needsTriage bool) (*domain.Thread, error) {
	// The fingerprint makes creation idempotent: a retried job or a
	// redelivered webhook finds the message it already stored and returns
	// its thread instead of creating a second one.
	if msg.Fingerprint != "" {
		existing, err := c.messages.GetByFingerprint(ctx, msg.Fingerprint)
		switch {
		case err == nil:
			c.logger.Info("inbound already threaded",
				zap.String("thread_id", existing.ThreadID),
				zap.String("fingerprint", msg.Fingerprint))
			return c.threads.GetByID(ctx, existing.ThreadID)
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("look up message fingerprint: %w", err)
		}
	}

	clientID := match.Client.ID
	thread := &domain.Thread{
		ClientID:        &clientID,
		Subject:         msg.Subject,
		Status:          domain.ThreadStatusOpen,
		Priority:        domain.ThreadPriorityNormal,
		MatchConfidence: match.Client.Confidence,
		NeedsTriage:     needsTriage,
		EscalationTier:  domain.EscalationTierNormal,
		LastActivityAt:  msg.ReceivedAt,
	}
	if match.ProjectID != "" {
		projectID := match.ProjectID
		thread.ProjectID = &projectID
	}

	if err := c.threads.Create(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	if err := c.messages.Create(ctx, msg.AsDomainMessage(thread.ID)); err != nil {
		return nil, fmt.Errorf("attach message to thread %s: %w", thread.ID, err)
	}

	c.logger.Info("thread created from inbound",
		zap.String("thread_id", thread.ID),
		zap.String("client_id", clientID),
		zap.Float64("confidence", match.Client.Confidence),
		zap.Bool("needs_triage", needsTriage))
	return thread, nil
}

func (c *Controller) park(ctx context.Context, msg *InboundMessage, candidates []domain.MatchCandidate) (*domain.UnmatchedEmail, error) {
	email := &domain.UnmatchedEmail{
		SenderEmail: msg.SenderEmail,
		SenderName:  msg.SenderName,
		Subject:     msg.Subject,
		BodyText:    msg.BodyText,
		Status:      domain.UnmatchedEmailStatusPending,
		Candidates:  candidates,
		ReceivedAt:  msg.ReceivedAt,
	}
	if err := c.unmatched.Create(ctx, email); err != nil {
		return nil, fmt.Errorf("park unmatched email: %w", err)
	}

	c.logger.Info("inbound parked as unmatched",
		zap.String("sender", msg.SenderEmail),
		zap.Int("candidates", len(candidates)))
	return email, nil
}
