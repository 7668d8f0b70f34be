package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/api/metrics"
	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

const (
	// replayWait bounds how long a retry waits for the send holding its
	// Idempotency-Key before giving up with ErrSendInProgress.
	replayWait = 2 * time.Second
	replayPoll = 20 * time.Millisecond
)

// SendService is the enforcement point in front of message storage.
type SendService struct {
	approvals   ports.ApprovalChecker
	users       ports.UserRepository
	issuer      ports.TokenIssuer
	moderation  ports.ModerationRepository
	messages    ports.MessageRepository
	idempotency ports.IdempotencyStore // optional
	log         zerolog.Logger
}

func NewSendService(
	approvals ports.ApprovalChecker,
	users ports.UserRepository,
	issuer ports.TokenIssuer,
	moderation ports.ModerationRepository,
	messages ports.MessageRepository,
	idempotency ports.IdempotencyStore,
	log zerolog.Logger,
) *SendService {
	return &SendService{
		approvals:   approvals,
		users:       users,
		issuer:      issuer,
		moderation:  moderation,
		messages:    messages,
		idempotency: idempotency,
		log:         log,
	}
}

// TrySend admits or rejects one send attempt:
//  1. the sender must be approved
//  2. the server derives the current-window token; a client hint must match it
//  3. the token's status is merged with any sanction still running on the
//     sender's earlier tokens
//  4. Frozen and TempBanned reject, Active and Warned admit
//  5. the ciphertext is stored under the token
//
// The status read and the insert are not atomic: a ban committed after step 3
// applies to the next attempt.
func (s *SendService) TrySend(ctx context.Context, in ports.SendInput) (*ports.SendResult, error) {
	res, err := s.trySend(ctx, in)
	metrics.SendAttemptsTotal.WithLabelValues(sendOutcome(res, err)).Inc()
	return res, err
}

func (s *SendService) trySend(ctx context.Context, in ports.SendInput) (*ports.SendResult, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	ok, err := s.approvals.IsApproved(ctx, in.SenderID)
	if err != nil {
		return nil, storageErr("approval check", err)
	}
	if !ok {
		return nil, domain.ErrNotApproved
	}

	window := s.issuer.CurrentWindow(now)
	token := s.issuer.CachedTokenForCurrentWindow(in.SenderID, now)
	if in.TokenHint != "" && subtle.ConstantTimeCompare([]byte(in.TokenHint), []byte(token)) != 1 {
		return nil, fmt.Errorf("window %s: %w", window, domain.ErrWindowMismatch)
	}

	if in.IdempotencyKey == "" || s.idempotency == nil {
		return s.admit(ctx, in, token, window, now)
	}
	id, reserved, err := s.claim(ctx, token, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if id != "" {
		return &ports.SendResult{MessageID: id, Token: token, WindowID: window, Replayed: true}, nil
	}
	if !reserved {
		return s.admit(ctx, in, token, window, now)
	}
	return s.admitReserved(ctx, in, token, window, now)
}

// admitReserved admits a send that holds its Idempotency-Key. A rejected or
// failed send releases the key so a retry can go through.
func (s *SendService) admitReserved(ctx context.Context, in ports.SendInput, token domain.Token, window domain.WindowID, now time.Time) (*ports.SendResult, error) {
	res, err := s.admit(ctx, in, token, window, now)
	if err != nil {
		s.release(token, in.IdempotencyKey)
		return nil, err
	}
	if err := s.idempotency.Remember(ctx, token, in.IdempotencyKey, res.MessageID, domain.WindowDuration); err != nil {
		// the pending marker stays until its TTL: retries get
		// ErrSendInProgress, never a second insert
		s.log.Warn().Err(err).Str("token", string(token)).Msg("failed to store idempotency key")
	}
	return res, nil
}

// admit runs the status check and stores the message.
func (s *SendService) admit(ctx context.Context, in ports.SendInput, token domain.Token, window domain.WindowID, now time.Time) (*ports.SendResult, error) {
	status, err := s.statusFor(ctx, token, in.SenderID, now)
	if err != nil {
		return nil, err
	}

	warned := false
	switch status.Kind {
	case domain.StatusFrozen, domain.StatusTempBanned:
		s.log.Info().
			Str("token", string(token)).
			Str("status", status.Kind.String()).
			Dur("remaining", status.Remaining).
			Msg("send rejected")
		return nil, &domain.BannedError{Status: status}
	case domain.StatusWarned:
		warned = true
	case domain.StatusActive:
	default:
		return nil, fmt.Errorf("send: unhandled status kind %d", status.Kind)
	}

	if err := s.checkRecipient(ctx, in.RecipientID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SenderToken: token,
		RecipientID: in.RecipientID,
		Ciphertext:  in.Ciphertext,
		WindowID:    window,
		CreatedAt:   now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storageErr("save message", err)
	}

	s.log.Info().
		Str("token", string(token)).
		Str("message_id", msg.ID).
		Bool("warned", warned).
		Msg("message accepted")

	return &ports.SendResult{
		MessageID: msg.ID,
		Token:     token,
		WindowID:  window,
		Warned:    warned,
	}, nil
}

// statusFor touches the current token's record, then folds in sanctions that
// are still running on any other token issued to the same sender.
func (s *SendService) statusFor(ctx context.Context, token domain.Token, senderID string, now time.Time) (domain.Status, error) {
	rec, err := s.moderation.Touch(ctx, token, senderID, now)
	if err != nil {
		return domain.Status{}, storageErr("load moderation record", err)
	}
	status := rec.StatusAt(now)
	if status.Kind == domain.StatusFrozen {
		return status, nil
	}

	active, err := s.moderation.ListActiveBySubject(ctx, senderID, now)
	if err != nil {
		return domain.Status{}, storageErr("load sanctions", err)
	}
	for _, other := range active {
		if other.Token == token {
			continue
		}
		status = domain.Worse(status, other.StatusAt(now))
	}
	return status, nil
}

func (s *SendService) checkRecipient(ctx context.Context, recipientID string) error {
	if recipientID == "" {
		return domain.ErrInvalidRecipient
	}
	u, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidRecipient
		}
		return storageErr("load recipient", err)
	}
	if u.Role != domain.RoleReceiver || !u.IsApproved() {
		return domain.ErrInvalidRecipient
	}
	return nil
}

// claim reserves key for this send, or returns the message id an earlier
// send stored under it. While another send holds the key it polls until that
// send finishes or replayWait passes. A failing store degrades to sending
// without a reservation.
func (s *SendService) claim(ctx context.Context, token domain.Token, key string) (string, bool, error) {
	deadline := time.NewTimer(replayWait)
	defer deadline.Stop()

	for {
		id, reserved, err := s.idempotency.Reserve(ctx, token, key, domain.WindowDuration)
		switch {
		case err != nil:
			metrics.IdempotencyLookupsTotal.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("token", string(token)).Msg("idempotency reserve failed, sending anyway")
			return "", false, nil
		case reserved:
			metrics.IdempotencyLookupsTotal.WithLabelValues("miss").Inc()
			return "", true, nil
		case id != "":
			metrics.IdempotencyLookupsTotal.WithLabelValues("hit").Inc()
			s.log.Info().Str("token", string(token)).Str("message_id", id).Msg("idempotent replay")
			return id, false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-deadline.C:
			metrics.IdempotencyLookupsTotal.WithLabelValues("in_progress").Inc()
			return "", false, domain.ErrSendInProgress
		case <-time.After(replayPoll):
		}
	}
}

// release frees a reservation whose send was rejected or failed, so a retry
// can go through. It must not depend on the request context being alive.
func (s *SendService) release(token domain.Token, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.idempotency.Release(ctx, token, key); err != nil {
		s.log.Warn().Err(err).Str("token", string(token)).Msg("failed to release idempotency key")
	}
}

func sendOutcome(res *ports.SendResult, err error) string {
	var banned *domain.BannedError
	switch {
	case err == nil && res != nil && res.Replayed:
		return "replayed"
	case err == nil:
		return "accepted"
	case errors.As(err, &banned):
		return banned.Status.Kind.String()
	case errors.Is(err, domain.ErrNotApproved):
		return "not_approved"
	case errors.Is(err, domain.ErrWindowMismatch):
		return "window_mismatch"
	case errors.Is(err, domain.ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, domain.ErrSendInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
