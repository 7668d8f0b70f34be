package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/api/metrics"
	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

const defaultLedgerAttempts = 5

// LedgerConfig tunes the moderation ledger.
type LedgerConfig struct {
	// MaxAttempts bounds compare-and-swap retries per transition.
	MaxAttempts int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// ModerationService is the authoritative per-token state machine. Mutations
// for one token are funnelled through the keyed executor and committed with a
// versioned write that also appends the audit entry.
type ModerationService struct {
	repo        ports.ModerationRepository
	messages    ports.MessageRepository
	exec        ports.KeyedExecutor
	maxAttempts int
	now         func() time.Time
	log         zerolog.Logger
}

func NewModerationService(
	repo ports.ModerationRepository,
	messages ports.MessageRepository,
	exec ports.KeyedExecutor,
	cfg LedgerConfig,
	log zerolog.Logger,
) *ModerationService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultLedgerAttempts
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &ModerationService{
		repo:        repo,
		messages:    messages,
		exec:        exec,
		maxAttempts: cfg.MaxAttempts,
		now:         cfg.Clock,
		log:         log,
	}
}

// mutation applies one transition to rec and returns the audit details.
type mutation func(rec *domain.ModerationRecord, now time.Time) (string, error)

func (s *ModerationService) Warn(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error) {
	return s.transition(ctx, token, moderatorID, domain.ActionWarn, func(rec *domain.ModerationRecord, now time.Time) (string, error) {
		rec.Warn(now)
		return "", nil
	})
}

func (s *ModerationService) Freeze(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error) {
	return s.transition(ctx, token, moderatorID, domain.ActionFreeze, func(rec *domain.ModerationRecord, now time.Time) (string, error) {
		rec.Freeze(now)
		return "", nil
	})
}

// Unfreeze is the explicit reversal of Freeze. It fails with
// domain.ErrNotFrozen, and writes nothing, when the token is not frozen.
func (s *ModerationService) Unfreeze(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error) {
	return s.transition(ctx, token, moderatorID, domain.ActionUnfreeze, func(rec *domain.ModerationRecord, now time.Time) (string, error) {
		if !rec.IsFrozen {
			return "", domain.ErrNotFrozen
		}
		rec.Unfreeze(now)
		return "", nil
	})
}

// TempBan blocks the token for d (5m or 1h). If a longer temp ban is already
// running its expiry is kept; the action is still audited.
func (s *ModerationService) TempBan(ctx context.Context, token domain.Token, moderatorID string, d time.Duration) (*domain.ModerationRecord, error) {
	banType, err := domain.BanTypeFor(d)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, token, moderatorID, domain.ActionForBan(banType), func(rec *domain.ModerationRecord, now time.Time) (string, error) {
		moved, err := rec.TempBan(d, now)
		if err != nil {
			return "", err
		}
		if !moved {
			return fmt.Sprintf("expiry kept at %s", rec.BanExpiry.UTC().Format(time.RFC3339)), nil
		}
		return fmt.Sprintf("expires at %s", rec.BanExpiry.UTC().Format(time.RFC3339)), nil
	})
}

// ResolveFlag marks a flagged message as handled. It has no effect on any
// token and writes no audit entry.
func (s *ModerationService) ResolveFlag(ctx context.Context, messageID, moderatorID string) (*domain.Message, error) {
	msg, err := s.messages.Resolve(ctx, messageID, moderatorID, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, err
		}
		return nil, storageErr("resolve flag", err)
	}
	s.log.Info().Str("message_id", messageID).Str("moderator_id", moderatorID).Msg("flag resolved")
	return msg, nil
}

// StatusOf evaluates the token at now. Unknown tokens are Active; reading
// never creates a record.
func (s *ModerationService) StatusOf(ctx context.Context, token domain.Token, now time.Time) (domain.Status, error) {
	rec, err := s.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.Status{Kind: domain.StatusActive, BanType: domain.BanNone}, nil
		}
		return domain.Status{}, storageErr("status of", err)
	}
	return rec.StatusAt(now), nil
}

func (s *ModerationService) Record(ctx context.Context, token domain.Token) (*domain.ModerationRecord, error) {
	rec, err := s.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err
		}
		return nil, storageErr("get record", err)
	}
	return rec, nil
}

func (s *ModerationService) transition(
	ctx context.Context,
	token domain.Token,
	moderatorID string,
	action domain.ActionType,
	mutate mutation,
) (*domain.ModerationRecord, error) {
	if !token.Valid() {
		return nil, domain.ErrInvalidToken
	}

	start := time.Now()
	var out *domain.ModerationRecord
	err := s.exec.Submit(ctx, string(token), func(ctx context.Context) error {
		rec, err := s.commit(ctx, token, moderatorID, action, mutate)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		metrics.LedgerApplyDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, storageErr(string(action), err)
		}
		return nil, err
	}

	metrics.LedgerApplyDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
	metrics.ModerationActionsTotal.WithLabelValues(string(action)).Inc()
	s.log.Info().
		Str("token", string(token)).
		Str("action", string(action)).
		Str("moderator_id", moderatorID).
		Msg("moderation action applied")
	return out, nil
}

// commit runs the read-mutate-write loop. Losing a version race re-reads the
// record; after maxAttempts the caller gets ErrStorageUnavailable.
func (s *ModerationService) commit(
	ctx context.Context,
	token domain.Token,
	moderatorID string,
	action domain.ActionType,
	mutate mutation,
) (*domain.ModerationRecord, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		now := s.now().UTC()

		rec, err := s.repo.Get(ctx, token)
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			rec = domain.NewModerationRecord(token, "", now)
		case err != nil:
			return nil, storageErr(string(action), err)
		}

		details, err := mutate(rec, now)
		if err != nil {
			return nil, err
		}

		entry := &domain.AuditLogEntry{
			ActionType:  action,
			Token:       token,
			ModeratorID: moderatorID,
			Details:     details,
			CreatedAt:   now,
		}
		err = s.repo.Apply(ctx, rec, entry)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, storageErr(string(action), err)
		}

		metrics.LedgerConflictsTotal.Inc()
		s.log.Debug().
			Str("token", string(token)).
			Str("action", string(action)).
			Int("attempt", attempt).
			Msg("version conflict, retrying")
	}
	return nil, fmt.Errorf("%s: %d attempts lost the version race: %w", action, s.maxAttempts, domain.ErrStorageUnavailable)
}
