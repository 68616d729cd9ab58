package referral

import (
	"context"

	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/draft"
	"go.uber.org/zap"
)

// maxAttempts bounds how many saves may retry a failing referral write
// before it is abandoned for good.
const maxAttempts = 3

// recorder is the storage interface consumed by Service.
type recorder interface {
	Record(ctx context.Context, referredID uuid.UUID, referrerHandle string) error
}

// marker is the pending-referral state persisted in the draft cache.
type marker struct {
	ReferrerHandle string `json:"referrer_handle"`
	Attempts       int    `json:"attempts"`
}

// Service manages the pending-referral lifecycle: set when a referred
// visitor signs up, settled (bounded-retry) on their first successful
// profile save.
type Service struct {
	repo   recorder
	cache  draft.Cache
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(repo recorder, cache draft.Cache, logger *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func slotFor(referredID uuid.UUID) draft.Slot {
	return draft.Slot{Kind: draft.KindReferral, Key: referredID.String()}
}

// SetPending marks that the account was referred by the given handle.
// Overwrites any earlier pending marker (the attempt count restarts).
func (s *Service) SetPending(ctx context.Context, referredID uuid.UUID, referrerHandle string) {
	if referrerHandle == "" {
		return
	}
	s.cache.Save(ctx, slotFor(referredID), &marker{ReferrerHandle: referrerHandle})
}

// Settle attempts to record the pending referral for an account, if
// one exists. The first successful write clears the marker so it is
// never retried; a failed write decrements the budget and either keeps
// the marker for the next save or abandons it permanently.
func (s *Service) Settle(ctx context.Context, referredID uuid.UUID) Outcome {
	slot := slotFor(referredID)

	var m marker
	if !s.cache.Load(ctx, slot, &m) || m.ReferrerHandle == "" {
		return OutcomeRecorded // nothing pending
	}

	if err := s.repo.Record(ctx, referredID, m.ReferrerHandle); err != nil {
		m.Attempts++
		if m.Attempts >= maxAttempts {
			s.cache.Clear(ctx, slot)
			s.logger.Warn("referral abandoned after retry budget",
				zap.String("referred_id", referredID.String()),
				zap.String("referrer", m.ReferrerHandle),
				zap.Int("attempts", m.Attempts),
				zap.Error(err),
			)
			return OutcomePermanentlyFailed
		}
		s.cache.Save(ctx, slot, &m)
		s.logger.Warn("referral write failed, will retry on next save",
			zap.String("referred_id", referredID.String()),
			zap.Int("attempts", m.Attempts),
			zap.Error(err),
		)
		return OutcomePending
	}

	s.cache.Clear(ctx, slot)
	s.logger.Info("referral recorded",
		zap.String("referred_id", referredID.String()),
		zap.String("referrer", m.ReferrerHandle),
	)
	return OutcomeRecorded
}
