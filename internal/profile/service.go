package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/draft"
	"github.com/tapfolio/tapfolio/internal/referral"
	"github.com/tapfolio/tapfolio/pkg/handle"
	"go.uber.org/zap"
)

// store is the storage interface consumed by Service.
type store interface {
	FetchByUserID(ctx context.Context, id uuid.UUID) (*Profile, error)
	FetchByHandle(ctx context.Context, h string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// referralSettler settles a pending referral after a successful save.
type referralSettler interface {
	Settle(ctx context.Context, referredID uuid.UUID) referral.Outcome
}

// Actor is the session identity a save acts under. EmailVerified comes
// from the auth provider, never from user input.
type Actor struct {
	UserID        uuid.UUID
	Email         string
	EmailVerified bool
}

// Service coordinates user-initiated profile saves: validation, session
// checks, draft persistence, the bounded-timeout remote write, and
// post-save cleanup.
type Service struct {
	store       store
	drafts      draft.Cache
	referrals   referralSettler
	saveTimeout time.Duration
	logger      *zap.Logger
}

// NewService creates a Service. saveTimeout bounds the remote write of
// one save attempt; zero means 8 seconds.
func NewService(st store, drafts draft.Cache, referrals referralSettler, saveTimeout time.Duration, logger *zap.Logger) *Service {
	if saveTimeout == 0 {
		saveTimeout = 8 * time.Second
	}
	return &Service{
		store:       st,
		drafts:      drafts,
		referrals:   referrals,
		saveTimeout: saveTimeout,
		logger:      logger,
	}
}

func editSlot(userID uuid.UUID) draft.Slot {
	return draft.Slot{Kind: draft.KindEdit, Key: userID.String()}
}

func createSlot(token string) draft.Slot {
	return draft.Slot{Kind: draft.KindCreate, Key: token}
}

// Save performs one user-initiated save: exactly one remote write
// attempt, preceded by an unconditional local draft write so a network
// failure never loses the edit. createToken identifies a first-time
// creation flow's draft slot; empty for post-publish edits.
func (s *Service) Save(ctx context.Context, actor Actor, in *Profile, createToken string) (*Profile, error) {
	in.Username = handle.Normalize(in.Username)
	if in.Username == "" {
		return nil, ErrHandleRequired
	}
	if err := handle.Validate(in.Username); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandleInvalid, err)
	}

	// Stale-tab protection: the acting session must own the profile
	// being written.
	if actor.UserID == uuid.Nil {
		return nil, ErrSessionMismatch
	}
	if in.ID == uuid.Nil {
		in.ID = actor.UserID
	}
	if in.ID != actor.UserID {
		return nil, ErrSessionMismatch
	}

	in.EmailVerified = actor.EmailVerified

	// Draft first, unconditionally: whatever happens to the remote
	// write, the edit is recoverable.
	s.drafts.Save(ctx, editSlot(actor.UserID), in)

	wctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()

	saved, err := s.store.Upsert(wctx, in)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(wctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("profile save timed out",
				zap.String("user_id", actor.UserID.String()),
				zap.Duration("timeout", s.saveTimeout),
			)
			return nil, ErrSaveTimeout
		}
		return nil, err
	}

	// Confirmed remote success: only now do the drafts go away.
	s.drafts.Clear(ctx, editSlot(actor.UserID))
	if createToken != "" {
		s.drafts.Clear(ctx, createSlot(createToken))
	}

	// Secondary write, never atomic with the save and never fatal.
	if s.referrals != nil {
		if outcome := s.referrals.Settle(ctx, actor.UserID); outcome == referral.OutcomePending {
			s.logger.Info("referral still pending after save",
				zap.String("user_id", actor.UserID.String()),
			)
		}
	}

	s.logger.Info("profile saved",
		zap.String("user_id", actor.UserID.String()),
		zap.String("handle", saved.Username),
	)
	return saved, nil
}

// Own returns the acting account's profile, or ErrNotFound when none
// exists yet; the caller routes that to the creation flow, which is
// not the same as a fetch failure.
func (s *Service) Own(ctx context.Context, actor Actor) (*Profile, error) {
	if actor.UserID == uuid.Nil {
		return nil, ErrSessionMismatch
	}
	return s.store.FetchByUserID(ctx, actor.UserID)
}

// PublicByHandle returns the channel-filtered public view for a
// published handle, or ErrNotFound for absent or unpublished profiles.
func (s *Service) PublicByHandle(ctx context.Context, h string) (*PublicProfile, error) {
	p, err := s.store.FetchByHandle(ctx, h)
	if err != nil {
		return nil, err
	}
	if !p.Published() {
		return nil, ErrNotFound
	}
	return p.Public(), nil
}

// SaveDraft persists the in-progress form state for the acting
// account. Called on every field-level change; best-effort.
func (s *Service) SaveDraft(ctx context.Context, actor Actor, in *Profile) {
	if actor.UserID == uuid.Nil {
		return
	}
	s.drafts.Save(ctx, editSlot(actor.UserID), in)
}

// Draft returns the last persisted form state for the acting account,
// or false when none survives.
func (s *Service) Draft(ctx context.Context, actor Actor) (*Profile, bool) {
	var p Profile
	if !s.drafts.Load(ctx, editSlot(actor.UserID), &p) {
		return nil, false
	}
	return &p, true
}

// SaveCreationDraft and CreationDraft are the pre-publish counterparts,
// keyed by an anonymous save-context token rather than the account.
func (s *Service) SaveCreationDraft(ctx context.Context, token string, in *Profile) {
	if token == "" {
		return
	}
	s.drafts.Save(ctx, createSlot(token), in)
}

func (s *Service) CreationDraft(ctx context.Context, token string) (*Profile, bool) {
	var p Profile
	if token == "" || !s.drafts.Load(ctx, createSlot(token), &p) {
		return nil, false
	}
	return &p, true
}

// DeleteProfile removes the profile row for an account. Part of the
// account-deletion cascade; the caller owns the ordering.
func (s *Service) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
