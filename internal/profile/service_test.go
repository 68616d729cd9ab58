package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/draft"
	"github.com/tapfolio/tapfolio/internal/referral"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------

type stubStore struct {
	byID        map[uuid.UUID]*Profile
	upsertErr   error
	upsertDelay time.Duration
	upserts     int
	deletes     int
}

func newStubStore() *stubStore {
	return &stubStore{byID: make(map[uuid.UUID]*Profile)}
}

func (s *stubStore) FetchByUserID(_ context.Context, id uuid.UUID) (*Profile, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *stubStore) FetchByHandle(_ context.Context, h string) (*Profile, error) {
	for _, p := range s.byID {
		if p.Username == h {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubStore) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	s.upserts++
	if s.upsertDelay > 0 {
		select {
		case <-time.After(s.upsertDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	stored := p.Clone()
	stored.UpdatedAt = time.Now().UTC()
	s.byID[p.ID] = stored
	return stored.Clone(), nil
}

func (s *stubStore) Delete(_ context.Context, id uuid.UUID) error {
	s.deletes++
	delete(s.byID, id)
	return nil
}

type stubSettler struct {
	calls   int
	outcome referral.Outcome
}

func (s *stubSettler) Settle(_ context.Context, _ uuid.UUID) referral.Outcome {
	s.calls++
	return s.outcome
}

func newTestService(st *stubStore, settler *stubSettler) (*Service, *draft.MemoryCache) {
	drafts := draft.NewMemoryCache(time.Hour)
	return NewService(st, drafts, settler, time.Second, zap.NewNop()), drafts
}

func validProfile(id uuid.UUID, username string) *Profile {
	return &Profile{ID: id, Username: username, DisplayName: "Test User"}
}

// ---------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------

func TestSave_readAfterWrite(t *testing.T) {
	st := newStubStore()
	svc, _ := newTestService(st, &stubSettler{outcome: referral.OutcomeRecorded})
	actor := Actor{UserID: uuid.New(), Email: "a@b.test", EmailVerified: true}

	saved, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "Bob"), "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Username != "bob" {
		t.Fatalf("expected normalized handle bob, got %q", saved.Username)
	}
	if !saved.EmailVerified {
		t.Fatal("expected EmailVerified stamped from actor")
	}

	got, err := svc.Own(context.Background(), actor)
	if err != nil {
		t.Fatalf("own after save: %v", err)
	}
	if got.Username != "bob" || got.DisplayName != "Test User" {
		t.Fatalf("read-after-write mismatch: %+v", got)
	}
}

func TestSave_lastWriteWins(t *testing.T) {
	st := newStubStore()
	svc, _ := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	if _, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bob"), ""); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bobby"), ""); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := svc.Own(context.Background(), actor)
	if err != nil {
		t.Fatalf("own: %v", err)
	}
	if got.Username != "bobby" {
		t.Fatalf("expected bobby after second save, got %q", got.Username)
	}
	if _, err := st.FetchByHandle(context.Background(), "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatal("old handle must not linger as a separate row")
	}
}

func TestSave_emptyHandleRejectedWithoutRemoteWrite(t *testing.T) {
	st := newStubStore()
	svc, _ := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	_, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "   "), "")
	if !errors.Is(err, ErrHandleRequired) {
		t.Fatalf("expected ErrHandleRequired, got %v", err)
	}
	if st.upserts != 0 {
		t.Fatalf("expected no remote write, got %d", st.upserts)
	}
}

func TestSave_sessionMismatchRejected(t *testing.T) {
	st := newStubStore()
	svc, _ := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	_, err := svc.Save(context.Background(), actor, validProfile(uuid.New(), "bob"), "")
	if !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
	if st.upserts != 0 {
		t.Fatalf("expected no remote write, got %d", st.upserts)
	}
}

func TestSave_exactlyOneRemoteWrite(t *testing.T) {
	st := newStubStore()
	svc, _ := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	if _, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bob"), ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if st.upserts != 1 {
		t.Fatalf("expected exactly one remote write, got %d", st.upserts)
	}
}

func TestSave_draftSurvivesRemoteFailure(t *testing.T) {
	st := newStubStore()
	st.upsertErr = errors.New("connection refused")
	svc, _ := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	in := validProfile(actor.UserID, "bob")
	in.Bio = "unfinished thought"
	if _, err := svc.Save(context.Background(), actor, in, ""); err == nil {
		t.Fatal("expected save to fail")
	}

	restored, ok := svc.Draft(context.Background(), actor)
	if !ok {
		t.Fatal("expected draft to survive the failed save")
	}
	if restored.Bio != "unfinished thought" {
		t.Fatalf("draft lost edits: %+v", restored)
	}
}

func TestSave_timeoutSurfacesRecoverableError(t *testing.T) {
	st := newStubStore()
	st.upsertDelay = 200 * time.Millisecond
	drafts := draft.NewMemoryCache(time.Hour)
	svc := NewService(st, drafts, &stubSettler{}, 20*time.Millisecond, zap.NewNop())
	actor := Actor{UserID: uuid.New()}

	_, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bob"), "")
	if !errors.Is(err, ErrSaveTimeout) {
		t.Fatalf("expected ErrSaveTimeout, got %v", err)
	}
	if _, ok := svc.Draft(context.Background(), actor); !ok {
		t.Fatal("expected draft to survive the timeout")
	}
}

func TestSave_successClearsBothDraftSlots(t *testing.T) {
	st := newStubStore()
	svc, drafts := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}
	token := "create-ctx-1"

	svc.SaveCreationDraft(context.Background(), token, validProfile(uuid.Nil, "bob"))

	if _, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bob"), token); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok := svc.Draft(context.Background(), actor); ok {
		t.Fatal("edit draft must be cleared after a confirmed save")
	}
	var p Profile
	if drafts.Load(context.Background(), draft.Slot{Kind: draft.KindCreate, Key: token}, &p) {
		t.Fatal("creation draft must be cleared after a confirmed save")
	}
}

func TestSave_settlesReferralOnlyOnSuccess(t *testing.T) {
	st := newStubStore()
	settler := &stubSettler{outcome: referral.OutcomeRecorded}
	svc, _ := newTestService(st, settler)
	actor := Actor{UserID: uuid.New()}

	st.upsertErr = errors.New("down")
	if _, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bob"), ""); err == nil {
		t.Fatal("expected save to fail")
	}
	if settler.calls != 0 {
		t.Fatal("referral must not settle on a failed save")
	}

	st.upsertErr = nil
	if _, err := svc.Save(context.Background(), actor, validProfile(actor.UserID, "bob"), ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if settler.calls != 1 {
		t.Fatalf("expected one settle call, got %d", settler.calls)
	}
}

// ---------------------------------------------------------------------
// Fetch
// ---------------------------------------------------------------------

func TestOwn_absentProfileRoutesToCreation(t *testing.T) {
	svc, _ := newTestService(newStubStore(), &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	_, err := svc.Own(context.Background(), actor)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an absent row, got %v", err)
	}
}

func TestPublicByHandle_filtersPrivateChannels(t *testing.T) {
	st := newStubStore()
	svc, _ := newTestService(st, &stubSettler{})
	actor := Actor{UserID: uuid.New()}

	in := validProfile(actor.UserID, "bob")
	in.Email = "a@b.test"
	in.EmailPublic = false
	in.Phone = "+15550100"
	in.PhonePublic = true
	// Flag set but value empty: emptiness wins over visibility.
	in.WhatsApp = ""
	in.WhatsAppPublic = true
	if _, err := svc.Save(context.Background(), actor, in, ""); err != nil {
		t.Fatalf("save: %v", err)
	}

	pub, err := svc.PublicByHandle(context.Background(), "bob")
	if err != nil {
		t.Fatalf("public fetch: %v", err)
	}
	if pub.Email != "" {
		t.Fatal("private email leaked into public view")
	}
	if pub.Phone != "+15550100" {
		t.Fatalf("public phone missing: %+v", pub)
	}
	if pub.WhatsApp != "" {
		t.Fatalf("empty channel marked public leaked a value: %q", pub.WhatsApp)
	}
}

func TestPublicByHandle_unpublishedHiddenAsNotFound(t *testing.T) {
	st := newStubStore()
	id := uuid.New()
	st.byID[id] = &Profile{ID: id} // no handle, never published
	svc, _ := newTestService(st, &stubSettler{})

	_, err := svc.PublicByHandle(context.Background(), "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
