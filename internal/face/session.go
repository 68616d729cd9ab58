package face

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DescriptorSaver is the narrow single-field update path enrollment
// writes through. It never touches any other profile field.
type DescriptorSaver interface {
	UpdateFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32) error
}

// Capture is the payload of the final capture action: the strict
// re-detection result plus the extracted descriptor.
type Capture struct {
	Faces      int
	Confidence float32
	Descriptor Descriptor
}

// Sessions tracks at most one enrollment flow per account. Stale
// sessions expire so an abandoned camera tab cannot pin state forever.
type Sessions struct {
	saver  DescriptorSaver
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	machines map[uuid.UUID]*sessionEntry
}

type sessionEntry struct {
	m        Machine
	lastSeen time.Time
}

const sessionTTL = 10 * time.Minute

// NewSessions creates the enrollment session tracker.
func NewSessions(saver DescriptorSaver, cfg Config, logger *zap.Logger) *Sessions {
	return &Sessions{
		saver:    saver,
		cfg:      cfg,
		logger:   logger,
		machines: make(map[uuid.UUID]*sessionEntry),
	}
}

// Config returns the liveness tuning, so the start response can tell
// the client how often to poll and what thresholds apply.
func (s *Sessions) Config() Config {
	return s.cfg
}

// entry returns the live machine for a user, creating or resetting it
// when absent or expired. Caller holds the lock.
func (s *Sessions) entry(userID uuid.UUID) *sessionEntry {
	e, ok := s.machines[userID]
	if !ok || time.Since(e.lastSeen) > sessionTTL {
		e = &sessionEntry{m: NewMachine(s.cfg)}
		s.machines[userID] = e
	}
	e.lastSeen = time.Now()
	return e
}

// apply steps the user's machine and returns the new state.
func (s *Sessions) apply(userID uuid.UUID, events ...Event) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(userID)
	for _, ev := range events {
		e.m = Step(e.m, ev)
	}
	return e.m
}

// Start begins (or restarts) an enrollment flow.
func (s *Sessions) Start(userID uuid.UUID) Machine {
	return s.apply(userID, Closed{}, Start{})
}

// CameraReady reports camera acquisition; CameraDenied reports refusal.
func (s *Sessions) CameraReady(userID uuid.UUID) Machine {
	return s.apply(userID, CameraReady{})
}

func (s *Sessions) CameraDenied(userID uuid.UUID, reason string) Machine {
	if reason == "" {
		reason = "camera access was denied"
	}
	return s.apply(userID, CameraFailed{Reason: reason})
}

// ReportFrame feeds one polled detector result into the liveness gate.
func (s *Sessions) ReportFrame(userID uuid.UUID, faces int, confidence float32) Machine {
	return s.apply(userID, Frame{Faces: faces, Confidence: confidence})
}

// RequestCapture runs the capture step: only honored when the frame
// counter has armed it, re-checked at the stricter capture confidence,
// and the descriptor validated before anything is persisted. Any
// violation returns the flow to the camera state with the counter
// reset and a descriptive, user-facing reason.
func (s *Sessions) RequestCapture(ctx context.Context, userID uuid.UUID, c Capture) (Machine, error) {
	m := s.apply(userID, CaptureRequested{})
	if m.State != StateVerifying {
		return m, fmt.Errorf("capture not ready: need %d consecutive clear frames", s.cfg.RequiredFrames)
	}

	if reason := s.recheck(c); reason != "" {
		m = s.apply(userID, RecheckFailed{Reason: reason})
		return m, fmt.Errorf("%s", reason)
	}
	m = s.apply(userID, RecheckPassed{}, CaptureSucceeded{})

	if err := s.saver.UpdateFaceDescriptor(ctx, userID, c.Descriptor); err != nil {
		s.logger.Error("face descriptor save failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		m = s.apply(userID, SaveFailed{Reason: "could not save enrollment, please retry"})
		return m, fmt.Errorf("save face descriptor: %w", err)
	}

	m = s.apply(userID, SaveSucceeded{})
	s.logger.Info("face descriptor enrolled", zap.String("user_id", userID.String()))
	return m, nil
}

// recheck applies the capture-time gates. Returns a user-facing reason
// on violation, or "" when the capture is acceptable.
func (s *Sessions) recheck(c Capture) string {
	switch {
	case c.Faces == 0:
		return "no face detected at capture time"
	case c.Faces > 1:
		return "more than one face detected; enrollment binds to exactly one person"
	case c.Confidence < s.cfg.CaptureConfidence:
		return fmt.Sprintf("capture confidence %.2f below required %.2f", c.Confidence, s.cfg.CaptureConfidence)
	}
	if err := c.Descriptor.Validate(); err != nil {
		return err.Error()
	}
	return ""
}

// Close tears down the user's flow. The client releases its camera
// tracks; the server forgets the machine.
func (s *Sessions) Close(userID uuid.UUID) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.machines, userID)
	return NewMachine(s.cfg)
}

// State returns a snapshot of the user's flow.
func (s *Sessions) State(userID uuid.UUID) Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(userID).m
}

// ── Verification (unlock) ─────────────────────────────────────────────────

// VerifyOutcome is the terminal result of one verification attempt.
// There is no automatic retry; the caller decides whether to offer one.
type VerifyOutcome string

const (
	// OutcomeMatched: distance strictly below the match threshold.
	OutcomeMatched VerifyOutcome = "matched"
	// OutcomeNoMatch: a clean capture that did not match.
	OutcomeNoMatch VerifyOutcome = "no_match"
	// OutcomeNoFace: no usable single-face capture (none, several, or
	// quality too low). Distinguished from OutcomeNoMatch so failed
	// verification attempts can be audited separately from bad
	// lighting.
	OutcomeNoFace VerifyOutcome = "no_face"
)

// Verify compares one capture against the stored enrollment descriptor.
func Verify(c Capture, stored Descriptor, cfg Config) VerifyOutcome {
	if c.Faces != 1 || c.Confidence < cfg.CaptureConfidence {
		return OutcomeNoFace
	}
	if err := c.Descriptor.Validate(); err != nil {
		return OutcomeNoFace
	}
	if Match(c.Descriptor, stored) {
		return OutcomeMatched
	}
	return OutcomeNoMatch
}
