package face

import "time"

// The enrollment flow is modeled as an explicit state machine whose
// transitions are pure functions of (state, event). The camera, frame
// detector, and poll timer all live on the client; the client reports
// detector results as events, and the machine decides when a capture is
// allowed. This keeps the liveness gating testable with synthetic
// frames and authoritative on the server.

// State is one step of the enrollment flow.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"  // camera permission requested
	StateCamera    State = "camera"    // live feed, polling detector
	StateVerifying State = "verifying" // strict re-detection before capture
	StateCapturing State = "capturing" // descriptor extraction
	StateSaving    State = "saving"    // descriptor write in flight
	StateDone      State = "done"
	StateError     State = "error"
)

// Config tunes the liveness gate.
type Config struct {
	// RequiredFrames is the number of consecutive qualifying frames
	// before capture arms. Any disqualifying frame resets the run.
	RequiredFrames int
	// ReadyConfidence is the minimum single-face confidence for a
	// polled frame to qualify.
	ReadyConfidence float32
	// CaptureConfidence is the stricter threshold the final capture
	// detection must clear. Always above ReadyConfidence so a false
	// "ready" flash cannot slip through capture.
	CaptureConfidence float32
	// PollInterval is the frame-sampling interval the client should
	// use while in the camera state.
	PollInterval time.Duration
}

// DefaultConfig returns the production liveness tuning.
func DefaultConfig() Config {
	return Config{
		RequiredFrames:    3,
		ReadyConfidence:   0.7,
		CaptureConfidence: 0.8,
		PollInterval:      400 * time.Millisecond,
	}
}

// Machine is the state of one enrollment flow. The zero value is not
// usable; start from NewMachine.
type Machine struct {
	State       State
	Consecutive int    // qualifying frames in a row
	Armed       bool   // capture action enabled
	Message     string // user-facing guidance or error detail

	cfg Config
}

// NewMachine returns a machine in the idle state.
func NewMachine(cfg Config) Machine {
	return Machine{State: StateIdle, cfg: cfg}
}

// Event drives the machine.
type Event interface{ isFaceEvent() }

// Start begins the flow: the client is about to request camera access.
type Start struct{}

// CameraReady reports that the camera stream is live.
type CameraReady struct{}

// CameraFailed reports that camera acquisition failed or was denied.
type CameraFailed struct{ Reason string }

// Frame reports one polled detector result: how many faces were found
// and, for exactly one face, its confidence.
type Frame struct {
	Faces      int
	Confidence float32
}

// CaptureRequested is the explicit user capture action.
type CaptureRequested struct{}

// RecheckPassed reports that the strict pre-capture re-detection found
// exactly one face above CaptureConfidence.
type RecheckPassed struct{}

// RecheckFailed reports a failed strict re-detection or an invalid
// descriptor. The flow returns to the camera with the counter reset.
type RecheckFailed struct{ Reason string }

// CaptureSucceeded reports a valid descriptor was extracted.
type CaptureSucceeded struct{}

// SaveSucceeded and SaveFailed report the descriptor write outcome.
type SaveSucceeded struct{}
type SaveFailed struct{ Reason string }

// Retry leaves the error state and re-requests the camera.
type Retry struct{}

// Closed reports a user-initiated close or component teardown.
type Closed struct{}

func (Start) isFaceEvent()            {}
func (CameraReady) isFaceEvent()      {}
func (CameraFailed) isFaceEvent()     {}
func (Frame) isFaceEvent()            {}
func (CaptureRequested) isFaceEvent() {}
func (RecheckPassed) isFaceEvent()    {}
func (RecheckFailed) isFaceEvent()    {}
func (CaptureSucceeded) isFaceEvent() {}
func (SaveSucceeded) isFaceEvent()    {}
func (SaveFailed) isFaceEvent()       {}
func (Retry) isFaceEvent()            {}
func (Closed) isFaceEvent()           {}

// qualifies reports whether a polled frame counts toward arming:
// exactly one face at or above the ready confidence. Zero faces and
// multi-face frames both disqualify; an enrollment must bind to
// exactly one identity.
func (m Machine) qualifies(f Frame) bool {
	return f.Faces == 1 && f.Confidence >= m.cfg.ReadyConfidence
}

// Step applies an event and returns the next machine state. Unexpected
// (state, event) pairs are ignored and return the machine unchanged.
func Step(m Machine, ev Event) Machine {
	// Closed tears the flow down from anywhere.
	if _, ok := ev.(Closed); ok {
		return Machine{State: StateIdle, cfg: m.cfg}
	}

	switch m.State {
	case StateIdle:
		if _, ok := ev.(Start); ok {
			return Machine{State: StateStarting, cfg: m.cfg}
		}

	case StateStarting:
		switch e := ev.(type) {
		case CameraReady:
			return Machine{State: StateCamera, cfg: m.cfg, Message: "hold still, looking for your face"}
		case CameraFailed:
			return Machine{State: StateError, cfg: m.cfg, Message: e.Reason}
		}

	case StateCamera:
		switch e := ev.(type) {
		case Frame:
			next := m
			if m.qualifies(e) {
				next.Consecutive++
			} else {
				next.Consecutive = 0
			}
			next.Armed = next.Consecutive >= m.cfg.RequiredFrames
			switch {
			case next.Armed:
				next.Message = "ready to capture"
			case e.Faces > 1:
				next.Message = "more than one face in frame"
			case e.Faces == 0:
				next.Message = "no face detected"
			default:
				next.Message = "hold still"
			}
			return next
		case CaptureRequested:
			if !m.Armed {
				return m
			}
			return Machine{State: StateVerifying, cfg: m.cfg}
		}

	case StateVerifying:
		switch e := ev.(type) {
		case RecheckPassed:
			return Machine{State: StateCapturing, cfg: m.cfg}
		case RecheckFailed:
			return Machine{State: StateCamera, cfg: m.cfg, Message: e.Reason}
		}

	case StateCapturing:
		switch e := ev.(type) {
		case CaptureSucceeded:
			return Machine{State: StateSaving, cfg: m.cfg}
		case RecheckFailed:
			return Machine{State: StateCamera, cfg: m.cfg, Message: e.Reason}
		}

	case StateSaving:
		switch e := ev.(type) {
		case SaveSucceeded:
			return Machine{State: StateDone, cfg: m.cfg}
		case SaveFailed:
			return Machine{State: StateError, cfg: m.cfg, Message: e.Reason}
		}

	case StateError:
		if _, ok := ev.(Retry); ok {
			return Machine{State: StateStarting, cfg: m.cfg}
		}
	}
	return m
}
