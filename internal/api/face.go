package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/face"
	"github.com/tapfolio/tapfolio/internal/profile"
	"github.com/tapfolio/tapfolio/internal/session"
	"go.uber.org/zap"
)

// descriptorSource looks up the enrolled descriptor for a handle.
type descriptorSource interface {
	FetchByHandle(ctx context.Context, h string) (*profile.Profile, error)
}

// descriptorSaver persists an enrollment descriptor through the narrow
// update path.
type descriptorSaver interface {
	UpdateFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32) error
}

// FaceHandler handles face enrollment and verification routes. The
// camera and detector run on the client; these routes carry detector
// results as events into the server-side enrollment machine.
type FaceHandler struct {
	sessions *face.Sessions
	store    descriptorSource
	saver    descriptorSaver
	tokens   *session.TokenIssuer
	logger   *zap.Logger
}

func NewFaceHandler(sessions *face.Sessions, store descriptorSource, saver descriptorSaver, tokens *session.TokenIssuer, logger *zap.Logger) *FaceHandler {
	return &FaceHandler{sessions: sessions, store: store, saver: saver, tokens: tokens, logger: logger}
}

// Register registers face routes on the given router group.
func (h *FaceHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/face/enroll", session.RequireSession(h.tokens), h.Enroll)

	enroll := rg.Group("/face/enroll", session.RequireSession(h.tokens))
	{
		enroll.POST("/start", h.Start)
		enroll.POST("/camera", h.Camera)
		enroll.POST("/frame", h.Frame)
		enroll.POST("/capture", h.Capture)
		enroll.POST("/close", h.Close)
		enroll.GET("/state", h.State)
	}

	// Verification needs a session too: an anonymous caller could
	// otherwise test stored descriptors handle by handle.
	rg.POST("/face/verify", session.RequireSession(h.tokens), h.Verify)
}

func machineJSON(m face.Machine, cfg face.Config) gin.H {
	return gin.H{
		"state":              m.State,
		"consecutive_frames": m.Consecutive,
		"capture_armed":      m.Armed,
		"message":            m.Message,
		"poll_interval_ms":   cfg.PollInterval.Milliseconds(),
	}
}

// Start handles POST /face/enroll/start.
func (h *FaceHandler) Start(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	m := h.sessions.Start(id.UserID)
	c.JSON(http.StatusOK, machineJSON(m, h.sessions.Config()))
}

type cameraRequest struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason"`
}

// Camera handles POST /face/enroll/camera, reporting the outcome of
// the client's camera permission request.
func (h *FaceHandler) Camera(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	var req cameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed camera report"})
		return
	}

	var m face.Machine
	if req.Ready {
		m = h.sessions.CameraReady(id.UserID)
	} else {
		m = h.sessions.CameraDenied(id.UserID, req.Reason)
	}
	c.JSON(http.StatusOK, machineJSON(m, h.sessions.Config()))
}

type frameRequest struct {
	Faces      int     `json:"faces"`
	Confidence float32 `json:"confidence"`
}

// Frame handles POST /face/enroll/frame, one polled detector result.
func (h *FaceHandler) Frame(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed frame report"})
		return
	}
	m := h.sessions.ReportFrame(id.UserID, req.Faces, req.Confidence)
	c.JSON(http.StatusOK, machineJSON(m, h.sessions.Config()))
}

type captureRequest struct {
	Faces      int       `json:"faces"`
	Confidence float32   `json:"confidence"`
	Descriptor []float32 `json:"descriptor"`
}

func (r captureRequest) capture() face.Capture {
	return face.Capture{
		Faces:      r.Faces,
		Confidence: r.Confidence,
		Descriptor: face.Descriptor(r.Descriptor),
	}
}

// Capture handles POST /face/enroll/capture: the strict re-check and
// descriptor save. A failed re-check is a normal machine answer, not an
// HTTP error; the machine lands back in the camera state with guidance.
func (h *FaceHandler) Capture(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed capture"})
		return
	}

	m, err := h.sessions.RequestCapture(c.Request.Context(), id.UserID, req.capture())
	if err != nil {
		h.logger.Warn("face capture rejected",
			zap.String("user_id", id.UserID.String()),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusOK, machineJSON(m, h.sessions.Config()))
}

// Close handles POST /face/enroll/close.
func (h *FaceHandler) Close(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	m := h.sessions.Close(id.UserID)
	c.JSON(http.StatusOK, machineJSON(m, h.sessions.Config()))
}

// State handles GET /face/enroll/state.
func (h *FaceHandler) State(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	m := h.sessions.State(id.UserID)
	c.JSON(http.StatusOK, machineJSON(m, h.sessions.Config()))
}

type enrollRequest struct {
	Descriptor []float32 `json:"descriptor" binding:"required"`
}

// Enroll handles POST /face/enroll: a one-shot enrollment for clients
// that ran the liveness flow entirely on their side. The descriptor
// still passes the same dimension and magnitude checks as a staged
// capture.
func (h *FaceHandler) Enroll(c *gin.Context) {
	id, _ := session.IdentityFromCtx(c)
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "descriptor is required"})
		return
	}
	if err := face.Descriptor(req.Descriptor).Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.saver.UpdateFaceDescriptor(c.Request.Context(), id.UserID, req.Descriptor); err != nil {
		h.logger.Error("face enroll", zap.String("user_id", id.UserID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enrollment failed, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enrolled"})
}

type verifyRequest struct {
	Handle string `json:"handle" binding:"required"`
	captureRequest
}

// Verify handles POST /face/verify: one capture against the enrolled
// descriptor for a handle. Distinct no-face and no-match outcomes let
// the client give useful guidance without leaking the stored
// descriptor.
func (h *FaceHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle and capture are required"})
		return
	}

	p, err := h.store.FetchByHandle(c.Request.Context(), req.Handle)
	if errors.Is(err, profile.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		h.logger.Error("face verify fetch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed, try again"})
		return
	}
	if len(p.FaceDescriptor) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "face sign-in is not enrolled for this profile"})
		return
	}

	outcome := face.Verify(req.capture(), face.Descriptor(p.FaceDescriptor), h.sessions.Config())
	tfFaceVerifiesTotal.WithLabelValues(string(outcome)).Inc()
	h.logger.Info("face verification",
		zap.String("handle", p.Username),
		zap.String("outcome", string(outcome)),
	)
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
