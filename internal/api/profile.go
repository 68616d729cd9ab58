package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tapfolio/tapfolio/internal/profile"
	"github.com/tapfolio/tapfolio/internal/referral"
	"github.com/tapfolio/tapfolio/internal/session"
	"github.com/tapfolio/tapfolio/pkg/handle"
	"go.uber.org/zap"
)

// ProfileHandler handles profile reads, saves, and draft routes.
type ProfileHandler struct {
	profiles  *profile.Service
	referrals *referral.Service
	tokens    *session.TokenIssuer
	baseURL   string
	logger    *zap.Logger
}

func NewProfileHandler(profiles *profile.Service, referrals *referral.Service, tokens *session.TokenIssuer, baseURL string, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, referrals: referrals, tokens: tokens, baseURL: baseURL, logger: logger}
}

// Register registers profile routes on the given router group.
func (h *ProfileHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/profiles/:handle", h.GetPublicProfile)

	me := rg.Group("/profile", session.RequireSession(h.tokens))
	{
		me.GET("/me", h.GetOwnProfile)
		me.POST("/save", h.SaveProfile)
		me.GET("/draft", h.GetDraft)
		me.PUT("/draft", h.PutDraft)
	}
}

func actorFromCtx(c *gin.Context) (profile.Actor, bool) {
	id, ok := session.IdentityFromCtx(c)
	if !ok {
		return profile.Actor{}, false
	}
	return profile.Actor{
		UserID:        id.UserID,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
	}, true
}

// GetPublicProfile handles GET /profiles/:handle.
func (h *ProfileHandler) GetPublicProfile(c *gin.Context) {
	h.logger.Debug("public profile fetch", zap.String("handle", c.Param("handle")))

	pub, err := h.profiles.PublicByHandle(c.Request.Context(), c.Param("handle"))
	if errors.Is(err, profile.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		h.logger.Error("public profile fetch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":     pub,
		"profile_url": handle.PublicURL(h.baseURL, pub.Username),
	})
}

// GetOwnProfile handles GET /profile/me. An absent profile is a normal
// answer that routes the client into the creation flow; only a real
// fetch failure is an error.
func (h *ProfileHandler) GetOwnProfile(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}

	p, err := h.profiles.Own(c.Request.Context(), actor)
	if errors.Is(err, profile.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"profile": nil, "exists": false})
		return
	}
	if err != nil {
		h.logger.Error("own profile fetch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p, "exists": true})
}

type saveRequest struct {
	profile.Profile
	// CreateToken identifies a first-visit draft written before the
	// account existed.
	CreateToken string `json:"create_token"`
	// Referrer is the handle from a referral link, if one brought the
	// user here.
	Referrer string `json:"referrer"`
}

// SaveProfile handles POST /profile/save.
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed profile body"})
		return
	}

	ctx := c.Request.Context()
	if req.Referrer != "" && !handle.Equal(req.Referrer, req.Username) {
		h.referrals.SetPending(ctx, actor.UserID, req.Referrer)
	}

	saved, err := h.profiles.Save(ctx, actor, &req.Profile, req.CreateToken)
	if err != nil {
		h.logger.Warn("profile save failed",
			zap.String("user_id", actor.UserID.String()),
			zap.Error(err),
		)
	}
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrHandleRequired), errors.Is(err, profile.ErrHandleInvalid):
		tfSavesTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, profile.ErrHandleTaken):
		tfSavesTotal.WithLabelValues("conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "that handle is already taken"})
		return
	case errors.Is(err, profile.ErrSessionMismatch):
		tfSavesTotal.WithLabelValues("denied").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session mismatch, sign in again"})
		return
	case errors.Is(err, profile.ErrPermissionDenied):
		tfSavesTotal.WithLabelValues("denied").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "you cannot write this profile"})
		return
	case errors.Is(err, profile.ErrSaveTimeout):
		tfSavesTotal.WithLabelValues("timeout").Inc()
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "save timed out, your draft is kept, try again"})
		return
	case errors.Is(err, profile.ErrRetryExhausted):
		tfSavesTotal.WithLabelValues("schema").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save failed, your draft is kept, try again"})
		return
	default:
		tfSavesTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed, your draft is kept, try again"})
		return
	}

	tfSavesTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"profile": saved,
		// The URL a QR code for this profile encodes.
		"profile_url": handle.PublicURL(h.baseURL, saved.Username),
	})
}

// GetDraft handles GET /profile/draft.
func (h *ProfileHandler) GetDraft(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}

	p, found := h.profiles.Draft(c.Request.Context(), actor)
	if !found {
		c.JSON(http.StatusOK, gin.H{"draft": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": p})
}

// PutDraft handles PUT /profile/draft. Drafts take anything, including
// handles that would not survive a save; validation happens on save.
func (h *ProfileHandler) PutDraft(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}

	var p profile.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed draft body"})
		return
	}
	h.profiles.SaveDraft(c.Request.Context(), actor, &p)
	c.JSON(http.StatusAccepted, gin.H{"status": "draft saved"})
}
