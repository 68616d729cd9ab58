package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/profile"
	"github.com/tapfolio/tapfolio/internal/session"
	"go.uber.org/zap"
)

// referralCleaner removes referral rows pointing at a deleted account.
type referralCleaner interface {
	DeleteByReferred(ctx context.Context, referredID uuid.UUID) error
}

// avatarRemover deletes stored avatar blobs for an account.
type avatarRemover interface {
	Remove(ctx context.Context, userID uuid.UUID) error
}

// AccountHandler handles account deletion. Deletion is a cascade:
// referral rows, avatar blobs, the profile row, and finally the
// account itself. Each step is idempotent so a failed run can be
// repeated.
type AccountHandler struct {
	auth      *session.Service
	profiles  *profile.Service
	referrals referralCleaner
	avatars   avatarRemover
	tokens    *session.TokenIssuer
	logger    *zap.Logger
}

func NewAccountHandler(
	auth *session.Service,
	profiles *profile.Service,
	referrals referralCleaner,
	avatars avatarRemover,
	tokens *session.TokenIssuer,
	logger *zap.Logger,
) *AccountHandler {
	return &AccountHandler{
		auth:      auth,
		profiles:  profiles,
		referrals: referrals,
		avatars:   avatars,
		tokens:    tokens,
		logger:    logger,
	}
}

// Register registers account routes on the given router group.
func (h *AccountHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/account/delete", session.RequireSession(h.tokens), h.DeleteAccount)
}

// DeleteAccount handles POST /account/delete.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	id, ok := session.IdentityFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}
	ctx := c.Request.Context()

	// Referral rows, blobs, and the profile row are cleanup around the
	// deletion itself: a failure is logged and the cascade keeps going.
	// Only the final account delete can fail the request.
	if err := h.referrals.DeleteByReferred(ctx, id.UserID); err != nil {
		h.logger.Warn("delete referrals", zap.String("user_id", id.UserID.String()), zap.Error(err))
	}
	if err := h.avatars.Remove(ctx, id.UserID); err != nil {
		h.logger.Warn("delete avatars", zap.String("user_id", id.UserID.String()), zap.Error(err))
	}
	if err := h.profiles.DeleteProfile(ctx, id.UserID); err != nil {
		h.logger.Warn("delete profile", zap.String("user_id", id.UserID.String()), zap.Error(err))
	}

	if err := h.auth.DeleteAccount(ctx, id.UserID); err != nil {
		h.logger.Error("delete account", zap.String("user_id", id.UserID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed, try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "account deleted"})
}
