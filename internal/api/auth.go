package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tapfolio/tapfolio/internal/session"
	"go.uber.org/zap"
)

// AuthHandler handles passwordless sign-in routes.
type AuthHandler struct {
	auth   *session.Service
	logger *zap.Logger
}

func NewAuthHandler(auth *session.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register registers auth routes on the given router group. Both
// routes get a tighter rate limit than the rest of the API: codes are
// guessable in principle and mail delivery is expensive.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth", RateLimiter(1, 5))
	{
		auth.POST("/otp", h.RequestCode)
		auth.POST("/otp/verify", h.VerifyCode)
	}
}

type requestCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestCode handles POST /auth/otp.
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	if err := h.auth.RequestCode(c.Request.Context(), req.Email); err != nil {
		h.logger.Warn("request sign-in code", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not send a sign-in code to that address"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "code sent"})
}

type verifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyCode handles POST /auth/otp/verify.
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required"})
		return
	}

	account, token, err := h.auth.VerifyCode(c.Request.Context(), req.Email, req.Code)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrTooManyAttempts):
		tfSignInsTotal.WithLabelValues("throttled").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrCodeInvalid), errors.Is(err, session.ErrCodeExpired):
		tfSignInsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	default:
		h.logger.Error("verify sign-in code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed, try again"})
		return
	}

	tfSignInsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"account": account,
	})
}
