package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tapfolio/tapfolio/internal/avatar"
	"github.com/tapfolio/tapfolio/internal/profile"
	"github.com/tapfolio/tapfolio/internal/session"
	"go.uber.org/zap"
)

// AvatarHandler handles avatar upload routes.
type AvatarHandler struct {
	avatars *avatar.Service
	tokens  *session.TokenIssuer
	logger  *zap.Logger
}

func NewAvatarHandler(avatars *avatar.Service, tokens *session.TokenIssuer, logger *zap.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, tokens: tokens, logger: logger}
}

// Register registers avatar routes on the given router group.
func (h *AvatarHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/avatar/upload",
		session.RequireSession(h.tokens),
		BodyLimit(avatar.MaxUploadBytes+1),
		h.Upload,
	)
}

// Upload handles POST /avatar/upload. Multipart field "avatar" or
// "file", or the raw image as the request body.
func (h *AvatarHandler) Upload(c *gin.Context) {
	id, ok := session.IdentityFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return
	}

	data, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large"})
		return
	}

	url, err := h.avatars.Upload(c.Request.Context(), id.UserID, data)
	switch {
	case err == nil:
	case errors.Is(err, avatar.ErrTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, avatar.ErrUnsupportedImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, profile.ErrNotFound):
		c.JSON(http.StatusConflict, gin.H{"error": "publish your profile before uploading an avatar"})
		return
	case errors.Is(err, avatar.ErrStorage):
		h.logger.Error("avatar storage", zap.String("user_id", id.UserID.String()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "avatar storage unavailable"})
		return
	default:
		h.logger.Error("avatar upload", zap.String("user_id", id.UserID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed, try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}

func readUpload(c *gin.Context) ([]byte, error) {
	for _, field := range []string{"avatar", "file"} {
		file, err := c.FormFile(field)
		if err != nil {
			continue
		}
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}
