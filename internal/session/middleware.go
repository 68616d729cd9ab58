package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxIdentity = "session_identity"

// Identity is the verified caller injected into the request context by
// RequireSession.
type Identity struct {
	UserID        uuid.UUID
	Email         string
	EmailVerified bool
}

// RequireSession returns a Gin middleware that enforces a valid session
// Bearer token. On success it injects the Identity into the context.
func RequireSession(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer session token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token",
			})
			return
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token",
			})
			return
		}

		c.Set(ctxIdentity, Identity{
			UserID:        userID,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
		})
		c.Next()
	}
}

// IdentityFromCtx retrieves the identity injected by RequireSession.
func IdentityFromCtx(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
