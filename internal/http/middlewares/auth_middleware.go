package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helloworldit/portal/internal/auth"
	"github.com/helloworldit/portal/internal/session"
)

// Keep these interfaces small so tests can fake them easily.
type TokenVerifier interface {
	VerifySessionToken(token string) (*auth.Claims, error)
}

type SessionGetter interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

type AuthMiddleware struct {
	jwt      TokenVerifier
	sessions SessionGetter
}

func NewAuthMiddleware(jwt TokenVerifier, sessions SessionGetter) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, sessions: sessions}
}

// RequireAuth accepts a Bearer session token and checks the session
// behind its jti still exists, so logout takes effect immediately.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid session token")
			return
		}

		claims, err := m.jwt.VerifySessionToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired session token")
			return
		}

		sess, err := m.sessions.Get(c.Request.Context(), claims.JTI)
		if err != nil {
			abortUnauthorized(c, "Session has expired, please log in again")
			return
		}

		c.Set(ctxUserIDKey, sess.UserID)
		c.Set(ctxUsernameKey, sess.Username)
		c.Set(ctxRoleKey, sess.Role)
		c.Set(ctxSessionKey, sess.ID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func UsernameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUsernameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

func SessionIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
