package middleware

import (
	"net/http"
	"strings"

	"dlvideo/internal/auth"
	"dlvideo/internal/model"
	"dlvideo/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by the auth middleware.
const (
	ContextUser         = "auth_user"
	ContextSessionToken = "auth_session_token"
)

// SessionCookie is the cookie the login endpoint sets.
const SessionCookie = "session_token"

// ExtractToken pulls the session token from the Authorization header or the
// session cookie, in that order.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token, err := c.Cookie(SessionCookie); err == nil {
		return token
	}
	return ""
}

// AuthRequired rejects requests without a valid session. Missing, unknown
// and expired tokens all produce the same generic 401.
func AuthRequired(manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
				Error:   "unauthenticated",
				Message: "Not authenticated. Please login first.",
				Code:    http.StatusUnauthorized,
			})
			return
		}

		info, ok := manager.Verify(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
				Error:   "unauthenticated",
				Message: "Invalid or expired session. Please login again.",
				Code:    http.StatusUnauthorized,
			})
			return
		}

		c.Set(ContextUser, info)
		c.Set(ContextSessionToken, token)
		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not allowed.
// Authorization failures are distinct from authentication failures.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := CurrentUser(c)
		if info == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
				Error:   "unauthenticated",
				Message: "Not authenticated",
				Code:    http.StatusUnauthorized,
			})
			return
		}

		for _, role := range roles {
			if info.Role == role {
				c.Next()
				return
			}
		}

		logger.Logger.Warn("Access denied",
			zap.String("username", info.Username),
			zap.String("role", info.Role),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{
			Error:   "forbidden",
			Message: "Access denied. Required role: " + strings.Join(roles, ", "),
			Code:    http.StatusForbidden,
		})
	}
}

// CurrentUser returns the session identity the auth middleware attached.
func CurrentUser(c *gin.Context) *auth.SessionInfo {
	if v, ok := c.Get(ContextUser); ok {
		if info, ok := v.(*auth.SessionInfo); ok {
			return info
		}
	}
	return nil
}

// SessionToken returns the raw token the auth middleware attached.
func SessionToken(c *gin.Context) string {
	if v, ok := c.Get(ContextSessionToken); ok {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}
