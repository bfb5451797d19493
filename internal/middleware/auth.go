package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/auditctx"
	iauth "github.com/studytrack/notifyd/internal/auth"
	"github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// Auth enforces JWT authentication using the supplied JWT service. WebSocket upgrades may
// carry the token in the "token" query parameter because browsers cannot set headers there.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		c.Next()
	}
}

// RequireScope rejects tokens that were not granted scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := c.Get(CtxClaimsKey)
		typed, _ := claims.(*iauth.Claims)
		if typed == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !typed.HasScope(scope) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		token := strings.TrimSpace(authz[7:])
		return token, token != ""
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		token := strings.TrimSpace(c.Query("token"))
		return token, token != ""
	}
	return "", false
}
