package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/middleware"
	"github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser returns the authenticated user id, writing a 401 when there is none.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
