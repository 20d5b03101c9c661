package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/middleware"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
	"github.com/voltgrid/voltgrid/pkg/response"
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

// requireActor extracts the resolved AccessContext, writing a 401 when absent.
func requireActor(c *gin.Context) (*access.AccessContext, bool) {
	actor, ok := middleware.GetAccessContext(c)
	if !ok || actor == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return nil, false
	}
	return actor, true
}
