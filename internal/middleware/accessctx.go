package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/access"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/response"
)

// CtxAccessKey holds the resolved AccessContext for the request.
const CtxAccessKey = "accessContext"

// AccessContext resolves the caller's effective permission set and scope once
// per request and stores it in the gin context. Handlers and downstream
// middleware read the same snapshot instead of re-resolving.
func AccessContext(engine *access.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		user, err := engine.LoadUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, access.ErrUnknownUser) {
				response.Error(c, apperrors.ErrUnauthorized)
			} else {
				response.Error(c, err)
			}
			c.Abort()
			return
		}

		actor, err := engine.BuildContext(c.Request.Context(), user)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxAccessKey, actor)
		c.Next()
	}
}

// GetAccessContext extracts the resolved AccessContext from the gin context.
func GetAccessContext(c *gin.Context) (*access.AccessContext, bool) {
	v, ok := c.Get(CtxAccessKey)
	if !ok {
		return nil, false
	}
	actor, ok := v.(*access.AccessContext)
	return actor, ok
}

// RequirePermission checks that the caller's resolved set contains the code.
// System administrators pass every check.
func RequirePermission(code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetAccessContext(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !actor.Has(code) {
			metrics.PermissionChecks.WithLabelValues(code, "denied").Inc()
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}

		metrics.PermissionChecks.WithLabelValues(code, "allowed").Inc()
		c.Next()
	}
}
