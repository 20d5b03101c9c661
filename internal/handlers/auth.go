package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/services"
	"github.com/voltgrid/voltgrid/pkg/response"
)

type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=128"`
	Password string `json:"password" validate:"required,min=8,max=256"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.Login(requestContext(c), services.LoginInput{
		Username:  body.Username,
		Password:  body.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	token, err := h.svc.Refresh(requestContext(c), actor.UserID())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":        actor.User,
		"permissions": actor.Permissions.Codes(),
		"scope":       actor.Scope,
	})
}
