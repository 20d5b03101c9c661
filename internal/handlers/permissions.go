package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/services"
	"github.com/voltgrid/voltgrid/pkg/response"
)

type PermissionHandler struct {
	svc   *services.PermissionService
	roles *services.RoleService
}

func NewPermissionHandler(svc *services.PermissionService, roles *services.RoleService) *PermissionHandler {
	return &PermissionHandler{svc: svc, roles: roles}
}

type roleRequest struct {
	Name            string   `json:"name" validate:"omitempty,min=2,max=128"`
	Description     string   `json:"description" validate:"omitempty,max=512"`
	OrganizationID  *string  `json:"organization_id" validate:"omitempty,uuid4"`
	PermissionCodes []string `json:"permission_codes" validate:"omitempty,dive,min=3,max=128"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

type assignRoleRequest struct {
	UserID         string  `json:"user_id" validate:"required,uuid4"`
	RoleID         string  `json:"role_id" validate:"required,max=64"`
	OrganizationID *string `json:"organization_id" validate:"omitempty,uuid4"`
	DepartmentID   *string `json:"department_id" validate:"omitempty,uuid4"`
}

type overrideRequest struct {
	UserID         string     `json:"user_id" validate:"required,uuid4"`
	PermissionCode string     `json:"permission_code" validate:"required,min=3,max=128"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
	Notes          string     `json:"notes" validate:"omitempty,max=512"`
}

type bulkOverrideRequest struct {
	UserID  string   `json:"user_id" validate:"required,uuid4"`
	Grants  []string `json:"grants" validate:"omitempty,dive,min=3,max=128"`
	Revokes []string `json:"revokes" validate:"omitempty,dive,min=3,max=128"`
	Notes   string   `json:"notes" validate:"omitempty,max=512"`
}

// GET /api/permissions
func (h *PermissionHandler) ListCatalog(c *gin.Context) {
	perms, err := h.svc.ListCatalog(requestContext(c), access.CatalogFilter{
		Resource: c.Query("resource"),
		Group:    c.Query("group"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// GET /api/users/:id/permissions
func (h *PermissionHandler) EffectivePermissions(c *gin.Context) {
	resolved, err := h.svc.EffectivePermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resolved)
}

// GET /api/users/:id/overrides
func (h *PermissionHandler) ListOverrides(c *gin.Context) {
	overrides, err := h.svc.ListOverrides(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, overrides)
}

// POST /api/permissions/grant
func (h *PermissionHandler) Grant(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body overrideRequest
	if !bindAndValidate(c, &body) {
		return
	}

	override, err := h.svc.Grant(requestContext(c), services.GrantInput{
		UserID:         body.UserID,
		PermissionCode: body.PermissionCode,
		Actor:          actor.UserID(),
		ValidFrom:      body.ValidFrom,
		ValidUntil:     body.ValidUntil,
		Notes:          body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, override)
}

// POST /api/permissions/revoke
func (h *PermissionHandler) Revoke(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body overrideRequest
	if !bindAndValidate(c, &body) {
		return
	}

	override, err := h.svc.Revoke(requestContext(c), services.GrantInput{
		UserID:         body.UserID,
		PermissionCode: body.PermissionCode,
		Actor:          actor.UserID(),
		ValidFrom:      body.ValidFrom,
		ValidUntil:     body.ValidUntil,
		Notes:          body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, override)
}

// POST /api/permissions/bulk
func (h *PermissionHandler) BulkUpdate(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body bulkOverrideRequest
	if !bindAndValidate(c, &body) {
		return
	}

	outcomes, err := h.svc.BulkUpdate(requestContext(c), services.BulkUpdateInput{
		UserID:  body.UserID,
		Grants:  body.Grants,
		Revokes: body.Revokes,
		Actor:   actor.UserID(),
		Notes:   body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcomes)
}

// GET /api/roles
func (h *PermissionHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *PermissionHandler) GetRole(c *gin.Context) {
	role, err := h.roles.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *PermissionHandler) CreateRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body roleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.roles.Create(requestContext(c), actor.UserID(), services.CreateRoleInput{
		Name:            body.Name,
		Description:     body.Description,
		OrganizationID:  body.OrganizationID,
		PermissionCodes: body.PermissionCodes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *PermissionHandler) UpdateRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body updateRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.roles.Update(requestContext(c), actor.UserID(), c.Param("id"), services.UpdateRoleInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// PUT /api/roles/:id/permissions
func (h *PermissionHandler) SetRolePermissions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body roleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.roles.SetPermissions(requestContext(c), actor.UserID(), c.Param("id"), body.PermissionCodes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *PermissionHandler) DeleteRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.roles.Delete(requestContext(c), actor.UserID(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/roles/assign
func (h *PermissionHandler) AssignRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body assignRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	assignment, err := h.roles.AssignRole(requestContext(c), services.AssignRoleInput{
		UserID:         body.UserID,
		RoleID:         body.RoleID,
		OrganizationID: body.OrganizationID,
		DepartmentID:   body.DepartmentID,
		Actor:          actor.UserID(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, assignment)
}

// POST /api/roles/revoke
func (h *PermissionHandler) RevokeRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body assignRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.roles.RevokeRole(requestContext(c), actor.UserID(), body.UserID, body.RoleID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
