package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/services"
	"github.com/voltgrid/voltgrid/pkg/response"
)

type DepartmentHandler struct {
	svc *services.DepartmentService
}

func NewDepartmentHandler(svc *services.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{svc: svc}
}

type departmentRequest struct {
	OrganizationID string `json:"organization_id" validate:"omitempty,uuid4"`
	Name           string `json:"name" validate:"omitempty,min=2,max=128"`
	Description    string `json:"description" validate:"omitempty,max=512"`
}

// GET /api/departments?organization_id=...
func (h *DepartmentHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	departments, err := h.svc.List(requestContext(c), actor, c.Query("organization_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, departments)
}

// GET /api/departments/:id
func (h *DepartmentHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	dept, err := h.svc.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dept)
}

// POST /api/departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body departmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	dept, err := h.svc.Create(requestContext(c), actor, services.DepartmentInput{
		OrganizationID: body.OrganizationID,
		Name:           body.Name,
		Description:    body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dept)
}

// PATCH /api/departments/:id
func (h *DepartmentHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body departmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	dept, err := h.svc.Update(requestContext(c), actor, c.Param("id"), services.DepartmentInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dept)
}

// DELETE /api/departments/:id
func (h *DepartmentHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
