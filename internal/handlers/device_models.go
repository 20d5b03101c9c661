package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/voltgrid/voltgrid/internal/services"
	"github.com/voltgrid/voltgrid/pkg/response"
)

type DeviceModelHandler struct {
	svc *services.DeviceModelService
}

func NewDeviceModelHandler(svc *services.DeviceModelService) *DeviceModelHandler {
	return &DeviceModelHandler{svc: svc}
}

type deviceModelRequest struct {
	Name     string         `json:"name" validate:"omitempty,min=2,max=128"`
	Vendor   string         `json:"vendor" validate:"omitempty,max=128"`
	Category string         `json:"category" validate:"omitempty,oneof=power socket display"`
	Specs    datatypes.JSON `json:"specs"`
}

// GET /api/device-models
func (h *DeviceModelHandler) List(c *gin.Context) {
	models, err := h.svc.List(requestContext(c), c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, models)
}

// GET /api/device-models/:id
func (h *DeviceModelHandler) Get(c *gin.Context) {
	model, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, model)
}

// POST /api/device-models
func (h *DeviceModelHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body deviceModelRequest
	if !bindAndValidate(c, &body) {
		return
	}

	model, err := h.svc.Create(requestContext(c), actor.UserID(), services.DeviceModelInput{
		Name:     body.Name,
		Vendor:   body.Vendor,
		Category: body.Category,
		Specs:    body.Specs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, model)
}

// PATCH /api/device-models/:id
func (h *DeviceModelHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body deviceModelRequest
	if !bindAndValidate(c, &body) {
		return
	}

	model, err := h.svc.Update(requestContext(c), actor.UserID(), c.Param("id"), services.DeviceModelInput{
		Name:     body.Name,
		Vendor:   body.Vendor,
		Category: body.Category,
		Specs:    body.Specs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, model)
}

// DELETE /api/device-models/:id
func (h *DeviceModelHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(requestContext(c), actor.UserID(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
