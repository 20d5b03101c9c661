package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/voltgrid/voltgrid/internal/services"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
	"github.com/voltgrid/voltgrid/pkg/response"
)

type DeviceHandler struct {
	svc *services.DeviceService
}

func NewDeviceHandler(svc *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

type registerDeviceRequest struct {
	SerialNumber   string         `json:"serial_number" validate:"required,min=3,max=64"`
	Name           string         `json:"name" validate:"required,min=2,max=128"`
	OrganizationID string         `json:"organization_id" validate:"omitempty,uuid4"`
	DepartmentID   *string        `json:"department_id" validate:"omitempty,uuid4"`
	ModelID        string         `json:"model_id" validate:"required,uuid4"`
	WarrantyUntil  *time.Time     `json:"warranty_until"`
	Settings       datatypes.JSON `json:"settings"`
}

type updateDeviceRequest struct {
	Name          *string        `json:"name" validate:"omitempty,min=2,max=128"`
	DepartmentID  *string        `json:"department_id" validate:"omitempty,uuid4"`
	WarrantyUntil *time.Time     `json:"warranty_until"`
	Settings      datatypes.JSON `json:"settings"`
}

type mqttConfigRequest struct {
	Host     string `json:"host" validate:"required,min=1,max=256"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Username string `json:"username" validate:"omitempty,max=128"`
	Password string `json:"password" validate:"omitempty,max=256"`
	Topic    string `json:"topic" validate:"omitempty,max=256"`
	ClientID string `json:"client_id" validate:"omitempty,max=128"`
}

// GET /api/devices
func (h *DeviceHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	devices, total, err := h.svc.List(requestContext(c), actor, services.DeviceListOptions{
		Page:         page,
		PageSize:     perPage,
		Search:       c.Query("search"),
		DepartmentID: c.Query("department_id"),
		ModelID:      c.Query("model_id"),
		Category:     c.Query("category"),
		OnlineOnly:   c.Query("online") == "true",
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, devices, paginationMeta(page, perPage, total))
}

// GET /api/devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	device, err := h.svc.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, device)
}

// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body registerDeviceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	device, err := h.svc.Register(requestContext(c), actor, services.RegisterDeviceInput{
		SerialNumber:   body.SerialNumber,
		Name:           body.Name,
		OrganizationID: body.OrganizationID,
		DepartmentID:   body.DepartmentID,
		ModelID:        body.ModelID,
		WarrantyUntil:  body.WarrantyUntil,
		Settings:       body.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, device)
}

// PATCH /api/devices/:id
func (h *DeviceHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body updateDeviceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	device, err := h.svc.Update(requestContext(c), actor, c.Param("id"), services.UpdateDeviceInput{
		Name:          body.Name,
		DepartmentID:  body.DepartmentID,
		WarrantyUntil: body.WarrantyUntil,
		Settings:      body.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, device)
}

// PUT /api/devices/:id/mqtt
func (h *DeviceHandler) UpdateMQTTConfig(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var body mqttConfigRequest
	if !bindAndValidate(c, &body) {
		return
	}

	device, err := h.svc.UpdateMQTTConfig(requestContext(c), actor, c.Param("id"), services.MQTTConfigInput{
		Host:     body.Host,
		Port:     body.Port,
		Username: body.Username,
		Password: body.Password,
		Topic:    body.Topic,
		ClientID: body.ClientID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, device)
}

// GET /api/devices/warranty/expiring?days=30
func (h *DeviceHandler) ExpiringWarranties(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		response.Error(c, apperrors.NewBadRequest("days must be a positive integer"))
		return
	}

	devices, err := h.svc.ListExpiringWarranties(requestContext(c), actor, time.Duration(days)*24*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, devices)
}

// DELETE /api/devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
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
