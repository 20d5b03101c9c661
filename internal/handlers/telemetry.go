package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltgrid/voltgrid/internal/services"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
	"github.com/voltgrid/voltgrid/pkg/response"
)

type TelemetryHandler struct {
	svc *services.TelemetryService
}

func NewTelemetryHandler(svc *services.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{svc: svc}
}

type readingPayload struct {
	Kind       string     `json:"kind" validate:"required,min=1,max=64"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit" validate:"omitempty,max=32"`
	RecordedAt *time.Time `json:"recorded_at"`
}

type ingestRequest struct {
	Readings []readingPayload `json:"readings" validate:"required,min=1,max=500,dive"`
}

// POST /api/devices/:id/readings
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var body ingestRequest
	if !bindAndValidate(c, &body) {
		return
	}

	readings := make([]services.ReadingInput, 0, len(body.Readings))
	for _, r := range body.Readings {
		input := services.ReadingInput{Kind: r.Kind, Value: r.Value, Unit: r.Unit}
		if r.RecordedAt != nil {
			input.RecordedAt = *r.RecordedAt
		}
		readings = append(readings, input)
	}

	stored, err := h.svc.Ingest(requestContext(c), c.Param("id"), readings)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"stored": stored})
}

// GET /api/devices/:id/readings/latest
func (h *TelemetryHandler) Latest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	readings, err := h.svc.Latest(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, readings)
}

// GET /api/devices/:id/readings?from=...&until=...&kind=...&limit=...
func (h *TelemetryHandler) Range(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	from, err := parseQueryTime(c.Query("from"))
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("from must be an RFC 3339 timestamp"))
		return
	}
	until, err := parseQueryTime(c.Query("until"))
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("until must be an RFC 3339 timestamp"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.Error(c, apperrors.NewBadRequest("limit must be a non-negative integer"))
			return
		}
	}

	readings, err := h.svc.Range(requestContext(c), actor, c.Param("id"), services.RangeOptions{
		Kind:  c.Query("kind"),
		From:  from,
		Until: until,
		Limit: limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, readings)
}

func parseQueryTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
