package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type maintenanceService interface {
	ClearAll(ctx context.Context) error
}

// MaintenanceHandler exposes dataset maintenance endpoints.
type MaintenanceHandler struct {
	service maintenanceService
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(svc maintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: svc}
}

// Clear godoc
// @Summary Delete all timetable, teacher, subject and class data
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clear [post]
func (h *MaintenanceHandler) Clear(c *gin.Context) {
	if err := h.service.ClearAll(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MessageResponse{Message: "All data cleared"})
}
