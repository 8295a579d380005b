package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context) (*dto.TimetableView, error)
	View(ctx context.Context) (*dto.TimetableView, error)
}

type generationJobService interface {
	Enqueue(ctx context.Context) (*dto.GenerationJob, error)
	Get(ctx context.Context, id string) (*dto.GenerationJob, error)
}

type timetableExporter interface {
	Export(ctx context.Context, query dto.TimetableExportQuery) (*dto.TimetableExport, error)
}

// TimetableHandler exposes generation, viewing and export of the timetable.
type TimetableHandler struct {
	timetable timetableService
	jobs      generationJobService
	exporter  timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetable timetableService, jobs generationJobService, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{timetable: timetable, jobs: jobs, exporter: exporter}
}

// Generate godoc
// @Summary Generate the weekly timetable
// @Description Replaces the stored timetable for every class and returns the new grid with unscheduled hours.
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	view, err := h.timetable.Generate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// GenerateAsync godoc
// @Summary Queue a timetable generation
// @Tags Timetable
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/generate/async [post]
func (h *TimetableHandler) GenerateAsync(c *gin.Context) {
	job, err := h.jobs.Enqueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "generate/async")+"jobs/"+job.ID)
	response.Accepted(c, job)
}

// Job godoc
// @Summary Get generation job status
// @Tags Timetable
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/jobs/{id} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	id, err := pathID(c, "generation job")
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// View godoc
// @Summary Get the stored timetable
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) View(c *gin.Context) {
	view, err := h.timetable.View(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Export godoc
// @Summary Export the stored timetable
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Param classId query string false "Limit to one class"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.TimetableExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	doc, err := h.exporter.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}
