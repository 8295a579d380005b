package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceStub struct {
	view        *dto.TimetableView
	generateErr error
	generated   int
}

func (s *timetableServiceStub) Generate(context.Context) (*dto.TimetableView, error) {
	s.generated++
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return s.view, nil
}

func (s *timetableServiceStub) View(context.Context) (*dto.TimetableView, error) {
	return s.view, nil
}

type jobServiceStub struct {
	jobs map[string]dto.GenerationJob
}

func (s *jobServiceStub) Enqueue(context.Context) (*dto.GenerationJob, error) {
	job := dto.GenerationJob{ID: validID, Status: models.GenerationJobQueued, EnqueuedAt: time.Now()}
	s.jobs[job.ID] = job
	return &job, nil
}

func (s *jobServiceStub) Get(_ context.Context, id string) (*dto.GenerationJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return &job, nil
}

type exporterStub struct {
	query dto.TimetableExportQuery
}

func (e *exporterStub) Export(_ context.Context, query dto.TimetableExportQuery) (*dto.TimetableExport, error) {
	e.query = query
	return &dto.TimetableExport{Filename: "timetable-20261017.csv", ContentType: "text/csv", Body: []byte("Class,Day\n")}, nil
}

func timetableRouter(tt timetableService, jobs generationJobService, exp timetableExporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTimetableHandler(tt, jobs, exp)
	group := r.Group("/api/v1/timetable")
	group.GET("", h.View)
	group.POST("/generate", h.Generate)
	group.POST("/generate/async", h.GenerateAsync)
	group.GET("/jobs/:id", h.Job)
	group.GET("/export", h.Export)
	return r
}

func sampleView() *dto.TimetableView {
	class := models.Class{ID: validID, Year: 10, Section: "A", StudentsCount: 30}
	return &dto.TimetableView{
		Timetable: map[string]dto.ClassTimetable{
			class.ID: {
				ClassInfo: class,
				Timetable: map[string]map[string]*dto.TimetableCell{
					"Monday": {
						"9:00AM - 9:50AM":   nil,
						"11:00AM - 11:10AM": {IsBreak: true, BreakType: models.BreakTypeBreak},
					},
				},
			},
		},
		UnscheduledInfo: models.UnscheduledReport{},
	}
}

func TestTimetableHandlerGenerate(t *testing.T) {
	stub := &timetableServiceStub{view: sampleView()}
	r := timetableRouter(stub, &jobServiceStub{jobs: map[string]dto.GenerationJob{}}, &exporterStub{})

	w := serve(r, http.MethodPost, "/api/v1/timetable/generate", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.generated)
	body := w.Body.String()
	assert.Contains(t, body, `"9:00AM - 9:50AM":null`)
	assert.Contains(t, body, `"breakType":"Break"`)
	assert.Contains(t, body, `"unscheduledInfo":{}`)
}

func TestTimetableHandlerGenerateErrors(t *testing.T) {
	cases := map[error]int{
		appErrors.ErrMissingPrerequisiteData: http.StatusBadRequest,
		appErrors.ErrGenerationInProgress:    http.StatusConflict,
		appErrors.ErrGenerationTimeout:       http.StatusGatewayTimeout,
	}
	for err, status := range cases {
		stub := &timetableServiceStub{generateErr: err}
		r := timetableRouter(stub, &jobServiceStub{jobs: map[string]dto.GenerationJob{}}, &exporterStub{})

		w := serve(r, http.MethodPost, "/api/v1/timetable/generate", nil)

		assert.Equal(t, status, w.Code)
		assert.Contains(t, w.Body.String(), appErrors.FromError(err).Code)
	}
}

func TestTimetableHandlerAsyncLifecycle(t *testing.T) {
	jobs := &jobServiceStub{jobs: map[string]dto.GenerationJob{}}
	r := timetableRouter(&timetableServiceStub{}, jobs, &exporterStub{})

	w := serve(r, http.MethodPost, "/api/v1/timetable/generate/async", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/api/v1/timetable/jobs/"+validID, w.Header().Get("Location"))
	assert.Contains(t, w.Body.String(), `"status":"QUEUED"`)

	w = serve(r, http.MethodGet, "/api/v1/timetable/jobs/"+validID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/timetable/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerView(t *testing.T) {
	r := timetableRouter(&timetableServiceStub{view: sampleView()}, &jobServiceStub{}, &exporterStub{})

	w := serve(r, http.MethodGet, "/api/v1/timetable", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"classInfo"`)
}

func TestTimetableHandlerExport(t *testing.T) {
	exp := &exporterStub{}
	r := timetableRouter(&timetableServiceStub{}, &jobServiceStub{}, exp)

	w := serve(r, http.MethodGet, "/api/v1/timetable/export?format=csv&classId="+validID, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exp.query.Format)
	assert.Equal(t, validID, exp.query.ClassID)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="timetable-20261017.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Class,Day\n", w.Body.String())
}
